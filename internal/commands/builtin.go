package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwizi/chat-runtime/internal/message"
)

// RegisterBuiltins installs the commands every deployment carries.
func RegisterBuiltins(registry *Registry) error {
	builtins := []Command{
		{
			Name:        "ping",
			Description: "Check that the runtime is responding.",
			Handler:     handlePing,
		},
		{
			Name:        "menu",
			Aliases:     []string{"help"},
			Description: "List available commands.",
			Handler:     menuHandler(registry),
		},
		{
			Name:        "admins",
			Aliases:     []string{"groupinfo"},
			Description: "Show the group subject and mention its admins.",
			GroupOnly:   true,
			Handler:     handleAdmins,
		},
	}
	for _, command := range builtins {
		if err := registry.Register(command); err != nil {
			return err
		}
	}
	return nil
}

func handlePing(ctx context.Context, request Request) error {
	return request.Reply(ctx, "pong")
}

func handleAdmins(ctx context.Context, request Request) error {
	if request.Transport == nil {
		return fmt.Errorf("admins: no transport")
	}
	metadata, err := request.Transport.GroupMetadata(ctx, request.Context.ChatID)
	if err != nil {
		return fmt.Errorf("admins: group metadata: %w", err)
	}
	var builder strings.Builder
	subject := strings.TrimSpace(metadata.Subject)
	if subject == "" {
		subject = request.Context.ChatID
	}
	fmt.Fprintf(&builder, "*%s*\n", subject)
	if len(metadata.Admins) == 0 {
		builder.WriteString("No admins listed.")
		return request.Reply(ctx, builder.String())
	}
	fmt.Fprintf(&builder, "Admins (%d):", len(metadata.Admins))
	for _, admin := range metadata.Admins {
		fmt.Fprintf(&builder, "\n@%s", message.UserPart(admin))
	}
	return request.Reply(ctx, builder.String(), metadata.Admins...)
}

func menuHandler(registry *Registry) Handler {
	return func(ctx context.Context, request Request) error {
		var builder strings.Builder
		if name := strings.TrimSpace(request.Context.DisplayName); name != "" {
			fmt.Fprintf(&builder, "Hi %s, available commands:\n", name)
		} else {
			builder.WriteString("Available commands:\n")
		}
		for _, command := range registry.List() {
			if command.GroupOnly && !request.Context.IsGroup {
				continue
			}
			fmt.Fprintf(&builder, "%s%s", registry.Prefix(), command.Name)
			if len(command.Aliases) > 0 {
				fmt.Fprintf(&builder, " (%s)", strings.Join(command.Aliases, ", "))
			}
			if command.Description != "" {
				fmt.Fprintf(&builder, " - %s", command.Description)
			}
			builder.WriteString("\n")
		}
		return request.Reply(ctx, strings.TrimRight(builder.String(), "\n"))
	}
}
