package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwizi/chat-runtime/internal/commands"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
	"github.com/dwizi/chat-runtime/internal/store"
)

const (
	ToolClassifyEvent    = "classify_event"
	ToolListPipelineRuns = "list_pipeline_runs"
	ToolListCommands     = "list_commands"
)

type RunLister interface {
	ListPipelineRuns(ctx context.Context, input store.ListPipelineRunsInput) ([]store.PipelineRun, error)
}

type CommandLister interface {
	List() []commands.Command
}

type ServerConfig struct {
	Name    string
	Version string
	Prefix  string
	Runs    RunLister
	Catalog CommandLister
}

// NewServer exposes read-only runtime introspection as MCP tools.
func NewServer(cfg ServerConfig) *sdkmcp.Server {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "chat-runtime"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: name, Version: cfg.Version}, nil)

	server.AddTool(&sdkmcp.Tool{
		Name:        ToolClassifyEvent,
		Description: "Classify an inbound message envelope and parse its command without side effects.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event":  map[string]any{"type": "object", "description": "messages.upsert envelope"},
				"prefix": map[string]any{"type": "string", "description": "command prefix override"},
			},
			"required": []string{"event"},
		},
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var args struct {
			Event  json.RawMessage `json:"event"`
			Prefix *string         `json:"prefix"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return errorResult(err), nil
		}
		if len(args.Event) == 0 {
			return errorResult(fmt.Errorf("event is required")), nil
		}
		event, err := message.DecodeEvent(args.Event)
		if err != nil && !errors.Is(err, message.ErrMalformedEnvelope) {
			return errorResult(err), nil
		}
		prefix := cfg.Prefix
		if args.Prefix != nil {
			prefix = *args.Prefix
		}
		return jsonResult(pipeline.PreviewEvent(event, prefix))
	})

	server.AddTool(&sdkmcp.Tool{
		Name:        ToolListPipelineRuns,
		Description: "List recent pipeline runs from the dispatch journal.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string"},
				"author":  map[string]any{"type": "string"},
				"command": map[string]any{"type": "string"},
				"outcome": map[string]any{"type": "string"},
				"limit":   map[string]any{"type": "integer"},
			},
		},
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		if cfg.Runs == nil {
			return errorResult(fmt.Errorf("dispatch journal unavailable")), nil
		}
		var args struct {
			ChatID  string `json:"chat_id"`
			Author  string `json:"author"`
			Command string `json:"command"`
			Outcome string `json:"outcome"`
			Limit   int    `json:"limit"`
		}
		if err := decodeArgs(req, &args); err != nil {
			return errorResult(err), nil
		}
		runs, err := cfg.Runs.ListPipelineRuns(ctx, store.ListPipelineRunsInput{
			ChatID:  args.ChatID,
			Author:  args.Author,
			Command: args.Command,
			Outcome: args.Outcome,
			Limit:   args.Limit,
		})
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"items": runs, "count": len(runs)})
	})

	server.AddTool(&sdkmcp.Tool{
		Name:        ToolListCommands,
		Description: "List registered chat commands.",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		items := []map[string]any{}
		if cfg.Catalog != nil {
			for _, command := range cfg.Catalog.List() {
				items = append(items, map[string]any{
					"name":        command.Name,
					"aliases":     command.Aliases,
					"description": command.Description,
					"group_only":  command.GroupOnly,
				})
			}
		}
		return jsonResult(map[string]any{"prefix": cfg.Prefix, "items": items, "count": len(items)})
	})
	return server
}

// NewHandler serves the MCP server over streamable HTTP.
func NewHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return server }, nil)
}

func decodeArgs(req *sdkmcp.CallToolRequest, out any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(payload any) (*sdkmcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(encoded)}}}, nil
}

func errorResult(err error) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
	}
}
