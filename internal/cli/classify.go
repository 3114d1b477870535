package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
)

func newClassifyCommand() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "classify [event.json|-]",
		Short: "Classify and tokenize a raw event without side effects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			raw, err := readEventSource(cmd.InOrStdin(), source)
			if err != nil {
				return err
			}
			event, err := message.DecodeEvent(raw)
			if err != nil && !errors.Is(err, message.ErrMalformedEnvelope) {
				return err
			}
			if !cmd.Flags().Changed("prefix") {
				prefix = config.FromEnv().Prefix
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(pipeline.PreviewEvent(event, prefix))
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", ".", "command prefix (defaults to CHAT_RUNTIME_PREFIX)")
	return cmd
}

func readEventSource(stdin io.Reader, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "-" {
		raw, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return raw, nil
}
