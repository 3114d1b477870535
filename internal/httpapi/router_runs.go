package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
	"github.com/dwizi/chat-runtime/internal/store"
)

func (r *router) handleRuns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dispatch journal unavailable"})
		return
	}
	query := req.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	runs, err := r.deps.Journal.ListPipelineRuns(req.Context(), store.ListPipelineRunsInput{
		ChatID:  query.Get("chat_id"),
		Author:  query.Get("author"),
		Command: query.Get("command"),
		Outcome: query.Get("outcome"),
		Limit:   limit,
	})
	if err != nil {
		r.deps.Logger.Error("list pipeline runs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs, "count": len(runs)})
}

func (r *router) handleCommands(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	items := []map[string]any{}
	if r.deps.Commands != nil {
		for _, command := range r.deps.Commands.List() {
			items = append(items, map[string]any{
				"name":        command.Name,
				"aliases":     command.Aliases,
				"description": command.Description,
				"group_only":  command.GroupOnly,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"prefix": r.deps.Config.Prefix, "items": items, "count": len(items)})
}

// handleClassify previews how an envelope would be classified and parsed.
func (r *router) handleClassify(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	event, err := message.DecodeEvent(raw)
	if err != nil && !errors.Is(err, message.ErrMalformedEnvelope) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	prefix := r.deps.Config.Prefix
	if override, ok := req.URL.Query()["prefix"]; ok && len(override) > 0 {
		prefix = override[0]
	}
	writeJSON(w, http.StatusOK, pipeline.PreviewEvent(event, prefix))
}
