package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PipelineRun struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	EventID   string    `json:"event_id,omitempty"`
	ChatID    string    `json:"chat_id"`
	Author    string    `json:"author,omitempty"`
	IsGroup   bool      `json:"is_group"`
	Kind      string    `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Args      []string  `json:"args,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordPipelineRunInput struct {
	RunID   string
	EventID string
	ChatID  string
	Author  string
	IsGroup bool
	Kind    string
	Command string
	Args    []string
	Outcome string
	Reason  string
}

type ListPipelineRunsInput struct {
	ChatID  string
	Author  string
	Command string
	Outcome string
	Limit   int
}

func (s *Store) RecordPipelineRun(ctx context.Context, input RecordPipelineRunInput) (PipelineRun, error) {
	record := PipelineRun{
		ID:        "run_" + uuid.NewString(),
		RunID:     strings.TrimSpace(input.RunID),
		EventID:   strings.TrimSpace(input.EventID),
		ChatID:    strings.TrimSpace(input.ChatID),
		Author:    strings.TrimSpace(input.Author),
		IsGroup:   input.IsGroup,
		Kind:      strings.ToLower(strings.TrimSpace(input.Kind)),
		Command:   strings.ToLower(strings.TrimSpace(input.Command)),
		Args:      input.Args,
		Outcome:   strings.ToLower(strings.TrimSpace(input.Outcome)),
		Reason:    strings.TrimSpace(input.Reason),
		CreatedAt: time.Now().UTC(),
	}
	if record.RunID == "" || record.Kind == "" || record.Outcome == "" {
		return PipelineRun{}, fmt.Errorf("missing required pipeline run fields")
	}
	argsJSON := ""
	if len(record.Args) > 0 {
		encoded, err := json.Marshal(record.Args)
		if err != nil {
			return PipelineRun{}, fmt.Errorf("encode pipeline run args: %w", err)
		}
		argsJSON = string(encoded)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
			id, run_id, event_id, chat_id, author, is_group, kind, command, args_json, outcome, reason, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RunID,
		nullIfEmpty(record.EventID),
		record.ChatID,
		nullIfEmpty(record.Author),
		boolToInt(record.IsGroup),
		record.Kind,
		nullIfEmpty(record.Command),
		nullIfEmpty(argsJSON),
		record.Outcome,
		nullIfEmpty(record.Reason),
		record.CreatedAt.Unix(),
	); err != nil {
		return PipelineRun{}, fmt.Errorf("insert pipeline run: %w", err)
	}
	return record, nil
}

func (s *Store) ListPipelineRuns(ctx context.Context, input ListPipelineRunsInput) ([]PipelineRun, error) {
	limit := input.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	whereParts := []string{"1=1"}
	args := make([]any, 0, 5)
	if chatID := strings.TrimSpace(input.ChatID); chatID != "" {
		whereParts = append(whereParts, "chat_id = ?")
		args = append(args, chatID)
	}
	if author := strings.TrimSpace(input.Author); author != "" {
		whereParts = append(whereParts, "author = ?")
		args = append(args, author)
	}
	if command := strings.ToLower(strings.TrimSpace(input.Command)); command != "" {
		whereParts = append(whereParts, "command = ?")
		args = append(args, command)
	}
	if outcome := strings.ToLower(strings.TrimSpace(input.Outcome)); outcome != "" {
		whereParts = append(whereParts, "outcome = ?")
		args = append(args, outcome)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, COALESCE(event_id, ''), chat_id, COALESCE(author, ''), is_group, kind, COALESCE(command, ''), COALESCE(args_json, ''), outcome, COALESCE(reason, ''), created_at_unix
		 FROM pipeline_runs
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := make([]PipelineRun, 0, limit)
	for rows.Next() {
		var run PipelineRun
		var isGroup int
		var argsJSON string
		var createdAtUnix int64
		if err := rows.Scan(
			&run.ID,
			&run.RunID,
			&run.EventID,
			&run.ChatID,
			&run.Author,
			&isGroup,
			&run.Kind,
			&run.Command,
			&argsJSON,
			&run.Outcome,
			&run.Reason,
			&createdAtUnix,
		); err != nil {
			return nil, err
		}
		run.IsGroup = isGroup == 1
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
				return nil, fmt.Errorf("decode pipeline run args: %w", err)
			}
		}
		if createdAtUnix > 0 {
			run.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PrunePipelineRuns deletes rows created before the cutoff.
func (s *Store) PrunePipelineRuns(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs WHERE created_at_unix < ?`, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune pipeline runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune pipeline runs: %w", err)
	}
	return deleted, nil
}
