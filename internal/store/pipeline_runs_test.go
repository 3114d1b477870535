package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chat_runtime_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func TestRecordAndListPipelineRuns(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	created, err := sqlStore.RecordPipelineRun(ctx, RecordPipelineRunInput{
		RunID:   "run-1",
		EventID: "EVT1",
		ChatID:  "120363@g.us",
		Author:  "555@s.whatsapp.net",
		IsGroup: true,
		Kind:    "extended_text",
		Command: "Ping",
		Args:    []string{"extra", "Arg"},
		Outcome: "dispatched",
	})
	if err != nil {
		t.Fatalf("record run: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := sqlStore.RecordPipelineRun(ctx, RecordPipelineRunInput{
		RunID:   "run-2",
		ChatID:  "777@s.whatsapp.net",
		Kind:    "plain_text",
		Outcome: "dropped",
	}); err != nil {
		t.Fatalf("record second run: %v", err)
	}

	runs, err := sqlStore.ListPipelineRuns(ctx, ListPipelineRunsInput{Command: "ping", Limit: 10})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Command != "ping" || !run.IsGroup || run.Outcome != "dispatched" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(run.Args) != 2 || run.Args[1] != "Arg" {
		t.Fatalf("expected args to round trip with case, got %v", run.Args)
	}

	all, err := sqlStore.ListPipelineRuns(ctx, ListPipelineRunsInput{})
	if err != nil {
		t.Fatalf("list all runs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}
	if all[0].RunID != "run-2" {
		t.Fatalf("expected newest run first, got %s", all[0].RunID)
	}
}

func TestRecordPipelineRunRequiresFields(t *testing.T) {
	sqlStore := newTestStore(t)
	if _, err := sqlStore.RecordPipelineRun(context.Background(), RecordPipelineRunInput{ChatID: "x"}); err == nil {
		t.Fatal("expected missing fields error")
	}
}

func TestPrunePipelineRuns(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	if _, err := sqlStore.RecordPipelineRun(ctx, RecordPipelineRunInput{RunID: "run-1", ChatID: "c", Kind: "plain_text", Outcome: "dropped"}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	deleted, err := sqlStore.PrunePipelineRuns(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("prune runs: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected nothing pruned, got %d", deleted)
	}
	deleted, err = sqlStore.PrunePipelineRuns(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune runs: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 pruned row, got %d", deleted)
	}
}
