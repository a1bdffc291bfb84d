package runlog

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohanadkandil/logSense/pkg/model"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}

func sampleRun(id, incidentID string, startedAt time.Time) Run {
	return Run{
		ID:         id,
		IncidentID: incidentID,
		Subject:    "DB timeout",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(30 * time.Second),
		Outcome:    "success",
		RootCause:  "connection pool exhausted",
		Confidence: 0.92,
		Steps: []model.StepRecord{
			{Step: "Fetching incident details", Timestamp: startedAt},
			{Step: "Searching knowledge base", Tool: "search_knowledge_base", Timestamp: startedAt.Add(5 * time.Second)},
		},
	}
}

func TestOpenAndClose(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "nested", "runs.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
}

func TestSaveAndGetRun(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	want := sampleRun("run-1", "INC-1", started)
	if err := store.SaveRun(want); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.IncidentID != "INC-1" || got.Outcome != "success" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", got.Confidence)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(got.Steps))
	}
	if got.Steps[1].Tool != "search_knowledge_base" {
		t.Errorf("step tool = %q", got.Steps[1].Tool)
	}
}

func TestGetRunMissing(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.GetRun("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun(id, "INC-1", base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("wrong order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestListRunsForIncident(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := store.SaveRun(sampleRun("run-1", "INC-1", base)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(sampleRun("run-2", "INC-2", base.Add(time.Minute))); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := store.ListRunsForIncident("INC-2", 0)
	if err != nil {
		t.Fatalf("ListRunsForIncident: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestPruneOlderThan(t *testing.T) {
	store, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := store.SaveRun(sampleRun("old", "INC-1", base)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(sampleRun("new", "INC-1", base.Add(time.Hour))); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	n, err := store.PruneOlderThan(base.Add(30 * time.Minute))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d runs, want 1", n)
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Fatalf("unexpected remaining runs: %+v", runs)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := tempDBPath(t)

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := store.SaveRun(sampleRun("run-1", "INC-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	store.Close()

	// Reopen the same file; migrations must not reapply or lose data.
	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer store.Close()

	if _, err := store.GetRun("run-1"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
