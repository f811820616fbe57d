package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_laughtrack.sqlite3")
	t.Setenv("LAUGH_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func sampleRun() *Run {
	return &Run{
		AudioPath:     "clip.wav",
		WindowSeconds: 1,
		Timescale:     600,
		Threshold:     0.5,
		Label:         "laughter",
		Engine:        "spectral",
		Windows:       3,
		Output:        "{\n  \"0.0\": 0.62,\n  \"2.0\": 0.81\n}",
		Events: []Event{
			{TimeKey: "2.0", Seconds: 2, Confidence: 0.81},
			{TimeKey: "0.0", Seconds: 0, Confidence: 0.62},
		},
	}
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

// TestNewDBClientWithCustomPath tests database creation in a missing directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.SaveRun(sampleRun())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("Expected uuid id, got %q", id)
	}

	run, err := client.GetRun(id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.AudioPath != "clip.wav" || run.Timescale != 600 || run.Windows != 3 {
		t.Errorf("Unexpected run: %+v", run)
	}
	if len(run.Events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(run.Events))
	}
	if run.Events[0].TimeKey != "0.0" || run.Events[1].TimeKey != "2.0" {
		t.Errorf("Events should be ordered by time, got %+v", run.Events)
	}
	if run.Events[0].RunID != id {
		t.Errorf("Event run id = %q, want %q", run.Events[0].RunID, id)
	}

	n, err := client.CountEvents(id)
	if err != nil || n != 2 {
		t.Errorf("CountEvents = %d, %v", n, err)
	}
}

func TestSaveRunKeepsGivenID(t *testing.T) {
	client, _ := setupTestDB(t)

	run := sampleRun()
	run.ID = "11111111-2222-3333-4444-555555555555"
	id, err := client.SaveRun(run)
	if err != nil {
		t.Fatal(err)
	}
	if id != run.ID {
		t.Errorf("Expected given id to be kept, got %q", id)
	}
}

func TestSaveRunWithoutEvents(t *testing.T) {
	client, _ := setupTestDB(t)

	run := sampleRun()
	run.Events = nil
	run.Output = "{}"
	id, err := client.SaveRun(run)
	if err != nil {
		t.Fatal(err)
	}
	got, err := client.GetRun(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 0 || got.Output != "{}" {
		t.Errorf("Unexpected run: %+v", got)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	client, _ := setupTestDB(t)

	older := sampleRun()
	older.CreatedAt = time.Now().Add(-time.Hour)
	olderID, _ := client.SaveRun(older)
	newerID, _ := client.SaveRun(sampleRun())

	runs, err := client.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newerID || runs[1].ID != olderID {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestDeleteRun(t *testing.T) {
	client, _ := setupTestDB(t)

	id, _ := client.SaveRun(sampleRun())
	if err := client.DeleteRun(id); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}

	if _, err := client.GetRun(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound after delete, got %v", err)
	}
	var count int64
	client.DB.Model(&Event{}).Where("run_id = ?", id).Count(&count)
	if count != 0 {
		t.Errorf("Expected events to be deleted, found %d", count)
	}

	if err := client.DeleteRun(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound deleting twice, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *DBClient
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client should be a no-op, got %v", err)
	}
	if _, err := c.SaveRun(sampleRun()); err == nil {
		t.Error("Expected error from nil client")
	}
	if _, err := c.ListRuns(); err == nil {
		t.Error("Expected error from nil client")
	}
}
