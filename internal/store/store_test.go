package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fentz26/skein/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestTaskSaveAndList(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	root := models.Task{ID: 100, State: models.TaskStateOpen, LastState: models.TaskStateUnseen, Label: "build"}
	if err := s.SaveTask(root); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	child := models.Task{ID: 101, ParentID: 100, Depth: 1, State: models.TaskStateOpen, LastState: models.TaskStateUnseen}
	if err := s.SaveTask(child); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	// Saving again updates in place.
	root.LastState = root.State
	root.State = models.TaskStateClosed
	if err := s.SaveTask(root); err != nil {
		t.Fatalf("SaveTask update failed: %v", err)
	}

	got, err := s.GetTask(100)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.State != models.TaskStateClosed || got.LastState != models.TaskStateOpen {
		t.Errorf("Expected OPEN -> CLOSED, got %s -> %s", got.LastState, got.State)
	}
	if got.ParentID != 0 {
		t.Errorf("Root task should have no parent, got %d", got.ParentID)
	}

	gotChild, _ := s.GetTask(101)
	if gotChild.ParentID != 100 || gotChild.Depth != 1 {
		t.Errorf("Unexpected child %+v", gotChild)
	}

	missing, err := s.GetTask(999)
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing task, got %v, %v", missing, err)
	}

	all, err := s.ListTasks(nil)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(all))
	}

	open := models.TaskStateOpen
	openTasks, _ := s.ListTasks(&open)
	if len(openTasks) != 1 || openTasks[0].ID != 101 {
		t.Errorf("Expected only task 101 open, got %+v", openTasks)
	}
}

func TestTransitions(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if _, err := s.RecordTransition(7, models.TaskStateFree, models.TaskStateOpen); err != nil {
		t.Fatalf("RecordTransition failed: %v", err)
	}
	if _, err := s.RecordTransition(7, models.TaskStateOpen, models.TaskStateFailed); err != nil {
		t.Fatalf("RecordTransition failed: %v", err)
	}

	trs, err := s.GetTransitions(7)
	if err != nil {
		t.Fatalf("GetTransitions failed: %v", err)
	}
	if len(trs) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(trs))
	}
	if trs[1].From != models.TaskStateOpen || trs[1].To != models.TaskStateFailed {
		t.Errorf("Unexpected second transition %+v", trs[1])
	}
}

func TestImportHistory(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ok, err := s.StartImport("/srpms/bash-4.1-2.src.rpm")
	if err != nil {
		t.Fatalf("StartImport failed: %v", err)
	}
	bad, _ := s.StartImport("/srpms/broken.src.rpm")

	if err := s.FinishImport(ok.ID, "bash", "bash-4.1-2", models.ImportStatusCompleted, ""); err != nil {
		t.Fatalf("FinishImport failed: %v", err)
	}
	if err := s.FinishImport(bad.ID, "", "", models.ImportStatusFailed, "no header"); err != nil {
		t.Fatalf("FinishImport failed: %v", err)
	}
	if err := s.FinishImport("nope", "", "", models.ImportStatusFailed, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	failed, err := s.ListImports(string(models.ImportStatusFailed))
	if err != nil {
		t.Fatalf("ListImports failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Error != "no header" || failed[0].EndedAt == nil {
		t.Errorf("Unexpected failed imports %+v", failed)
	}

	all, _ := s.ListImports("")
	if len(all) != 2 {
		t.Errorf("Expected 2 imports, got %d", len(all))
	}
}

func TestRepoRequests(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	req, err := s.CreateRequest("wavpack", "audio codec", "http://wavpack.com", "jdoe", "needed by gstreamer")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	got, err := s.GetRequest(req.ID)
	if err != nil || got == nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Owner != "jdoe" || got.State != models.RequestStateOpen {
		t.Errorf("Unexpected request %+v", got)
	}

	if err := s.CloseRequest(req.ID); err != nil {
		t.Fatalf("CloseRequest failed: %v", err)
	}
	open, _ := s.ListRequests(models.RequestStateOpen)
	closed, _ := s.ListRequests(models.RequestStateClosed)
	if len(open) != 0 || len(closed) != 1 {
		t.Errorf("Expected 0 open and 1 closed, got %d and %d", len(open), len(closed))
	}

	if err := s.CloseRequest("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if _, err := s.WritePDR("repo.reconcile", "abc", "corrected", "bash", "origin moved"); err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	entries, err := s.ListPDR("bash")
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "corrected" {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
