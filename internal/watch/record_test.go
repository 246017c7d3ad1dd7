package watch

import (
	"testing"

	"github.com/fentz26/skein/internal/models"
)

func TestRecordString(t *testing.T) {
	r := newRecord(101, 100, 2)
	if got := r.String(); got != "    101" {
		t.Errorf("String() = %q", got)
	}
	r.Label = "buildArch (bash-4.1-2.src.rpm, x86_64)"
	if got := r.String(); got != "    101 buildArch (bash-4.1-2.src.rpm, x86_64)" {
		t.Errorf("String() = %q", got)
	}
}

func TestTaskSetAdd(t *testing.T) {
	ts := NewTaskSet()
	first, added := ts.Add(100, 0, 0)
	if !added {
		t.Fatal("expected first add to insert")
	}
	again, added := ts.Add(100, 0, 0)
	if added || again != first {
		t.Fatal("expected duplicate add to return existing record")
	}
	ts.Add(101, 100, 1)

	if ts.Len() != 2 {
		t.Fatalf("Len() = %d", ts.Len())
	}
	if ts.Get(101).ParentID != 100 {
		t.Error("child lost its parent")
	}
	if ts.Get(5) != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestTaskSetPendingSnapshot(t *testing.T) {
	ts := NewTaskSet()
	a, _ := ts.Add(1, 0, 0)
	ts.Add(2, 0, 0)
	a.State = models.TaskStateClosed
	a.settled = true

	pending := ts.Pending()
	ts.Add(3, 2, 1)
	if len(pending) != 1 || pending[0] != 2 {
		t.Fatalf("Pending() = %v", pending)
	}
	if running := ts.Running(); len(running) != 2 {
		t.Errorf("Running() = %d records", len(running))
	}
}

func TestDescribeUnseen(t *testing.T) {
	if got := describeState(models.TaskStateUnseen); got != "unknown" {
		t.Errorf("describeState(UNSEEN) = %q", got)
	}
	if got := describeState(models.TaskStateCanceled); got != "canceled" {
		t.Errorf("describeState(CANCELED) = %q", got)
	}
}
