package permit

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestDetectChanges(t *testing.T) {
	previous := New("BD25-23553")
	previous.Status = "Plan Review"
	previous.JobValue = floatPtr(150000)
	previous.IssuedDate = ""

	t.Run("new permit", func(t *testing.T) {
		current := New("BD25-23553")
		current.Status = "Issued"

		changes := DetectChanges(nil, current)
		if len(changes) != 1 {
			t.Fatalf("expected 1 change, got %d", len(changes))
		}
		if changes[0].Kind != ChangeNew || changes[0].New != "Issued" {
			t.Errorf("unexpected change: %+v", changes[0])
		}
	})

	t.Run("status and issued date", func(t *testing.T) {
		current := New("BD25-23553")
		current.Status = "Issued"
		current.JobValue = floatPtr(150000)
		current.IssuedDate = "03/14/2025"

		changes := DetectChanges(previous, current)
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
		}

		sc, ok := StatusChange(changes)
		if !ok {
			t.Fatal("expected a status change")
		}
		if sc.Old != "Plan Review" || sc.New != "Issued" {
			t.Errorf("status change = %q -> %q", sc.Old, sc.New)
		}
	})

	t.Run("job value change", func(t *testing.T) {
		current := New("BD25-23553")
		current.Status = "Plan Review"
		current.JobValue = floatPtr(175000.5)

		changes := DetectChanges(previous, current)
		if len(changes) != 1 {
			t.Fatalf("expected 1 change, got %d", len(changes))
		}
		if changes[0].Field != FieldJobValue || changes[0].Old != "150000" || changes[0].New != "175000.5" {
			t.Errorf("unexpected change: %+v", changes[0])
		}
	})

	t.Run("cleared field is ignored", func(t *testing.T) {
		current := New("BD25-23553")
		current.Status = "Plan Review"

		if changes := DetectChanges(previous, current); len(changes) != 0 {
			t.Errorf("expected no changes, got %+v", changes)
		}
	})
}
