package permit

import (
	"time"
)

// ChangeKind classifies a detected change.
type ChangeKind string

const (
	ChangeNew    ChangeKind = "new"
	ChangeUpdate ChangeKind = "update"
)

// Change is one difference between two scrapes of the same permit.
type Change struct {
	PermitNumber string     `json:"permit_number"`
	Field        Field      `json:"field"`
	Kind         ChangeKind `json:"kind"`
	Old          string     `json:"old"`
	New          string     `json:"new"`
	DetectedAt   time.Time  `json:"detected_at"`
}

// WatchedFields are the fields compared between consecutive scrapes.
var WatchedFields = []Field{
	FieldStatus,
	FieldPermitType,
	FieldJobValue,
	FieldIssuedDate,
	FieldFinalDate,
	FieldExpirationDate,
}

// DetectChanges compares two scrapes of a permit and returns the watched
// fields that differ. A nil previous yields a single "new" change.
// Fields that went from populated to absent are ignored, since a partial
// scrape should not look like the portal cleared a value.
func DetectChanges(previous, current *Record) []Change {
	now := time.Now().UTC()

	if previous == nil {
		return []Change{{
			PermitNumber: current.PermitNumber,
			Field:        FieldStatus,
			Kind:         ChangeNew,
			New:          current.Status,
			DetectedAt:   now,
		}}
	}

	var changes []Change
	for _, f := range WatchedFields {
		old, cur := previous.Text(f), current.Text(f)
		if old == cur || cur == "" {
			continue
		}
		changes = append(changes, Change{
			PermitNumber: current.PermitNumber,
			Field:        f,
			Kind:         ChangeUpdate,
			Old:          old,
			New:          cur,
			DetectedAt:   now,
		})
	}
	return changes
}

// StatusChange returns the status change among changes, if any.
func StatusChange(changes []Change) (Change, bool) {
	for _, c := range changes {
		if c.Field == FieldStatus && c.Kind == ChangeUpdate {
			return c, true
		}
	}
	return Change{}, false
}
