package permit

import (
	"encoding/json"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   string
		ident  bool
	}{
		{"real number", "BD25-23553", "BD25-23553", true},
		{"padded number", "  BD25-23553 ", "BD25-23553", true},
		{"empty number", "", UnknownNumber, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.number)
			if r.PermitNumber != tt.want {
				t.Errorf("PermitNumber = %q, want %q", r.PermitNumber, tt.want)
			}
			if r.Identified() != tt.ident {
				t.Errorf("Identified() = %v, want %v", r.Identified(), tt.ident)
			}
			if r.ScrapedTimestamp == "" {
				t.Error("ScrapedTimestamp is empty")
			}
		})
	}
}

func TestRecord_AddRelated(t *testing.T) {
	r := New("BD25-23553")

	if r.AddRelated("BD25-23553") {
		t.Error("AddRelated() accepted the record's own number")
	}
	if !r.AddRelated("EL-2024-1001") {
		t.Error("AddRelated() rejected a related number")
	}
	r.AddRelated("EL-2024-1001")
	r.AddRelated("")

	if r.RelatedPermits.Len() != 1 || !r.RelatedPermits.Has("EL-2024-1001") {
		t.Errorf("RelatedPermits = %v", r.RelatedPermits.Sorted())
	}
}

func TestRecord_Text(t *testing.T) {
	sqft := 2400
	r := New("BD25-23553")
	r.Status = "Issued"
	r.JobValue = floatPtr(0)
	r.SquareFootage = &sqft

	tests := []struct {
		field Field
		want  string
	}{
		{FieldStatus, "Issued"},
		{FieldJobValue, "0"},
		{FieldSquareFootage, "2400"},
		{FieldTotalFees, ""},
		{FieldOwnerName, ""},
		{Field("nonexistent"), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			if got := r.Text(tt.field); got != tt.want {
				t.Errorf("Text(%s) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestStructureHash(t *testing.T) {
	a := StructureHash([]string{"Status:", "Permit Type:", "Address:"})
	b := StructureHash([]string{" Address:", "Status:", "", "Permit Type:"})
	c := StructureHash([]string{"Status:", "Permit Type:"})

	if a != b {
		t.Errorf("hash depends on order or blanks: %s != %s", a, b)
	}
	if a == c {
		t.Error("different label sets produced the same hash")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32", len(a))
	}
}

func TestSet_JSON(t *testing.T) {
	s := NewSet("high_job_value", "address_unparsed", "high_job_value")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `["address_unparsed","high_job_value"]` {
		t.Errorf("Marshal() = %s", data)
	}

	var got Set
	if err := json.Unmarshal([]byte(`["b","a","b"]`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Len() != 2 || !got.Has("a") || !got.Has("b") {
		t.Errorf("Unmarshal() = %v", got.Sorted())
	}
}

func TestAllFields_Accessible(t *testing.T) {
	r := New("BD25-1")
	seen := make(map[Field]bool)
	for _, f := range AllFields {
		if seen[f] {
			t.Errorf("%s listed twice", f)
		}
		seen[f] = true
		if r.TextField(f) == nil && r.AmountField(f) == nil && r.CountField(f) == nil {
			t.Errorf("%s has no accessor", f)
		}
	}
}
