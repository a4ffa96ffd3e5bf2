package permit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRecord() *Record {
	sqft, units, total, passed := 2400, 1, 3, 2
	r := New("BD25-23553")
	r.PermitType = "Residential"
	r.Status = "Issued"
	r.AppliedDate = "01/15/2025"
	r.Address = "123 Main St, Las Vegas, NV 89101"
	r.ParsedAddress = Address{
		StreetNumber:  "123",
		StreetName:    "Main",
		StreetType:    "St",
		City:          "Las Vegas",
		State:         "NV",
		Zip:           "89101",
		StreetAddress: "123 Main St",
		ParsedType:    "Street Address",
	}
	r.JobValue = floatPtr(0)
	r.TotalFees = floatPtr(1523.75)
	r.ItemizedFees = []Fee{{Description: "Permit Fee", Amount: 150, Status: "Paid"}}
	r.SquareFootage = &sqft
	r.DwellingUnits = &units
	r.AddRelated("EL-2024-1001")
	r.AddRelated("BP-2024-0007")
	r.InspectionsCount = &total
	r.PassedInspections = &passed
	r.CompletenessScore = 61.5
	r.AddError("Address parsing error: no tokens")
	r.AddFlag("high_job_value_warning")
	r.PageStructureHash = StructureHash([]string{"Status:"})
	return r
}

func TestFlat_RoundTrip(t *testing.T) {
	original := sampleRecord()

	data, err := MarshalFlat(original)
	if err != nil {
		t.Fatalf("MarshalFlat() error = %v", err)
	}

	got, err := UnmarshalFlat(data)
	if err != nil {
		t.Fatalf("UnmarshalFlat() error = %v", err)
	}

	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFlat_Shape(t *testing.T) {
	data, err := MarshalFlat(sampleRecord())
	if err != nil {
		t.Fatalf("MarshalFlat() error = %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if v, ok := raw["owner_name"]; !ok || v != nil {
		t.Errorf("owner_name = %v (present=%v), want null", v, ok)
	}
	if v := raw["job_value"]; v != 0.0 {
		t.Errorf("job_value = %v, want 0", v)
	}
	related, ok := raw["related_permits"].([]interface{})
	if !ok || len(related) != 2 || related[0] != "BP-2024-0007" {
		t.Errorf("related_permits = %v, want sorted array", raw["related_permits"])
	}
	if _, ok := raw["parsed_address"].(map[string]interface{}); !ok {
		t.Errorf("parsed_address = %v, want object", raw["parsed_address"])
	}
}

func TestFlat_EmptyCollections(t *testing.T) {
	data, err := MarshalFlat(New("BD25-1"))
	if err != nil {
		t.Fatalf("MarshalFlat() error = %v", err)
	}
	s := string(data)
	for _, want := range []string{`"itemized_fees":[]`, `"related_permits":[]`, `"parsed_address":null`} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %s: %s", want, s)
		}
	}
}

func TestUnmarshalFlat_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{not json`},
		{"missing number", `{"status":"Issued"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalFlat([]byte(tt.data)); err == nil {
				t.Error("UnmarshalFlat() expected error")
			}
		})
	}
}
