package parse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

type failingTagger struct{}

func (failingTagger) Tag(string) (Tagged, error) {
	return Tagged{}, errors.New("tagger unavailable")
}

type panickingTagger struct{}

func (panickingTagger) Tag(string) (Tagged, error) {
	panic("repeated label")
}

func TestFallbackAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want permit.Address
	}{
		{
			name: "full address",
			in:   "123 Main St, Las Vegas, NV 89101",
			want: permit.Address{
				StreetNumber:  "123",
				StreetAddress: "123 Main St",
				State:         "NV",
				Zip:           "89101",
				ParsedType:    ParsedTypeFallback,
			},
		},
		{
			name: "zip plus four",
			in:   "4500 W Sahara Ave Las Vegas 89102-1234",
			want: permit.Address{
				StreetNumber:  "4500",
				StreetAddress: "4500 W Sahara Ave Las Vegas 89102-1234",
				State:         "NV",
				Zip:           "89102",
				ParsedType:    ParsedTypeFallback,
			},
		},
		{
			name: "no number",
			in:   "Parcel only",
			want: permit.Address{State: "NV", ParsedType: ParsedTypeFallback},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FallbackAddress(tt.in)); diff != "" {
				t.Errorf("FallbackAddress() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddress_FallsBack(t *testing.T) {
	for name, tagger := range map[string]Tagger{
		"error": failingTagger{},
		"panic": panickingTagger{},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			got := Address("123  Main St,\n Las Vegas, NV 89101", tagger)
			if got.StreetNumber != "123" || got.Zip != "89101" || got.State != "NV" {
				t.Errorf("Address() = %+v", got)
			}
			if got.ParsedType != ParsedTypeFallback {
				t.Errorf("ParsedType = %q, want fallback", got.ParsedType)
			}
		})
	}
}

func TestAddress_Tagged(t *testing.T) {
	got := Address("123 Main St, Las Vegas, NV 89101", StreetTagger{})
	want := permit.Address{
		StreetNumber:  "123",
		StreetName:    "Main",
		StreetType:    "St",
		City:          "Las Vegas",
		State:         "NV",
		Zip:           "89101",
		StreetAddress: "123 Main St",
		ParsedType:    TypeStreetAddress,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Address() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddress_Blank(t *testing.T) {
	if got := Address("   ", StreetTagger{}); !got.IsZero() {
		t.Errorf("Address() = %+v, want zero", got)
	}
}
