package parse

import (
	"errors"
	"strings"
	"testing"
)

func TestTry(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() (string, error)
		wantOK   bool
		wantDiag string
	}{
		{
			name:   "value",
			fn:     func() (string, error) { return "Issued", nil },
			wantOK: true,
		},
		{
			name:     "error",
			fn:       func() (string, error) { return "", errors.New("element not found") },
			wantDiag: "element not found",
		},
		{
			name: "panic",
			fn: func() (string, error) {
				var m map[string]*string
				return *m["status"], nil
			},
			wantDiag: "panic:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Try(tt.fn)
			if res.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v", res.OK(), tt.wantOK)
			}
			if !strings.Contains(res.Diagnostic(), tt.wantDiag) {
				t.Errorf("Diagnostic() = %q, want it to contain %q", res.Diagnostic(), tt.wantDiag)
			}
		})
	}
}

func TestResult_Accessors(t *testing.T) {
	some := Some(42)
	if v, ok := some.Get(); !ok || v != 42 {
		t.Errorf("Get() = %v, %v", v, ok)
	}
	if p := some.Ptr(); p == nil || *p != 42 {
		t.Errorf("Ptr() = %v", p)
	}

	none := None[int]("missing")
	if none.Ptr() != nil {
		t.Error("Ptr() on absent result should be nil")
	}
	if none.Or(7) != 7 {
		t.Errorf("Or() = %d, want 7", none.Or(7))
	}
	if none.Diagnostic() != "missing" {
		t.Errorf("Diagnostic() = %q", none.Diagnostic())
	}
}
