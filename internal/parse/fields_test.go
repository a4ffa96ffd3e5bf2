package parse

import (
	"strings"
	"testing"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"$1,234.50", 1234.50, true},
		{"1234.50", 1234.50, true},
		{"  $150.00 ", 150, true},
		{"$0.00", 0, true},
		{"0", 0, true},
		{"$2,500,000", 2500000, true},
		{"-$5.00", 0, false},
		{"-100", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"1e400", 0, false},
		{"$1" + strings.Repeat("0", 400), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Currency(tt.in).Get()
			if ok != tt.wantOK {
				t.Fatalf("Currency(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Currency(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCurrency_SymbolsAreIgnored(t *testing.T) {
	pairs := [][2]string{
		{"$1,234.50", "1234.50"},
		{"$12,000,000", "12000000"},
		{"$0.99", "0.99"},
	}
	for _, p := range pairs {
		a, aok := Currency(p[0]).Get()
		b, bok := Currency(p[1]).Get()
		if a != b || aok != bok {
			t.Errorf("Currency(%q) = %v,%v but Currency(%q) = %v,%v", p[0], a, aok, p[1], b, bok)
		}
	}
}

func TestCurrency_NegativeHasDiagnostic(t *testing.T) {
	res := Currency("-250")
	if res.OK() {
		t.Fatal("negative amount should be absent")
	}
	if res.Diagnostic() == "" {
		t.Error("negative amount should carry a diagnostic")
	}
}

func TestInteger(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"1,234 sq ft", 1234, true},
		{"2", 2, true},
		{" 0 ", 0, true},
		{"Two", 0, false},
		{"", 0, false},
		{"99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Integer(tt.in).Get()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Integer(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTextAndDate(t *testing.T) {
	if v, ok := Text("  Issued \n").Get(); !ok || v != "Issued" {
		t.Errorf("Text() = %q, %v", v, ok)
	}
	if Text(" \t ").OK() {
		t.Error("blank text should be absent")
	}
	if v, _ := Date(" 03/14/2025 ").Get(); v != "03/14/2025" {
		t.Errorf("Date() = %q", v)
	}
	if v, _ := Date("Pending").Get(); v != "Pending" {
		t.Errorf("Date() should keep unvalidated text, got %q", v)
	}
}

func TestCurrency_OverflowHasDiagnostic(t *testing.T) {
	res := Currency("$9" + strings.Repeat(",000", 110))
	if res.OK() {
		t.Fatalf("overflowing amount should be absent, got %v", res)
	}
	if !strings.Contains(res.Diagnostic(), "out of range") {
		t.Errorf("Diagnostic() = %q", res.Diagnostic())
	}
}
