package extract

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

const detailURL = "https://aca-prod.accela.com/CLARKCO/Cap/CapDetail.aspx?Module=Building&PermitNumber=BD25-23553"

// fakePage is a scripted browser.Page.
type fakePage struct {
	navigations int
	loginPages  int // navigations that land on the login page
	loginOK     bool
	logins      int
	navErr      error

	pairs       []browser.Pair
	pairsErr    error
	fees        []browser.Row
	inspections []browser.Row
	inspErr     error
	links       []string
	expandPanic bool
	expanded    int
	current     string
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.navigations++
	f.current = url
	if f.navigations <= f.loginPages {
		f.current = "https://aca-prod.accela.com/CLARKCO/Login.aspx?ReturnUrl=x"
	}
	return nil
}

func (f *fakePage) CurrentURL() string { return f.current }

func (f *fakePage) LabeledPairs(string) ([]browser.Pair, error) {
	return f.pairs, f.pairsErr
}

func (f *fakePage) Rows(selector string) ([]browser.Row, error) {
	if selector == browser.InspectionSelector {
		return f.inspections, f.inspErr
	}
	return f.fees, nil
}

func (f *fakePage) LinkTexts(string) ([]string, error) { return f.links, nil }

func (f *fakePage) Expand(context.Context, []string) {
	if f.expandPanic {
		panic("stale element reference")
	}
	f.expanded++
}

func (f *fakePage) Login(context.Context, string, string) bool {
	f.logins++
	return f.loginOK
}

func (f *fakePage) Close() error { return nil }

func testOptions(slept *[]time.Duration) Options {
	opts := DefaultOptions()
	opts.Username = "inspector"
	opts.Password = "secret"
	opts.Sleep = func(d time.Duration) {
		if slept != nil {
			*slept = append(*slept, d)
		}
	}
	return opts
}

func samplePairs() []browser.Pair {
	return []browser.Pair{
		{Label: "Permit Type:", Value: "Residential"},
		{Label: "Status:", Value: "Open"},
	}
}

func TestExtract_Fixture(t *testing.T) {
	f, err := os.Open("testdata/permit_detail.html")
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer f.Close()

	doc, err := browser.NewDocument(f, detailURL)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}

	rec := New(doc, testOptions(nil)).Extract(context.Background(), detailURL)

	if len(rec.ExtractionErrors) != 0 {
		t.Fatalf("ExtractionErrors = %v", rec.ExtractionErrors)
	}

	text := map[permit.Field]string{
		permit.FieldPermitNumber:  "BD25-23553",
		permit.FieldPermitType:    "Residential Building",
		permit.FieldPermitSubtype: "Single Family Dwelling",
		permit.FieldStatus:        "Issued",
		permit.FieldDescription:   "New two story residence",
		permit.FieldAppliedDate:   "01/15/2025",
		permit.FieldIssuedDate:    "03/14/2025",
		permit.FieldAddress:       "123 Main St, Las Vegas, NV 89101",
		permit.FieldOwnerName:     "SMITH JOHN",
		permit.FieldParcelNumber:  "162-05-110-011",
		permit.FieldZoning:        "R-1",
		permit.FieldLotSize:       "0.18 ac",
		permit.FieldJobValue:      "325000",
		permit.FieldTotalFees:     "1523.75",
		permit.FieldSquareFootage: "2450",
	}
	for field, want := range text {
		if got := rec.Text(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}

	wantFees := []permit.Fee{
		{Description: "Permit Fee", Amount: 150, Status: "Paid"},
		{Description: "Plan Review", Amount: 1373.75, Status: "Paid"},
	}
	if diff := cmp.Diff(wantFees, rec.ItemizedFees); diff != "" {
		t.Errorf("ItemizedFees mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"EL-2025-1001", "PLB-2025-77"}, rec.RelatedPermits.Sorted()); diff != "" {
		t.Errorf("RelatedPermits mismatch (-want +got):\n%s", diff)
	}

	counts := map[permit.Field]string{
		permit.FieldInspectionsCount:   "3",
		permit.FieldPassedInspections:  "1",
		permit.FieldFailedInspections:  "1",
		permit.FieldPendingInspections: "2",
	}
	for field, want := range counts {
		if got := rec.Text(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}

	if rec.ParsedAddress.StreetName != "Main" || rec.AddressValidationFlag != AddressParsed {
		t.Errorf("ParsedAddress = %+v, flag %q", rec.ParsedAddress, rec.AddressValidationFlag)
	}
	if rec.CompletenessScore != 89 {
		t.Errorf("CompletenessScore = %v, want 89", rec.CompletenessScore)
	}
	if rec.PageStructureHash == "" || rec.PageStructureHash == UnknownHash {
		t.Errorf("PageStructureHash = %q", rec.PageStructureHash)
	}
	if rec.JobValueValidationFlag != "" {
		t.Errorf("JobValueValidationFlag = %q, want none", rec.JobValueValidationFlag)
	}
}

func TestExtract_SettleWaits(t *testing.T) {
	var slept []time.Duration
	page := &fakePage{pairs: samplePairs()}

	New(page, testOptions(&slept)).Extract(context.Background(), detailURL)

	want := []time.Duration{2 * time.Second, time.Second}
	if diff := cmp.Diff(want, slept); diff != "" {
		t.Errorf("settle waits mismatch (-want +got):\n%s", diff)
	}
	if page.expanded != 1 {
		t.Errorf("Expand called %d times, want 1", page.expanded)
	}
}

func TestExtract_SessionExpired(t *testing.T) {
	t.Run("login fails", func(t *testing.T) {
		page := &fakePage{loginPages: 1, loginOK: false, pairs: samplePairs()}

		rec := New(page, testOptions(nil)).Extract(context.Background(), detailURL)

		if diff := cmp.Diff([]string{ErrNoteLoginFailed}, rec.ExtractionErrors); diff != "" {
			t.Errorf("ExtractionErrors mismatch (-want +got):\n%s", diff)
		}
		if rec.Identified() || rec.Status != "" || rec.CompletenessScore != 0 {
			t.Errorf("login-failed record carries data: %v", rec)
		}
		if page.navigations != 1 || page.logins != 1 {
			t.Errorf("navigations = %d, logins = %d; want 1, 1", page.navigations, page.logins)
		}
	})

	t.Run("login succeeds", func(t *testing.T) {
		var slept []time.Duration
		page := &fakePage{loginPages: 1, loginOK: true, pairs: samplePairs()}

		rec := New(page, testOptions(&slept)).Extract(context.Background(), detailURL)

		if len(rec.ExtractionErrors) != 0 {
			t.Errorf("ExtractionErrors = %v", rec.ExtractionErrors)
		}
		if rec.PermitNumber != "BD25-23553" || rec.Status != "Open" {
			t.Errorf("record = %v", rec)
		}
		if page.navigations != 2 {
			t.Errorf("navigations = %d, want 2", page.navigations)
		}
		if len(slept) != 3 {
			t.Errorf("settle waits = %v, want 3", slept)
		}
	})

	t.Run("still on login page after relogin", func(t *testing.T) {
		page := &fakePage{loginPages: 2, loginOK: true, pairs: samplePairs()}

		rec := New(page, testOptions(nil)).Extract(context.Background(), detailURL)
		if page.logins != 1 {
			t.Errorf("logins = %d, want a single attempt", page.logins)
		}
		if rec.PermitNumber != "BD25-23553" {
			t.Errorf("PermitNumber = %q", rec.PermitNumber)
		}
	})
}

func TestExtract_GeneralErrors(t *testing.T) {
	tests := []struct {
		name     string
		page     *fakePage
		wantHash string
	}{
		{
			name: "navigation error",
			page: &fakePage{navErr: errors.New("connection reset")},
		},
		{
			name: "panic during expansion",
			page: &fakePage{expandPanic: true, pairs: samplePairs()},
		},
		{
			name:     "labels unreadable",
			page:     &fakePage{pairsErr: browser.ErrNoDocument},
			wantHash: UnknownHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := New(tt.page, testOptions(nil)).Extract(context.Background(), detailURL)

			if len(rec.ExtractionErrors) != 1 || !strings.HasPrefix(rec.ExtractionErrors[0], "General extraction error: ") {
				t.Fatalf("ExtractionErrors = %v", rec.ExtractionErrors)
			}
			if rec.PageStructureHash != tt.wantHash {
				t.Errorf("PageStructureHash = %q, want %q", rec.PageStructureHash, tt.wantHash)
			}
		})
	}
}

func TestExtract_InspectionReadError(t *testing.T) {
	page := &fakePage{
		pairs:   samplePairs(),
		inspErr: errors.New("table detached"),
		fees: []browser.Row{
			{"Fee", "Amount", "Status"},
			{"Permit Fee", "$150.00", "Paid"},
		},
	}

	rec := New(page, testOptions(nil)).Extract(context.Background(), detailURL)

	if diff := cmp.Diff([]string{"Inspection extraction: table detached"}, rec.ExtractionErrors); diff != "" {
		t.Errorf("ExtractionErrors mismatch (-want +got):\n%s", diff)
	}
	if rec.InspectionsCount != nil {
		t.Errorf("InspectionsCount = %v, want absent", *rec.InspectionsCount)
	}
	if len(rec.ItemizedFees) != 1 {
		t.Errorf("ItemizedFees = %v", rec.ItemizedFees)
	}
}

func TestPermitNumberFromURL(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{detailURL, "BD25-23553", true},
		{"https://portal.test/Cap?PermitNumber=BD25%2D1&Module=B", "BD25-1", true},
		{"https://portal.test/Cap?Module=B", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := PermitNumberFromURL(tt.url)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("PermitNumberFromURL() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
