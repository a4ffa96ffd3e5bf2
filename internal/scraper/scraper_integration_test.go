package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/metrics"
)

const portalLogin = `<html><body>
<form method="post" action="/CLARKCO/Login.aspx">
  <input type="hidden" name="__VIEWSTATE" value="vs">
  <input type="text" name="ctl00$username">
  <input type="password" name="ctl00$password">
</form>
</body></html>`

const portalDetail = `<html><body>
<table>
  <tr><td><span class="NotBreakWord">Permit Type:</span></td><td>Residential</td></tr>
  <tr><td><span class="NotBreakWord">Status:</span></td><td>Issued</td></tr>
  <tr><td><span class="NotBreakWord">Address:</span></td><td>500 S Grand Central Pkwy, Las Vegas, NV 89155</td></tr>
</table>
<a href="#more">More Details</a>
<div id="more" class="collapse">
  <table>
    <tr><td><span class="NotBreakWord">Job Value:</span></td><td>$48,500.00</td></tr>
  </table>
</div>
<table id="tblFees">
  <tr><th>Fee</th><th>Amount</th><th>Status</th></tr>
  <tr><td>Permit Fee</td><td>$310.00</td><td>Paid</td></tr>
</table>
</body></html>`

// newPortal serves a login-protected portal. Sessions are invalidated after
// expireAfter detail views when expireAfter > 0.
func newPortal(t *testing.T, expireAfter int) *httptest.Server {
	t.Helper()
	views := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/CLARKCO/Login.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.FormValue("ctl00$password") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: "ACA_SESSION", Value: "ok", Path: "/"})
			http.Redirect(w, r, "/CLARKCO/Default.aspx", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, portalLogin)
	})
	mux.HandleFunc("/CLARKCO/Default.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Home</body></html>")
	})
	mux.HandleFunc("/CLARKCO/Cap/CapDetail.aspx", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("ACA_SESSION")
		if err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/CLARKCO/Login.aspx?ReturnUrl=detail", http.StatusFound)
			return
		}
		views++
		if expireAfter > 0 && views == expireAfter {
			http.SetCookie(w, &http.Cookie{Name: "ACA_SESSION", Value: "", Path: "/", MaxAge: -1})
			http.Redirect(w, r, "/CLARKCO/Login.aspx?ReturnUrl=detail", http.StatusFound)
			return
		}
		fmt.Fprint(w, portalDetail)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func openSession(t *testing.T, server *httptest.Server, rec metrics.Recorder) *Scraper {
	t.Helper()

	page, err := browser.NewSession(browser.SessionOptions{
		LoginURL: server.URL + "/CLARKCO/Login.aspx",
		Sleep:    browser.NoSleep,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	opts := testOptions(rec)
	opts.DetailURLTemplate = server.URL + "/CLARKCO/Cap/CapDetail.aspx?Module=Building&PermitNumber=%s"

	s, err := Open(context.Background(), page, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScrapePermit_Portal(t *testing.T) {
	server := newPortal(t, 0)
	rec := metrics.NewLogRecorder(logger.NewMetrics())
	s := openSession(t, server, rec)

	got, err := s.ScrapePermit(context.Background(), "BD25-23553")
	if err != nil {
		t.Fatalf("ScrapePermit() error = %v", err)
	}

	if len(got.ExtractionErrors) != 0 {
		t.Fatalf("ExtractionErrors = %v", got.ExtractionErrors)
	}
	if got.PermitNumber != "BD25-23553" || got.Status != "Issued" || got.PermitType != "Residential" {
		t.Errorf("record = %v", got)
	}
	if got.JobValue == nil || *got.JobValue != 48500 {
		t.Errorf("JobValue = %v, want 48500 from the expanded section", got.JobValue)
	}
	if len(got.ItemizedFees) != 1 {
		t.Errorf("ItemizedFees = %v", got.ItemizedFees)
	}
	if got.ParsedAddress.StreetName != "Grand Central" || got.ParsedAddress.StreetDirection != "S" {
		t.Errorf("ParsedAddress = %+v", got.ParsedAddress)
	}

	counters := rec.Snapshot().Counters
	if counters[metrics.ScrapeSuccess] != 1 {
		t.Errorf("counters = %v", counters)
	}
}

func TestScrapePermit_PortalSessionExpires(t *testing.T) {
	server := newPortal(t, 2)
	s := openSession(t, server, nil)

	for _, number := range []string{"BD25-1", "BD25-2", "BD25-3"} {
		got, err := s.ScrapePermit(context.Background(), number)
		if err != nil {
			t.Fatalf("ScrapePermit(%s) error = %v", number, err)
		}
		if len(got.ExtractionErrors) != 0 || got.Status != "Issued" {
			t.Errorf("ScrapePermit(%s) = %v, errors %v", number, got, got.ExtractionErrors)
		}
	}
}

func TestOpen_PortalRejectsCredentials(t *testing.T) {
	server := newPortal(t, 0)

	page, err := browser.NewSession(browser.SessionOptions{
		LoginURL: server.URL + "/CLARKCO/Login.aspx",
		Sleep:    browser.NoSleep,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	opts := testOptions(nil)
	opts.Extract.Password = "wrong"
	if _, err := Open(context.Background(), page, opts); err != ErrLoginFailed {
		t.Fatalf("Open() error = %v, want %v", err, ErrLoginFailed)
	}

	if err := page.Navigate(context.Background(), server.URL+"/CLARKCO/Default.aspx"); err != browser.ErrClosed {
		t.Errorf("Navigate() after failed Open error = %v, want %v", err, browser.ErrClosed)
	}
}
