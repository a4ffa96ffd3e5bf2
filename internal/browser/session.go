package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
)

const (
	UserAgent      = "permit-scraper/1.0 (github.com/pfrederiksen/permit-scraper)"
	DefaultTimeout = 30 * time.Second
	// LoginMarker appears in the portal URL whenever the session is on the
	// login page.
	LoginMarker = "Login.aspx"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	LoginURL    string
	LoginMarker string
	Timeout     time.Duration
	// LoginSettle is how long to wait after submitting credentials.
	LoginSettle time.Duration
	Sleep       Sleeper
}

// Session is an HTTP-backed Page that keeps portal cookies across requests.
type Session struct {
	http     *resty.Client
	opts     SessionOptions
	current  *Document
	expanded map[string]bool
	closed   bool
}

// NewSession creates a session with an empty cookie jar.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.LoginMarker == "" {
		opts.LoginMarker = LoginMarker
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", UserAgent)
	client.SetTimeout(opts.Timeout)

	return &Session{
		http:     client,
		opts:     opts,
		expanded: make(map[string]bool),
	}, nil
}

// fetch GETs rawURL and returns the parsed page at its final location.
func (s *Session) fetch(ctx context.Context, rawURL string) (*Document, error) {
	if s.closed {
		return nil, ErrClosed
	}
	res, err := s.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetching %s: unexpected status code: %d", rawURL, res.StatusCode())
	}
	return NewDocument(bytes.NewReader(res.Body()), finalURL(res, rawURL))
}

func finalURL(res *resty.Response, fallback string) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL.String()
	}
	return fallback
}

// Navigate loads rawURL, following redirects. CurrentURL reports where the
// portal actually landed, which is the login page when the session expired.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	s.current = doc
	s.expanded = make(map[string]bool)
	return nil
}

// CurrentURL implements Page.
func (s *Session) CurrentURL() string {
	if s.current == nil {
		return ""
	}
	return s.current.CurrentURL()
}

// LabeledPairs implements Page.
func (s *Session) LabeledPairs(selector string) ([]Pair, error) {
	if s.current == nil {
		return nil, ErrNoDocument
	}
	return s.current.LabeledPairs(selector)
}

// Rows implements Page.
func (s *Session) Rows(selector string) ([]Row, error) {
	if s.current == nil {
		return nil, ErrNoDocument
	}
	return s.current.Rows(selector)
}

// LinkTexts implements Page.
func (s *Session) LinkTexts(selector string) ([]string, error) {
	if s.current == nil {
		return nil, ErrNoDocument
	}
	return s.current.LinkTexts(selector)
}

// Expand reveals in-document sections and appends the content of same-site
// detail links to the current page. Each link is fetched at most once per
// loaded page.
func (s *Session) Expand(ctx context.Context, phrases []string) {
	if s.current == nil || s.current.doc == nil {
		return
	}
	doc := s.current.doc
	base, _ := url.Parse(s.current.url)

	for _, trigger := range triggers(doc, phrases) {
		revealTargets(doc, trigger)

		link := s.sameSiteLink(base, trigger.AttrOr("href", ""))
		if link == "" || s.expanded[link] {
			continue
		}
		s.expanded[link] = true

		extra, err := s.fetch(ctx, link)
		if err != nil {
			logger.Debug("Section expansion fetch failed", logger.Fields{"url": link, "error": err.Error()})
			continue
		}
		html, err := extra.doc.Find("body").Html()
		if err != nil || strings.TrimSpace(html) == "" {
			continue
		}
		doc.Find("body").AppendHtml(`<div class="expanded-section">` + html + `</div>`)
	}
}

func (s *Session) sameSiteLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Host != base.Host {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// Login submits credentials through the portal's login form. It succeeds
// when the portal lands anywhere but the login page.
func (s *Session) Login(ctx context.Context, username, password string) bool {
	fields := logger.Fields{"username": username}

	page, err := s.fetch(ctx, s.opts.LoginURL)
	if err != nil {
		logger.Error("Login error", fields, err)
		return false
	}

	form := loginForm(page.doc)
	if form == nil {
		// The portal renders its login form inside an iframe.
		if src, ok := page.doc.Find("iframe#LoginFrame, iframe[src*='Login']").First().Attr("src"); ok {
			if frameURL := resolve(page.url, src); frameURL != "" {
				if frame, err := s.fetch(ctx, frameURL); err == nil {
					page, form = frame, loginForm(frame.doc)
				}
			}
		}
	}
	if form == nil {
		logger.Error("Login error", fields, fmt.Errorf("no login form on %s", page.url))
		return false
	}

	action := resolve(page.url, form.AttrOr("action", ""))
	if action == "" {
		action = page.url
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(loginValues(form, username, password)).
		Post(action)
	if err != nil {
		logger.Error("Login error", fields, err)
		return false
	}

	s.opts.Sleep(s.opts.LoginSettle)

	landed := finalURL(res, action)
	if doc, err := NewDocument(bytes.NewReader(res.Body()), landed); err == nil {
		s.current = doc
	}

	if strings.Contains(landed, s.opts.LoginMarker) || res.IsError() {
		logger.Error("Login failed - still on login page", fields, nil)
		return false
	}
	logger.Info("Login successful", fields)
	return true
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// loginForm returns the first form holding a password input.
func loginForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find("input[type=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		return nil
	}
	return form
}

// loginValues keeps the form's hidden inputs and fills in the credentials.
// The username goes to the first visible text input, preferring one whose
// name or id mentions "user".
func loginValues(form *goquery.Selection, username, password string) map[string]string {
	values := make(map[string]string)
	var userField, firstText string

	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		if name == "" {
			return
		}
		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "hidden":
			values[name] = in.AttrOr("value", "")
		case "password":
			values[name] = password
		case "text", "email":
			if firstText == "" {
				firstText = name
			}
			id := strings.ToLower(name + " " + in.AttrOr("id", ""))
			if userField == "" && strings.Contains(id, "user") {
				userField = name
			}
		}
	})

	if userField == "" {
		userField = firstText
	}
	if userField != "" {
		values[userField] = username
	}
	return values
}

// Close releases idle connections. The session cannot be used afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.current = nil
	s.http.GetClient().CloseIdleConnections()
	return nil
}
