package browser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed, static HTML page. It cannot navigate elsewhere or
// log in; expansion only reveals in-document sections.
type Document struct {
	doc *goquery.Document
	url string
}

// NewDocument parses r as the page located at url.
func NewDocument(r io.Reader, url string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Document{doc: doc, url: url}, nil
}

// Navigate succeeds only for the document's own URL.
func (d *Document) Navigate(_ context.Context, url string) error {
	if d.doc == nil {
		return ErrClosed
	}
	if url != d.url {
		return fmt.Errorf("static document %s cannot navigate to %s", d.url, url)
	}
	return nil
}

// CurrentURL returns the document's URL.
func (d *Document) CurrentURL() string {
	return d.url
}

// LabeledPairs implements Page.
func (d *Document) LabeledPairs(selector string) ([]Pair, error) {
	if d.doc == nil {
		return nil, ErrNoDocument
	}
	return labeledPairs(d.doc, selector), nil
}

// Rows implements Page.
func (d *Document) Rows(selector string) ([]Row, error) {
	if d.doc == nil {
		return nil, ErrNoDocument
	}
	return rows(d.doc, selector), nil
}

// LinkTexts implements Page.
func (d *Document) LinkTexts(selector string) ([]string, error) {
	if d.doc == nil {
		return nil, ErrNoDocument
	}
	return linkTexts(d.doc, selector), nil
}

// Expand reveals in-document sections only.
func (d *Document) Expand(_ context.Context, phrases []string) {
	if d.doc == nil {
		return
	}
	for _, trigger := range triggers(d.doc, phrases) {
		revealTargets(d.doc, trigger)
	}
}

// Login always fails: a static document has no session.
func (d *Document) Login(context.Context, string, string) bool {
	return false
}

// Close releases the parsed tree.
func (d *Document) Close() error {
	d.doc = nil
	return nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hidden reports whether sel or any ancestor is hidden by the hidden
// attribute, an inline display:none, or a hidden/collapse class.
func hidden(sel *goquery.Selection) bool {
	for s := sel; s.Length() > 0; s = s.Parent() {
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") {
			return true
		}
		if s.HasClass("hidden") {
			return true
		}
		if s.HasClass("collapse") && !s.HasClass("show") && !s.HasClass("in") {
			return true
		}
	}
	return false
}

func reveal(sel *goquery.Selection) {
	sel.Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("hidden")
		s.RemoveClass("hidden")
		if s.HasClass("collapse") {
			s.AddClass("show")
		}
		if style, ok := s.Attr("style"); ok {
			kept := make([]string, 0)
			for _, decl := range strings.Split(style, ";") {
				if strings.ReplaceAll(strings.ToLower(decl), " ", "") == "display:none" {
					continue
				}
				if strings.TrimSpace(decl) != "" {
					kept = append(kept, strings.TrimSpace(decl))
				}
			}
			s.SetAttr("style", strings.Join(kept, "; "))
		}
	})
}

// labeledPairs reads label elements and pairs each with the first cell
// following the label's container, or failing that the second cell of the
// container's parent row. Labels with neither are skipped.
func labeledPairs(doc *goquery.Document, selector string) []Pair {
	var pairs []Pair
	doc.Find(selector).Each(func(_ int, label *goquery.Selection) {
		if hidden(label) {
			return
		}
		text := cleanText(label.Text())
		if text == "" {
			return
		}

		value := label.Parent().NextAllFiltered("td").First()
		if value.Length() == 0 {
			value = label.Parent().Parent().ChildrenFiltered("td").Eq(1)
		}
		if value.Length() == 0 {
			return
		}
		pairs = append(pairs, Pair{Label: text, Value: cleanText(value.Text())})
	})
	return pairs
}

func rows(doc *goquery.Document, selector string) []Row {
	var out []Row
	doc.Find(selector).Each(func(_ int, tr *goquery.Selection) {
		if hidden(tr) {
			return
		}
		var row Row
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cleanText(cell.Text()))
		})
		out = append(out, row)
	})
	return out
}

func linkTexts(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		if hidden(a) {
			return
		}
		if text := cleanText(a.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// triggers returns the expansion controls whose text contains a phrase.
func triggers(doc *goquery.Document, phrases []string) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find("a, button, span[onclick]").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(cleanText(s.Text()))
		if text == "" {
			return
		}
		for _, p := range phrases {
			if p != "" && strings.Contains(text, strings.ToLower(p)) {
				out = append(out, s)
				return
			}
		}
	})
	return out
}

// revealTargets unhides the in-document section a trigger controls, along
// with everything inside it.
func revealTargets(doc *goquery.Document, trigger *goquery.Selection) {
	var ids []string
	if href := trigger.AttrOr("href", ""); strings.HasPrefix(href, "#") && len(href) > 1 {
		ids = append(ids, href[1:])
	}
	if target := trigger.AttrOr("data-target", ""); target != "" {
		ids = append(ids, strings.TrimPrefix(target, "#"))
	}
	if controls := trigger.AttrOr("aria-controls", ""); controls != "" {
		ids = append(ids, strings.Fields(controls)...)
	}

	for _, id := range ids {
		section := doc.Find(fmt.Sprintf("[id=%q]", id))
		if section.Length() == 0 {
			continue
		}
		reveal(section)
		reveal(section.Find("*"))
		trigger.SetAttr("aria-expanded", "true")
	}
}
