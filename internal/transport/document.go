package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Document is a fetched and parsed page. It is read-only once built and may
// be shared between goroutines.
type Document struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Blocked    bool
	BlockType  BlockType
	Rendered   bool

	root *html.Node
	base *url.URL

	textOnce sync.Once
	text     string
	ldOnce   sync.Once
	ld       []any
}

// ParseDocument decodes body to UTF-8 using the declared or sniffed charset
// and parses it as HTML.
func ParseDocument(pageURL string, status int, header http.Header, body []byte) (*Document, error) {
	if header == nil {
		header = http.Header{}
	}
	decoded := body
	if r, err := charset.NewReader(bytes.NewReader(body), header.Get("Content-Type")); err == nil {
		if b, err := io.ReadAll(r); err == nil {
			decoded = b
		}
	}

	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}
	base, _ := url.Parse(pageURL)

	return &Document{
		URL:        pageURL,
		StatusCode: status,
		Header:     header,
		Body:       decoded,
		root:       root,
		base:       base,
	}, nil
}

// ParseError reports a document that could not be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return "parse " + e.URL + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// HTML returns the decoded page source.
func (d *Document) HTML() string { return string(d.Body) }

// Root returns the parsed node tree.
func (d *Document) Root() *html.Node { return d.root }

var selectorCache sync.Map

func compile(sel string) cascadia.Selector {
	if v, ok := selectorCache.Load(sel); ok {
		return v.(cascadia.Selector)
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		s = nil
	}
	selectorCache.Store(sel, s)
	return s
}

// Select returns every node matching a CSS selector. An invalid selector
// matches nothing.
func (d *Document) Select(sel string) []*html.Node {
	s := compile(sel)
	if s == nil || d.root == nil {
		return nil
	}
	return s.MatchAll(d.root)
}

// First returns the first node matching sel, or nil.
func (d *Document) First(sel string) *html.Node {
	s := compile(sel)
	if s == nil || d.root == nil {
		return nil
	}
	return s.MatchFirst(d.root)
}

// Exists reports whether any node matches sel.
func (d *Document) Exists(sel string) bool { return d.First(sel) != nil }

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	if n := d.First("title"); n != nil {
		return NodeText(n)
	}
	return ""
}

// Text returns the visible text of the page with whitespace collapsed.
func (d *Document) Text() string {
	d.textOnce.Do(func() {
		if d.root != nil {
			d.text = NodeText(d.root)
		}
	})
	return d.text
}

// Resolve turns href into an absolute URL relative to the document.
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if d.base == nil {
		return ref.String()
	}
	return d.base.ResolveReference(ref).String()
}

// Link is an anchor on the page.
type Link struct {
	Href string // raw attribute value
	URL  string // absolute form, empty for non-http schemes
	Text string
}

// Links returns every <a href> on the page.
func (d *Document) Links() []Link {
	var out []Link
	for _, n := range d.Select("a[href]") {
		href := Attr(n, "href")
		l := Link{Href: href, Text: NodeText(n)}
		if abs := d.Resolve(href); strings.HasPrefix(abs, "http://") || strings.HasPrefix(abs, "https://") {
			l.URL = abs
		}
		out = append(out, l)
	}
	return out
}

// JSONLD returns every parsed application/ld+json block. Arrays are
// flattened and @graph members are lifted to the top level. Malformed
// blocks are skipped.
func (d *Document) JSONLD() []any {
	d.ldOnce.Do(func() {
		for _, n := range d.Select(`script[type="application/ld+json"]`) {
			raw := strings.TrimSpace(RawText(n))
			if raw == "" {
				continue
			}
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				continue
			}
			d.ld = append(d.ld, flattenLD(v)...)
		}
	})
	return d.ld
}

func flattenLD(v any) []any {
	switch x := v.(type) {
	case []any:
		var out []any
		for _, item := range x {
			out = append(out, flattenLD(item)...)
		}
		return out
	case map[string]any:
		out := []any{x}
		if g, ok := x["@graph"]; ok {
			out = append(out, flattenLD(g)...)
		}
		return out
	}
	return nil
}

// MetaContent returns the content of the first <meta> whose name or
// property equals key.
func (d *Document) MetaContent(key string) string {
	for _, n := range d.Select("meta") {
		if strings.EqualFold(Attr(n, "name"), key) || strings.EqualFold(Attr(n, "property"), key) {
			return strings.TrimSpace(Attr(n, "content"))
		}
	}
	return ""
}

// Attr returns the value of attribute name on n.
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

var skipText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

// NodeText returns the visible text under n with whitespace collapsed.
func NodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if skipText[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// RawText concatenates the text children of n without filtering, for
// script bodies.
func RawText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
