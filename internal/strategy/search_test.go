package strategy

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	s := NewSearcher(SearchConfig{})
	base, params := s.SearchURL("  Ace   Plumbing\tTampa FL ", 0)
	assert.Equal(t, "https://www.google.com/search", base)
	assert.Equal(t, url.Values{"q": {"Ace Plumbing Tampa FL"}, "num": {"10"}}, params)

	_, params = s.SearchURL("x", 5)
	assert.Equal(t, "5", params.Get("num"))
}

func TestSearch_Blocked(t *testing.T) {
	f := newFakeFetcher(t)
	base, params := NewSearcher(SearchConfig{}).SearchURL("ace", 0)
	f.add(base, params, fakePage{body: "<html><body>unusual traffic</body></html>", blocked: true})

	_, err := NewSearcher(SearchConfig{}).Search(context.Background(), f, "ace", 0)
	assert.True(t, errors.Is(err, ErrSearchBlocked))
}

func TestSearchResults_Website(t *testing.T) {
	doc := parse(t, "https://www.google.com/search", `<html><body>
<a href="https://www.google.com/maps/place/ace">Maps</a>
<a href="https://www.yelp.com/biz/ace-plumbing-tampa">Yelp</a>
<a href="/url?q=https://aceplumbing.com/services&amp;sa=U">Ace Plumbing</a>
</body></html>`)
	res := &SearchResults{Doc: doc}

	assert.Equal(t, "https://aceplumbing.com", res.Website(DefaultPolicy(), false))
}

func TestSearchResults_WebsiteFromCite(t *testing.T) {
	doc := parse(t, "https://www.google.com/search", `<html><body>
<cite>www.aceplumbing.com › services</cite>
</body></html>`)
	res := &SearchResults{Doc: doc}

	assert.Equal(t, "https://www.aceplumbing.com", res.Website(DefaultPolicy(), false))
}

func TestSearchResults_Rating(t *testing.T) {
	res := &SearchResults{Doc: parse(t, "https://www.google.com/search",
		`<html><body><span>4.8 (1,204 reviews)</span></body></html>`)}
	rating, reviews, ok := res.Rating()
	require.True(t, ok)
	assert.Equal(t, 4.8, rating)
	assert.Equal(t, 1204, reviews)

	res = &SearchResults{Doc: parse(t, "https://www.google.com/search",
		`<html><body><span>7.5 (10 reviews)</span></body></html>`)}
	_, _, ok = res.Rating()
	assert.False(t, ok)
}

func TestSearchResults_Email(t *testing.T) {
	res := &SearchResults{Doc: parse(t, "https://www.google.com/search", `<html><body>
<p>Contact info@aceplumbing.com or sales@otherco.com</p>
<p>Owner mike.ace@gmail.com</p>
</body></html>`)}

	assert.Equal(t, "mike.ace@gmail.com", res.Email(DefaultPolicy(), "aceplumbing.com"))

	res = &SearchResults{Doc: parse(t, "https://www.google.com/search", `<html><body>
<p>Contact info@aceplumbing.com or sales@otherco.com</p>
</body></html>`)}
	assert.Equal(t, "info@aceplumbing.com", res.Email(DefaultPolicy(), "aceplumbing.com"))
	assert.Empty(t, res.Email(DefaultPolicy(), ""))
}

func TestSearchResults_EmailFromMailtoLink(t *testing.T) {
	res := &SearchResults{Doc: parse(t, "https://www.google.com/search", `<html><body>
<a href="https://www.aceplumbing.com/">Ace Plumbing - Tampa</a>
<a href="mailto:Owner@AcePlumbing.com?subject=Quote">Email us</a>
<a href="mailto:info@aceplumbing.com">info</a>
</body></html>`)}

	assert.Equal(t, []string{"owner@aceplumbing.com", "info@aceplumbing.com"}, res.Emails())
	assert.Equal(t, "owner@aceplumbing.com", res.Email(DefaultPolicy(), "aceplumbing.com"))
}

func TestSearchResults_LinkedInProfile(t *testing.T) {
	res := &SearchResults{Doc: parse(t, "https://www.google.com/search", `<html><body>
<a href="https://www.linkedin.com/company/ace">Company</a>
<a href="/url?q=https://www.linkedin.com/in/jdoe/&amp;sa=U">Jane Doe</a>
</body></html>`)}

	assert.Equal(t, "https://www.linkedin.com/in/jdoe", res.LinkedInProfile())
}
