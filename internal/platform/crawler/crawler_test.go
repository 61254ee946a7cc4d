package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStatic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Hot Wheels Skyline</title>
			<script>var ignored = 1;</script></head>
			<body><h1>Hot Wheels Skyline GT-R</h1><span class="price">₹2,499</span></body></html>`)
	}))
	defer srv.Close()

	c := New("does-not-exist")
	c.chromeBin = ""
	page, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Hot Wheels Skyline", page.Title)
	assert.Contains(t, page.Text, "Hot Wheels Skyline GT-R")
	assert.Contains(t, page.Text, "₹2,499")
	assert.NotContains(t, page.Text, "var ignored")

	doc, err := page.Doc()
	require.NoError(t, err)
	assert.Equal(t, "₹2,499", doc.Find(".price").Text())
}

func TestFetchStaticErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("")
	c.chromeBin = ""
	_, err := c.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestCapText(t *testing.T) {
	long := strings.Repeat("price ", 3000)
	capped := capText(long)
	assert.LessOrEqual(t, len(capped), maxTextChars)

	assert.Equal(t, "a b c", capText("  a\n\tb   c  "))
}

func TestCapTextKeepsRunesWhole(t *testing.T) {
	// Place a multi-byte rune so the cap lands mid-rune.
	s := strings.Repeat("a", maxTextChars-1) + strings.Repeat("₹", 10)
	capped := capText(s)
	assert.LessOrEqual(t, len(capped), maxTextChars)
	assert.True(t, utf8.ValidString(capped))
	assert.Equal(t, maxTextChars-1, len(capped))
}
