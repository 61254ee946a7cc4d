// Package crawler fetches listing pages. Marketplace pages are rendered with
// a headless browser so client-side prices show up; a plain HTTP fetch parsed
// with goquery is the fallback when no browser is available.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

const (
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Rendered pages can run to megabytes of text; downstream extraction
	// only ever looks at the top of the page.
	maxTextChars = 8000

	maxBodyBytes = 4 << 20
)

// Page is a fetched listing page in the two forms extraction needs.
type Page struct {
	URL   string
	Title string
	HTML  string
	Text  string
}

// Doc parses the page HTML. The document is rebuilt per call so callers can
// walk it without sharing state.
func (p *Page) Doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
}

type Crawler struct {
	chromeBin  string
	httpClient *http.Client
}

func New(chromeBin string) *Crawler {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	return &Crawler{
		chromeBin:  chromeBin,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Fetch retrieves pageURL, rendering it in a headless browser when one is
// available and falling back to a static fetch otherwise.
func (c *Crawler) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if c.chromeBin != "" {
		page, err := c.fetchRendered(ctx, pageURL)
		if err == nil {
			return page, nil
		}
	}
	return c.fetchStatic(ctx, pageURL)
}

func (c *Crawler) fetchRendered(ctx context.Context, pageURL string) (*Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
		chromedp.ExecPath(c.chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	var title, html, text string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
	)
	if err != nil {
		return nil, fmt.Errorf("rendered fetch %s: %w", pageURL, err)
	}

	return &Page{
		URL:   pageURL,
		Title: strings.TrimSpace(title),
		HTML:  html,
		Text:  capText(text),
	}, nil
}

func (c *Crawler) fetchStatic(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("static fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("static fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	doc.Find("script, style, noscript").Remove()

	return &Page{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:  string(body),
		Text:  capText(doc.Find("body").Text()),
	}, nil
}

func capText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxTextChars {
		return s
	}
	// Back off to a rune boundary so the cap never splits a multi-byte
	// character like ₹.
	cut := maxTextChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// findChromeBinary locates a Chrome/Chromium binary on the host.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
