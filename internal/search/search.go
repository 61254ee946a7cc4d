// Package search turns a query string into candidate listing URLs. Search
// engines are scraped in a fixed fallback order and, when every engine comes
// up empty, marketplace search pages are constructed directly so the pipeline
// always has something to crawl.
package search

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// deniedHosts never yield sellable listings, only noise.
var deniedHosts = []string{
	"google.", "duckduckgo.", "bing.",
	"youtube.com", "wikipedia.org",
}

// Backend queries public search engines by scraping their HTML results.
type Backend struct {
	httpClient *http.Client
	maxResults int

	googleBase string
	ddgBase    string
	bingBase   string

	// marketplaceBases are formatted with the escaped query when every
	// engine fails. Empty slice disables the constructed fallback.
	marketplaceBases []string
}

func NewBackend(maxResults int) *Backend {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Backend{
		httpClient: &http.Client{Timeout: 12 * time.Second},
		maxResults: maxResults,
		googleBase: "https://www.google.com/search",
		ddgBase:    "https://html.duckduckgo.com/html/",
		bingBase:   "https://www.bing.com/search",
		marketplaceBases: []string{
			"https://www.ebay.com/sch/i.html?_nkw=%s",
			"https://www.amazon.com/s?k=%s",
			"https://www.etsy.com/search?q=%s",
		},
	}
}

// NewBackendWithBases is used by tests to point the engines at stub servers.
func NewBackendWithBases(maxResults int, googleBase, ddgBase, bingBase string, marketplaceBases []string) *Backend {
	b := NewBackend(maxResults)
	b.googleBase = googleBase
	b.ddgBase = ddgBase
	b.bingBase = bingBase
	b.marketplaceBases = marketplaceBases
	return b
}

// Search returns up to maxResults listing URLs for query. Engine failures
// are logged and absorbed; the worst case is the constructed marketplace
// URLs, never an error.
func (b *Backend) Search(ctx context.Context, query string) []string {
	type engine struct {
		name string
		run  func(context.Context, string) ([]string, error)
	}
	engines := []engine{
		{"google", b.searchGoogle},
		{"duckduckgo", b.searchDuckDuckGo},
		{"bing", b.searchBing},
	}

	for _, e := range engines {
		urls, err := e.run(ctx, query)
		if err != nil {
			log.Printf("search: %s failed: %v", e.name, err)
			continue
		}
		if len(urls) > 0 {
			log.Printf("search: %s returned %d urls", e.name, len(urls))
			return urls
		}
	}

	urls := make([]string, 0, len(b.marketplaceBases))
	escaped := url.QueryEscape(query)
	for _, base := range b.marketplaceBases {
		urls = append(urls, fmt.Sprintf(base, escaped))
		if len(urls) >= b.maxResults {
			break
		}
	}
	if len(urls) > 0 {
		log.Printf("search: all engines empty, using %d marketplace urls", len(urls))
	}
	return urls
}

func (b *Backend) searchGoogle(ctx context.Context, query string) ([]string, error) {
	doc, err := b.getDoc(ctx, b.googleBase+"?q="+url.QueryEscape(query)+"&hl=en&num=10&pws=0")
	if err != nil {
		return nil, err
	}

	urls := newURLCollector(b.maxResults)
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		// Google wraps results in /url?q=<target> redirects.
		if strings.HasPrefix(href, "/url?") || strings.HasPrefix(href, "https://www.google.com/url?") {
			if u, err := url.Parse(href); err == nil {
				target := u.Query().Get("q")
				if target == "" {
					target = u.Query().Get("url")
				}
				urls.add(target)
			}
		} else {
			urls.add(href)
		}
		return !urls.full()
	})
	return urls.list, nil
}

func (b *Backend) searchDuckDuckGo(ctx context.Context, query string) ([]string, error) {
	doc, err := b.getDoc(ctx, b.ddgBase+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	urls := newURLCollector(b.maxResults)
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		// DDG redirect links carry the target in the uddg param.
		if strings.HasPrefix(href, "/l/?") || strings.HasPrefix(href, "https://duckduckgo.com/l/?") {
			if u, err := url.Parse(href); err == nil {
				urls.add(u.Query().Get("uddg"))
			}
		} else {
			urls.add(href)
		}
		return !urls.full()
	})
	return urls.list, nil
}

func (b *Backend) searchBing(ctx context.Context, query string) ([]string, error) {
	doc, err := b.getDoc(ctx, b.bingBase+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	urls := newURLCollector(b.maxResults)
	doc.Find("h2 a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, ok := a.Attr("href"); ok {
			urls.add(href)
		}
		return !urls.full()
	})
	return urls.list, nil
}

func (b *Backend) getDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", searchUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// urlCollector dedupes and filters result links as they are found.
type urlCollector struct {
	list []string
	seen map[string]bool
	max  int
}

func newURLCollector(max int) *urlCollector {
	return &urlCollector{seen: make(map[string]bool), max: max}
}

func (c *urlCollector) add(raw string) {
	if c.full() || raw == "" || !strings.HasPrefix(raw, "http") {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	host := strings.ToLower(u.Host)
	for _, denied := range deniedHosts {
		if strings.Contains(host, denied) {
			return
		}
	}
	if c.seen[raw] {
		return
	}
	c.seen[raw] = true
	c.list = append(c.list, raw)
}

func (c *urlCollector) full() bool { return len(c.list) >= c.max }
