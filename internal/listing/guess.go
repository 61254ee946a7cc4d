package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// marketplaceNames maps domains to the friendly seller name shown to users.
var marketplaceNames = map[string]string{
	"ebay.com":       "eBay",
	"ebay.in":        "eBay",
	"ebay.co.uk":     "eBay",
	"ebay.de":        "eBay",
	"amazon.com":     "Amazon",
	"amazon.in":      "Amazon",
	"amazon.co.uk":   "Amazon",
	"flipkart.com":   "Flipkart",
	"aliexpress.com": "AliExpress",
	"etsy.com":       "Etsy",
	"mercari.com":    "Mercari",
	"rakuten.co.jp":  "Rakuten",
	"olx.in":         "OLX",
	"olx.com":        "OLX",
	"walmart.com":    "Walmart",
}

// knownBrands is the fixed list of diecast manufacturers recognized in titles.
var knownBrands = []string{
	"Hot Wheels", "Maisto", "Bburago", "AUTOart", "Minichamps", "Kyosho", "Tomica",
	"Matchbox", "Tarmac Works", "INNO64", "Norev", "GreenLight", "Solido", "Welly",
	"Sun Star", "CMC", "HPI", "Spark", "GT Spirit", "IXO", "Schuco", "Hobby Japan",
}

var (
	scaleRe      = regexp.MustCompile(`\b1\s*[:/xX\-]\s*(\d{1,3})\b`)
	scaleLabelRe = regexp.MustCompile(`(?i)\bscale\s*1\s*[:/]\s*(\d{1,3})\b`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// GuessSeller derives a seller name from the listing URL's domain.
func GuessSeller(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	for domain, name := range marketplaceNames {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return name
		}
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		p := parts[len(parts)-2]
		return strings.ToUpper(p[:1]) + p[1:]
	}
	return host
}

// GuessScale finds a scale token like 1:18, 1/64 or "Scale 1:43" in text and
// normalizes it to "1:N".
func GuessScale(text string) string {
	if m := scaleRe.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("1:%s", m[1])
	}
	if m := scaleLabelRe.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("1:%s", m[1])
	}
	return ""
}

// GuessBrand detects a known manufacturer mentioned in text.
func GuessBrand(text string) string {
	for _, b := range knownBrands {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(b) + `\b`)
		if re.MatchString(text) {
			return b
		}
	}
	return ""
}

// GuessModelName distills a model name from a title by stripping the brand
// and scale tokens.
func GuessModelName(title, manufacturer string) string {
	if title == "" {
		return ""
	}
	t := title
	if manufacturer != "" {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(manufacturer) + `\b`)
		t = re.ReplaceAllString(t, " ")
	}
	t = scaleRe.ReplaceAllString(t, " ")
	t = scaleLabelRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(t, " "))
}
