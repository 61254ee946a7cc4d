package pricetext

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"diecastpro/internal/currency"
)

// metaProps are meta-tag properties commonly carrying the product price.
var metaProps = []string{"og:price:amount", "product:price:amount"}

var metaCurrencyProps = []string{"og:price:currency", "product:price:currency"}

// selectorCandidates are CSS selectors for known marketplace price elements
// (eBay ids and generic storefront classes). Checked last, after metadata.
var selectorCandidates = []string{
	`span[itemprop="price"]`,
	`meta[itemprop="price"]`,
	`#prcIsum`,
	`#mm-saleDscPrc`,
	`#prcIsum_bidPrice`,
	`.x-price-primary .ux-textspans`,
	`.price .amount`,
	`.product-price .amount`,
	`.price-current`,
	`.price .price`,
}

// ExtractStructured looks for price metadata in fixed priority order: meta
// tags, itemprop microdata, JSON-LD product/offer objects, then marketplace
// CSS selectors. Returns nil when no candidate yields a positive amount.
func ExtractStructured(doc *goquery.Document) *Price {
	if doc == nil {
		return nil
	}

	// 1) Meta tags.
	for _, prop := range metaProps {
		content, ok := doc.Find(`meta[property="` + prop + `"]`).Attr("content")
		if !ok {
			continue
		}
		if amt, ok := ParseAmount(content); ok && amt.IsPositive() {
			return &Price{Amount: amt, Currency: metaCurrency(doc)}
		}
	}

	// 2) itemprop microdata.
	if el := doc.Find(`[itemprop="price"]`).First(); el.Length() > 0 {
		content, ok := el.Attr("content")
		if !ok {
			content = strings.TrimSpace(el.Text())
		}
		if amt, ok := ParseAmount(content); ok && amt.IsPositive() {
			cur := ""
			if curEl := doc.Find(`[itemprop="priceCurrency"]`).First(); curEl.Length() > 0 {
				cur, ok = curEl.Attr("content")
				if !ok {
					cur = strings.TrimSpace(curEl.Text())
				}
			}
			if cur != "" {
				cur = currency.Normalize(cur)
			}
			return &Price{Amount: amt, Currency: cur}
		}
	}

	// 3) JSON-LD product/offers.
	if p := extractJSONLD(doc); p != nil {
		return p
	}

	// 4) Marketplace CSS selectors.
	for _, sel := range selectorCandidates {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		content, ok := el.Attr("content")
		if !ok {
			content = strings.TrimSpace(el.Text())
		}
		if amt, ok := ParseAmount(content); ok && amt.IsPositive() {
			cur := ""
			if curEl := doc.Find(`[itemprop="priceCurrency"]`).First(); curEl.Length() > 0 {
				c, ok := curEl.Attr("content")
				if !ok {
					c = strings.TrimSpace(curEl.Text())
				}
				if c != "" {
					cur = currency.Normalize(c)
				}
			}
			if cur == "" {
				cur = metaCurrency(doc)
			}
			return &Price{Amount: amt, Currency: cur}
		}
	}

	return nil
}

func metaCurrency(doc *goquery.Document) string {
	for _, prop := range metaCurrencyProps {
		if content, ok := doc.Find(`meta[property="` + prop + `"]`).Attr("content"); ok && content != "" {
			return currency.Normalize(content)
		}
	}
	return ""
}

// jsonldNode is a permissive view over a JSON-LD object: price fields may be
// numbers or strings, offers may be an object or an array.
type jsonldNode struct {
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
	Offers        json.RawMessage `json:"offers"`
}

func extractJSONLD(doc *goquery.Document) *Price {
	var found *Price
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		for _, node := range decodeNodes(raw) {
			if p := priceFromNode(node); p != nil {
				found = p
				return false
			}
		}
		return true
	})
	return found
}

func decodeNodes(raw string) []jsonldNode {
	var one jsonldNode
	if err := json.Unmarshal([]byte(raw), &one); err == nil {
		return []jsonldNode{one}
	}
	var many []jsonldNode
	if err := json.Unmarshal([]byte(raw), &many); err == nil {
		return many
	}
	return nil
}

func priceFromNode(n jsonldNode) *Price {
	amt, ok := rawAmount(n.Price)
	cur := ""
	if n.PriceCurrency != "" {
		cur = currency.Normalize(n.PriceCurrency)
	}

	if len(n.Offers) > 0 {
		var offer jsonldNode
		var offers []jsonldNode
		if err := json.Unmarshal(n.Offers, &offer); err == nil {
			offers = []jsonldNode{offer}
		} else if err := json.Unmarshal(n.Offers, &offers); err != nil {
			offers = nil
		}
		for _, off := range offers {
			if a, aok := rawAmount(off.Price); aok {
				if !ok {
					amt, ok = a, true
				}
				if cur == "" && off.PriceCurrency != "" {
					cur = currency.Normalize(off.PriceCurrency)
				}
			}
		}
	}

	if ok && amt.IsPositive() {
		return &Price{Amount: amt, Currency: cur}
	}
	return nil
}

func rawAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return decimal.NewFromFloat(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseAmount(s)
	}
	return decimal.Zero, false
}
