// Package parse extracts listings from fetched marketplace search pages.
package parse

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cardhawk/internal/domain"
	"cardhawk/internal/match"
)

// Selectors for the marketplace search results markup.
const (
	selItemCard     = "li.itemCard"
	selItemTitle    = "div.itemCard__itemName a"
	selItemPrice    = "div.g-priceDetails span.g-price"
	selItemImage    = "img"
	selNextPage     = "a.pagination__next:not(.pagination__next--disabled)"
	attrImageLazy   = "data-src"
	attrImageSource = "src"
)

// auctionIDPattern pulls the auction id out of a listing URL path, e.g.
// /item/jdirectitems/auction/x12345678 -> x12345678.
var auctionIDPattern = regexp.MustCompile(`/([a-z]\d+)(?:\?|$)`)

// priceAmountPattern matches the numeric part of a displayed price.
var priceAmountPattern = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// PageResult is one parsed page: the listings found plus the count of entries
// dropped for missing required fields.
type PageResult struct {
	Listings []domain.RawListing
	Skipped  int
}

// Parser turns raw search page HTML into listings.
type Parser struct {
	baseURL string
	log     *slog.Logger
}

// NewParser builds a Parser; baseURL resolves relative listing links.
func NewParser(baseURL string, log *slog.Logger) *Parser {
	return &Parser{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With(slog.String("component", "parse")),
	}
}

// Page parses one fetched search page. A card missing its title, price, or
// auction id is skipped and counted, never fails the page.
func (p *Parser) Page(page domain.RawPage) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return PageResult{}, fmt.Errorf("parse: page %d of %q: %w", page.Number, page.Query, err)
	}

	var res PageResult
	doc.Find(selItemCard).Each(func(_ int, card *goquery.Selection) {
		listing, ok := p.listing(card, page.FetchedAt)
		if !ok {
			res.Skipped++
			return
		}
		res.Listings = append(res.Listings, listing)
	})

	p.log.Debug("page parsed",
		slog.String("query", page.Query),
		slog.Int("page", page.Number),
		slog.Int("listings", len(res.Listings)),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// HasNextPage reports whether the page links to a further results page.
func (p *Parser) HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selNextPage).Length() > 0
}

func (p *Parser) listing(card *goquery.Selection, fetchedAt time.Time) (domain.RawListing, bool) {
	anchor := card.Find(selItemTitle).First()
	title := match.Normalize(anchor.Text())
	href, _ := anchor.Attr("href")
	if title == "" || href == "" {
		return domain.RawListing{}, false
	}

	id, ok := auctionID(href)
	if !ok {
		return domain.RawListing{}, false
	}

	price, ok := parsePrice(card.Find(selItemPrice).First().Text())
	if !ok {
		return domain.RawListing{}, false
	}

	var images []string
	card.Find(selItemImage).Each(func(_ int, img *goquery.Selection) {
		src, exists := img.Attr(attrImageLazy)
		if !exists || src == "" {
			src, _ = img.Attr(attrImageSource)
		}
		if src != "" && !strings.HasPrefix(src, "data:") {
			images = append(images, src)
		}
	})

	seller := strings.TrimSpace(card.Find("div.itemCard__seller").First().Text())

	return domain.RawListing{
		ID:        id,
		Title:     title,
		Price:     price,
		Seller:    seller,
		ImageURLs: images,
		URL:       p.absolute(href),
		FetchedAt: fetchedAt,
	}, true
}

func (p *Parser) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return p.baseURL + href
}

// auctionID extracts the marketplace auction id from a listing URL.
func auctionID(href string) (string, bool) {
	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}
	m := auctionIDPattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parsePrice reads a displayed price like "5,800 円" or "$38.50". Yen is the
// default currency; the amount is kept in the currency shown, never converted
// here.
func parsePrice(text string) (domain.Money, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Money{}, false
	}

	cur := domain.CurrencyJPY
	if strings.ContainsAny(text, "$") || strings.Contains(strings.ToUpper(text), "USD") {
		cur = domain.CurrencyUSD
	}

	m := priceAmountPattern.FindString(text)
	if m == "" {
		return domain.Money{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || amount <= 0 {
		return domain.Money{}, false
	}
	return domain.Money{Amount: amount, Currency: cur}, true
}
