package gumtree

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"gumtree-scraper/models"
	"gumtree-scraper/normalize"
	"gumtree-scraper/utils"
)

var (
	descriptionClasses = []*regexp.Regexp{
		regexp.MustCompile(`(?i)description`),
		regexp.MustCompile(`(?i)content|body`),
	}
	locationClass = regexp.MustCompile(`(?i)location|area|suburb|address`)
	revealText    = regexp.MustCompile(`(?i)show (?:phone )?number|reveal`)
)

// sellerAreas are the detail-page regions where a seller's number is printed, in priority order.
var sellerAreas = []string{
	"[data-testid='reveal-number']",
	"[data-testid='pageSideColumn']",
	"[data-testid='seller-profile']",
	"[data-testid='click-show-number']",
	".vip-contact, .contact, .seller, .seller-card",
}

const revealAffordance = "[data-testid='reveal-number'], [data-testid='click-show-number'], [data-reveal-phone]"

// Extractor turns results and detail pages into stubs and listings.
type Extractor struct {
	baseURL string
}

func NewExtractor(baseURL string) *Extractor {
	return &Extractor{baseURL: baseURL}
}

// ParseResultsPage returns the listing stubs on a results page in document order,
// de-duplicated by URL.
func (e *Extractor) ParseResultsPage(html, pageURL string) ([]models.Stub, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	base := pageURL
	if base == "" {
		base = e.baseURL
	}

	seen := utils.NewKeySet()
	var stubs []models.Stub

	doc.Find("a[href*='/s-ad/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := absoluteURL(base, href)
		if abs == "" || !seen.Add(abs) {
			return
		}

		title := normalize.Text(a.Text())
		if title == "" {
			title = normalize.Text(a.AttrOr("aria-label", a.AttrOr("title", "")))
		}
		location, category := slugParts(abs)

		stubs = append(stubs, models.Stub{
			JobID:        AdIDFromURL(abs),
			Title:        title,
			URL:          abs,
			Location:     location,
			CategoryName: category,
		})
	})

	return stubs, nil
}

// ParseDetailPage extracts a full listing from its detail page. Dates are resolved against now.
func (e *Extractor) ParseDetailPage(html, listingURL string, now time.Time) (models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Listing{}, fmt.Errorf("parse detail page: %w", err)
	}

	l := models.Listing{
		URL:       listingURL,
		ScrapedAt: now,
		Success:   true,
	}

	l.Title = normalize.Text(doc.Find("h1").First().Text())
	if l.Title == "" {
		l.Title = normalize.Text(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	}

	blocks := doc.Find("div[class], section[class], article[class]")
	for _, class := range descriptionClasses {
		if l.Description = firstMatchingText(blocks, class); l.Description != "" {
			break
		}
	}

	slugLocation, slugCategory := slugParts(listingURL)
	l.Location = firstMatchingText(doc.Find("span[class], div[class], p[class]"), locationClass)
	if l.Location == "" {
		l.Location = slugLocation
	}

	l.CategoryName = normalize.Text(doc.Find("[class*='breadcrumb'] a, nav[aria-label*='readcrumb'] a").Last().Text())
	if l.CategoryName == "" {
		l.CategoryName = slugCategory
	}

	attrs := attributes(doc)
	l.JobID = strings.TrimSpace(attrs["ad id"])
	if l.JobID == "" {
		l.JobID = AdIDFromURL(listingURL)
	}
	l.CreationDate = normalize.ParseDatePtr(firstNonEmpty(attrs["date listed"], attrs["listed"], attrs["posted"]), now)
	l.LastEdited = normalize.ParseDatePtr(firstNonEmpty(attrs["last edited"], attrs["edited"]), now)

	e.applyPhone(&l, doc)
	return l, nil
}

// applyPhone fills the phone fields. A number printed in the description wins over
// every other source, and a found number suppresses the reveal URL.
func (e *Extractor) applyPhone(l *models.Listing, doc *goquery.Document) {
	phone, _ := normalize.ExtractPhone(l.Description)
	if phone == "" {
		phone = phoneFromPage(doc)
	}

	revealURL := ""
	if node := revealNode(doc); node != nil {
		revealURL = absoluteURL(l.URL, firstNonEmpty(node.AttrOr("href", ""), node.AttrOr("data-href", "")))
		if revealURL == "" {
			revealURL = l.URL
		}
	}

	l.Phone = phone
	l.PhoneNumberExists = phone != "" || revealURL != ""
	if phone == "" {
		l.PhoneRevealURL = revealURL
	}
}

func phoneFromPage(doc *goquery.Document) string {
	var phone string

	doc.Find("a[href^='tel:']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		phone, _ = normalize.NormalizeAUPhone(strings.TrimPrefix(a.AttrOr("href", ""), "tel:"))
		return phone == ""
	})
	if phone != "" {
		return phone
	}

	for _, sel := range sellerAreas {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			phone, _ = normalize.ExtractPhone(normalize.Text(s.Text()))
			return phone == ""
		})
		if phone != "" {
			return phone
		}
	}

	doc.Find("meta[content]").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		phone, _ = normalize.ExtractPhone(m.AttrOr("content", ""))
		return phone == ""
	})
	if phone != "" {
		return phone
	}

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		phone = phoneInJSON(data)
		return phone == ""
	})
	return phone
}

// phoneInJSON walks decoded JSON-LD looking for telephone-like keys.
func phoneInJSON(v any) string {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			key := strings.ToLower(k)
			if key == "telephone" || key == "phone" || key == "phonenumber" {
				if s, ok := val.(string); ok {
					if p, ok := normalize.NormalizeAUPhone(s); ok {
						return p
					}
				}
			}
		}
		for _, val := range x {
			if p := phoneInJSON(val); p != "" {
				return p
			}
		}
	case []any:
		for _, val := range x {
			if p := phoneInJSON(val); p != "" {
				return p
			}
		}
	}
	return ""
}

func revealNode(doc *goquery.Document) *goquery.Selection {
	if s := doc.Find(revealAffordance).First(); s.Length() > 0 {
		return s
	}
	var found *goquery.Selection
	doc.Find("button, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if revealText.MatchString(s.Text()) {
			found = s
			return false
		}
		return true
	})
	return found
}

// attributes collects the "name: value" pairs of the ad details block, keyed by
// lower-cased name without a trailing colon.
func attributes(doc *goquery.Document) map[string]string {
	attrs := map[string]string{}
	put := func(name, value string) {
		name = strings.ToLower(strings.TrimSuffix(normalize.Text(name), ":"))
		value = normalize.Text(value)
		if name != "" && value != "" {
			if _, exists := attrs[name]; !exists {
				attrs[name] = value
			}
		}
	}

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		put(dt.Text(), dt.NextFiltered("dd").Text())
	})
	doc.Find("[class*='attribute']").Each(func(_ int, s *goquery.Selection) {
		name := s.Find("[class*='name'], [class*='label']").First()
		value := s.Find("[class*='value']").First()
		if name.Length() > 0 && value.Length() > 0 {
			put(name.Text(), value.Text())
		}
	})
	return attrs
}

func firstMatchingText(sel *goquery.Selection, class *regexp.Regexp) string {
	var text string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !class.MatchString(s.AttrOr("class", "")) {
			return true
		}
		text = normalize.Text(s.Text())
		return text == ""
	})
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
