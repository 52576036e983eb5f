package gumtree

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gumtree-scraper/normalize"
)

var (
	// trailing category id segment, e.g. /c21210l3008839
	categoryIDSegment = regexp.MustCompile(`/c\d[a-z0-9]*/?$`)
	adIDFromURL       = regexp.MustCompile(`/(\d+)(?:\?|$)`)
)

// CategoryURL turns a category target (path such as "s-farming-veterinary/nsw/c21210l3008839"
// or an absolute URL) into an absolute URL without query or fragment.
func CategoryURL(baseURL, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("empty category target")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(category)
	if err != nil {
		return "", fmt.Errorf("parse category %q: %w", category, err)
	}
	if !ref.IsAbs() {
		ref = base.ResolveReference(&url.URL{Path: "/" + strings.TrimPrefix(ref.Path, "/")})
	}
	ref.RawQuery = ""
	ref.Fragment = ""
	return ref.String(), nil
}

// PageURL builds the URL of results page n (1-based). Page 1 is the category URL itself;
// later pages put /page-N in front of the trailing category id segment.
func PageURL(baseURL, category string, page int, location string) (string, error) {
	catURL, err := CategoryURL(baseURL, category)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(catURL)
	if err != nil {
		return "", err
	}

	if page > 1 {
		if loc := categoryIDSegment.FindStringIndex(u.Path); loc != nil {
			u.Path = u.Path[:loc[0]] + fmt.Sprintf("/page-%d", page) + u.Path[loc[0]:]
		} else {
			u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/page-%d/", page)
		}
	}

	if location = strings.TrimSpace(location); location != "" {
		q := url.Values{}
		q.Set("location", location)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// AdIDFromURL returns the trailing numeric ad id of a listing URL, or "".
func AdIDFromURL(u string) string {
	if m := adIDFromURL.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

// slugParts extracts the location and category names encoded in
// /s-ad/<location>/<category>/<title>/<id>.
func slugParts(listingURL string) (location, category string) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", ""
	}
	_, rest, ok := strings.Cut(u.Path, "/s-ad/")
	if !ok {
		return "", ""
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) >= 3 {
		location = normalize.TitleCase(parts[0])
		category = normalize.TitleCase(parts[1])
	} else if len(parts) >= 2 {
		location = normalize.TitleCase(parts[0])
	}
	return location, category
}

func absoluteURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String()
}
