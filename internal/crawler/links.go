package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/carcrawl/carcrawl/internal/urlpolicy"
)

// skipPrefixes are href values that never lead to a crawlable page.
var skipPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// candidateLinks returns the absolute listing URLs on the page, in document
// order, matching the source's listing pattern and passing the URL policy.
// Duplicate hrefs collapse to their first occurrence.
func candidateLinks(
	doc *goquery.Document,
	pageURL *url.URL,
	listingPattern *regexp.Regexp,
	policy *urlpolicy.Policy,
) []string {
	seen := make(map[string]struct{})
	var out []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := absoluteURL(pageURL, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		if !listingPattern.MatchString(abs) {
			return
		}
		if !policy.Allowed(abs) {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})

	return out
}

// absoluteURL resolves an href against the page URL, dropping fragments and
// non-navigational schemes.
func absoluteURL(pageURL *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(href, prefix) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := pageURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
