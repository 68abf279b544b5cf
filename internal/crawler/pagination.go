package crawler

import (
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// pageParams are the query parameters sites commonly use for page numbers.
var pageParams = []string{"page", "p", "pg", "pagina"}

// pathPageRe matches /page/N path segments.
var pathPageRe = regexp.MustCompile(`(?i)/page/(\d+)(?:/|$)`)

// pageNumber extracts the pagination index a URL refers to. A URL with no
// page marker is page 1.
func pageNumber(u *url.URL) int {
	q := u.Query()
	for _, param := range pageParams {
		v := q.Get(param)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}

	if m := pathPageRe.FindStringSubmatch(u.Path); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}

	return 1
}

// nextPageURL finds a link on the page referring to exactly current+1 on the
// same host. rel="next" links are checked first, then every anchor in
// document order. Requiring the exact successor index stops pagination loops
// on sites whose next link wraps around or jumps.
func nextPageURL(doc *goquery.Document, pageURL *url.URL, current int) string {
	want := current + 1

	var found string
	check := func(href string) bool {
		abs := absoluteURL(pageURL, href)
		if abs == "" {
			return false
		}
		u, err := url.Parse(abs)
		if err != nil || u.Host != pageURL.Host {
			return false
		}
		if pageNumber(u) != want {
			return false
		}
		found = abs
		return true
	}

	doc.Find(`a[rel="next"], link[rel="next"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		return !(ok && check(href))
	})
	if found != "" {
		return found
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		return !(ok && check(href))
	})

	return found
}
