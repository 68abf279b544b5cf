// Package generator proposes a source configuration from a live index
// page. It clusters the page's same-host links by leading path segment,
// picks the cluster that looks like vehicle detail pages, and derives a
// listing URL pattern plus allow and deny patterns from it. The proposal
// is a starting point for an operator, not a finished config; confidence
// reports how decisive the clustering was.
package generator

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Proposal is a generated source entry plus the evidence behind it.
type Proposal struct {
	ID                string
	Name              string
	SeedURL           string
	ListingURLPattern string
	AllowPatterns     []string
	DenyPatterns      []string
	Confidence        float64
	SampleURLs        []string
}

// Path segments that never lead to inventory.
var boilerplateSegments = map[string]bool{
	"about":     true,
	"contact":   true,
	"privacy":   true,
	"terms":     true,
	"login":     true,
	"signin":    true,
	"register":  true,
	"account":   true,
	"cart":      true,
	"blog":      true,
	"news":      true,
	"careers":   true,
	"financing": true,
	"service":   true,
	"parts":     true,
}

// Segments that suggest vehicle inventory when they head a cluster.
var inventorySegments = map[string]bool{
	"inventory":  true,
	"vehicles":   true,
	"cars":       true,
	"used":       true,
	"listings":   true,
	"stock":      true,
	"vehicle":    true,
	"voiture":    true,
	"occasion":   true,
	"fahrzeuge":  true,
	"gebraucht":  true,
	"usados":     true,
	"automobile": true,
}

const (
	minClusterSize      = 3
	maxSampleURLs       = 5
	segmentNameBonus    = 0.2
	detailTailBonus     = 0.15
	baseConfidence      = 0.5
	lowConfidenceFloor  = 0.3
	detailTailThreshold = 0.6
)

// detailTailRe matches path tails that look like one vehicle: a numeric
// id, a VIN-ish token, or a long hyphenated slug.
var detailTailRe = regexp.MustCompile(`(\d{4,}|[A-HJ-NPR-Z0-9]{11,17}|[a-z0-9]+(?:-[a-z0-9]+){3,})/?$`)

type cluster struct {
	segment string
	urls    []string
	detail  int
}

// Propose analyzes a fetched index page and derives a source entry. The
// document must have been parsed from the body served at seedURL.
func Propose(doc *goquery.Document, seedURL string) (*Proposal, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || seed.Host == "" {
		return nil, fmt.Errorf("seed url %q is not absolute: %w", seedURL, err)
	}

	clusters := clusterLinks(doc, seed)
	if len(clusters) == 0 {
		return nil, fmt.Errorf("no same-host link clusters of size %d or more on %s", minClusterSize, seedURL)
	}

	best := pickCluster(clusters)
	host := regexp.QuoteMeta(seed.Host)
	segment := regexp.QuoteMeta(best.segment)

	proposal := &Proposal{
		ID:                sourceID(seed.Host),
		Name:              seed.Host,
		SeedURL:           seedURL,
		ListingURLPattern: fmt.Sprintf(`^https?://%s/%s/[^?#]+`, host, segment),
		AllowPatterns: []string{
			fmt.Sprintf(`^https?://%s/%s/`, host, segment),
		},
		DenyPatterns: denyPatterns(host),
		Confidence:   confidence(best),
		SampleURLs:   samples(best.urls),
	}
	return proposal, nil
}

// clusterLinks groups the page's same-host links by first path segment,
// dropping boilerplate segments and clusters too small to be inventory.
func clusterLinks(doc *goquery.Document, seed *url.URL) []cluster {
	bysegment := make(map[string]*cluster)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link, err := seed.Parse(strings.TrimSpace(href))
		if err != nil || link.Host != seed.Host {
			return
		}
		link.Fragment = ""
		abs := link.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		segment := firstSegment(link.Path)
		if segment == "" || boilerplateSegments[segment] {
			return
		}

		c, ok := bysegment[segment]
		if !ok {
			c = &cluster{segment: segment}
			bysegment[segment] = c
		}
		c.urls = append(c.urls, abs)
		if detailTailRe.MatchString(strings.ToLower(link.Path)) {
			c.detail++
		}
	})

	out := make([]cluster, 0, len(bysegment))
	for _, c := range bysegment {
		if len(c.urls) >= minClusterSize {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].segment < out[j].segment
	})
	return out
}

// pickCluster prefers clusters whose segment names inventory, then the
// one with the most detail-looking tails, then the largest.
func pickCluster(clusters []cluster) cluster {
	best := clusters[0]
	for _, c := range clusters[1:] {
		if score(c) > score(best) {
			best = c
		}
	}
	return best
}

func score(c cluster) float64 {
	s := float64(len(c.urls)) + 10*float64(c.detail)
	if inventorySegments[c.segment] {
		s *= 2
	}
	return s
}

func confidence(c cluster) float64 {
	conf := baseConfidence
	if inventorySegments[c.segment] {
		conf += segmentNameBonus
	}
	if float64(c.detail)/float64(len(c.urls)) >= detailTailThreshold {
		conf += detailTailBonus
	}
	if len(c.urls) < 2*minClusterSize {
		conf -= lowConfidenceFloor * 0.5
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

func denyPatterns(quotedHost string) []string {
	return []string{
		fmt.Sprintf(`^https?://%s/(about|contact|privacy|terms|login|account|cart|blog|careers)`, quotedHost),
		`\.(pdf|jpg|jpeg|png|gif|css|js)$`,
	}
}

func firstSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	segment, _, _ := strings.Cut(trimmed, "/")
	return strings.ToLower(segment)
}

func sourceID(host string) string {
	id := strings.TrimPrefix(strings.ToLower(host), "www.")
	id = strings.ReplaceAll(id, ".", "-")
	return id
}

func samples(urls []string) []string {
	if len(urls) <= maxSampleURLs {
		return append([]string(nil), urls...)
	}
	return append([]string(nil), urls[:maxSampleURLs]...)
}
