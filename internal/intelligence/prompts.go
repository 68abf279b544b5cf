package intelligence

import (
	"fmt"
	"strings"
)

// maxContentChars bounds page content per prompt. Listing pages routinely
// exceed model context once navigation chrome is included.
const maxContentChars = 60_000

const systemPrompt = "You analyze vehicle dealership websites for a listing " +
	"discovery system. Answer only with the requested JSON. Never invent " +
	"values: a field you cannot find is null or empty."

func truncate(content string) string {
	if len(content) <= maxContentChars {
		return content
	}
	return content[:maxContentChars]
}

func explorePrompt(baseURL, content string, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explore this dealership page (crawl depth %d): %s\n\n", depth, baseURL)
	b.WriteString("Identify URLs that lead to individual vehicle listings, tag each high, medium, or low ")
	b.WriteString("by how likely it is a vehicle detail page, and give a short reason. ")
	b.WriteString("Also list pagination URLs for further inventory pages and summarize the site structure.\n\n")
	b.WriteString("PAGE CONTENT:\n")
	b.WriteString(truncate(content))
	return b.String()
}

func analyzePrompt(url, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this vehicle listing page for extraction: %s\n\n", url)
	b.WriteString("Map each vehicle field (make, model, trim, year, price, mileage, condition, ")
	b.WriteString("features, images, description, location, vin) to a selector, name the extraction ")
	b.WriteString("method, and note challenges.\n\n")
	b.WriteString("PAGE CONTENT:\n")
	b.WriteString(truncate(content))
	return b.String()
}

func extractPrompt(url, content, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the vehicle listing from this page: %s\n\n", url)
	if hint != "" {
		fmt.Fprintf(&b, "Extraction hint: %s\n\n", hint)
	}
	b.WriteString("Return the vehicle's fields exactly as shown on the page. Keep prices and ")
	b.WriteString("mileage as displayed, including currency symbols or ranges. Use null for ")
	b.WriteString("anything not present.\n\n")
	b.WriteString("PAGE CONTENT:\n")
	b.WriteString(truncate(content))
	return b.String()
}

func validatePrompt(vehicleJSON, context string) string {
	var b strings.Builder
	b.WriteString("Validate this extracted vehicle listing. Rate completeness, precision, and ")
	b.WriteString("consistency as ratios in [0,1], combine them into an integer qualityScore in ")
	b.WriteString("[0,100], list concrete issues, and flag a likely duplicate.\n\n")
	b.WriteString("EXTRACTED LISTING:\n")
	b.WriteString(vehicleJSON)
	if context != "" {
		b.WriteString("\n\nCONTEXT:\n")
		b.WriteString(truncate(context))
	}
	return b.String()
}
