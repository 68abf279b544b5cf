package intelligence

// Candidate is a listing URL surfaced during exploration, tagged with how
// likely it is to be a vehicle detail page.
type Candidate struct {
	URL      string `json:"url"`
	Priority string `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

// ExploreResult describes a page's structure and the listing URLs found
// on it.
type ExploreResult struct {
	SiteSummary    string      `json:"siteSummary"`
	Confidence     float64     `json:"confidence"`
	Candidates     []Candidate `json:"candidates"`
	PaginationURLs []string    `json:"paginationUrls"`
}

// AnalyzeResult proposes an extraction strategy for a page.
type AnalyzeResult struct {
	Method          string            `json:"method"`
	Confidence      float64           `json:"confidence"`
	Selectors       map[string]string `json:"selectors"`
	Challenges      []string          `json:"challenges"`
	Recommendations []string          `json:"recommendations"`
}

// RawVehicle is the extract stage's output before normalization. Numeric
// fields arrive as whatever the model produced: a number, a formatted
// string like "$12,999", or a range like "2019-2021".
type RawVehicle struct {
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	Trim        string   `json:"trim"`
	Year        any      `json:"year"`
	Price       any      `json:"price"`
	Mileage     any      `json:"mileage"`
	Condition   string   `json:"condition"`
	Features    []string `json:"features"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	VIN         string   `json:"vin"`
	ExternalID  string   `json:"externalId"`
	Title       string   `json:"title"`
}

// ValidateResult scores an extracted vehicle. QualityScore is an integer
// in [0,100] combining the three component ratios; models occasionally
// emit it as a float, so decoding goes through a wire form that rounds.
type ValidateResult struct {
	IsValid         bool     `json:"isValid"`
	Completeness    float64  `json:"completeness"`
	Precision       float64  `json:"precision"`
	Consistency     float64  `json:"consistency"`
	QualityScore    int      `json:"qualityScore"`
	Issues          []string `json:"issues"`
	LikelyDuplicate bool     `json:"likelyDuplicate"`
	Recommendations []string `json:"recommendations"`
}
