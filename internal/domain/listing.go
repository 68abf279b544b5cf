package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// VehicleFields are the normalized attributes extracted from a listing page.
// Pointer fields stay nil when the page does not state a value; the pipeline
// never invents one.
type VehicleFields struct {
	Price       *float64    `db:"price"       json:"price,omitempty"`
	Currency    string      `db:"currency"    json:"currency,omitempty"`
	Year        *int        `db:"year"        json:"year,omitempty"`
	Make        string      `db:"make"        json:"make,omitempty"`
	Model       string      `db:"model"       json:"model,omitempty"`
	Trim        string      `db:"trim"        json:"trim,omitempty"`
	Mileage     *int        `db:"mileage"     json:"mileage,omitempty"`
	Condition   string      `db:"condition"   json:"condition,omitempty"`
	Location    string      `db:"location"    json:"location,omitempty"`
	VIN         string      `db:"vin"         json:"vin,omitempty"`
	ExternalID  string      `db:"external_id" json:"external_id,omitempty"`
	Description string      `db:"description" json:"description,omitempty"`
	Features    StringSlice `db:"features"    json:"features,omitempty"`
	PhotoURLs   StringSlice `db:"photo_urls"  json:"photo_urls,omitempty"`
}

// Listing is a validated vehicle listing ready for persistence.
type Listing struct {
	ID       string `db:"id"        json:"id"`
	SourceID string `db:"source_id" json:"source_id" validate:"required"`

	CanonicalURL string `db:"canonical_url" json:"canonical_url" validate:"required,url"`
	Title        string `db:"title"         json:"title,omitempty"`

	Vehicle VehicleFields `db:"-" json:"vehicle"`

	QualityScore int       `db:"quality_score" json:"quality_score" validate:"gte=0,lte=100"`
	ScrapedAt    time.Time `db:"scraped_at"    json:"scraped_at"    validate:"required"`

	// RawSnapshot holds the fetched page content when snapshot retention is
	// enabled. Excluded from the dedup content hash.
	RawSnapshot string `db:"raw_snapshot" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DedupKey derives the deduplication key for the listing under the source's
// key spec. Falls back to the canonical URL when the preferred attribute is
// absent so a listing always has a key.
func (l *Listing) DedupKey(kind DedupKeyKind) string {
	switch kind {
	case DedupByVIN:
		if v := strings.TrimSpace(l.Vehicle.VIN); v != "" {
			return "vin:" + strings.ToUpper(v)
		}
	case DedupByExternalID:
		if v := strings.TrimSpace(l.Vehicle.ExternalID); v != "" {
			return "ext:" + l.SourceID + ":" + v
		}
	case DedupByCanonicalURL:
	}
	return "url:" + l.CanonicalURL
}

// ContentHash fingerprints the fields that matter for change detection.
// Two listings with equal hashes are the same offer; persisting the second
// is a duplicate, not an update.
func (l *Listing) ContentHash() string {
	var b strings.Builder
	writeField := func(v any) {
		fmt.Fprintf(&b, "%v|", v)
	}
	if l.Vehicle.Price != nil {
		writeField(*l.Vehicle.Price)
	} else {
		writeField("")
	}
	if l.Vehicle.Year != nil {
		writeField(*l.Vehicle.Year)
	} else {
		writeField("")
	}
	if l.Vehicle.Mileage != nil {
		writeField(*l.Vehicle.Mileage)
	} else {
		writeField("")
	}
	writeField(strings.ToLower(l.Vehicle.Make))
	writeField(strings.ToLower(l.Vehicle.Model))
	writeField(strings.ToLower(l.Vehicle.Trim))
	writeField(strings.ToLower(l.Title))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// UpsertOutcome classifies what an idempotent upsert did.
type UpsertOutcome string

const (
	// OutcomeCreated means a new listing row was inserted.
	OutcomeCreated UpsertOutcome = "created"
	// OutcomeUpdated means an existing listing changed and was refreshed.
	OutcomeUpdated UpsertOutcome = "updated"
	// OutcomeDuplicate means an identical listing already existed; nothing
	// was written.
	OutcomeDuplicate UpsertOutcome = "duplicate"
)
