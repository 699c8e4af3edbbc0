package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Brand is created on demand by the Product Writer (§4.2 step 5) the first
// time a new brand name is seen.
type Brand struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Slug       string    `db:"slug" json:"slug"`
	Name       string    `db:"name" json:"name"`
	Producer   *string   `db:"producer" json:"producer,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Product is the canonical record produced by the pipeline. Field names
// mirror the flat keys the Normalizer (§4.1) produces, so a Product's
// ToFieldMap() round-trips through internal/ecp and internal/qualitygate
// without a second mapping layer.
type Product struct {
	ID       uuid.UUID       `db:"id" json:"id"`
	Name     string          `db:"name" json:"name"`
	BrandID  *uuid.UUID      `db:"brand_id" json:"brand_id,omitempty"`
	Brand    *string         `db:"-" json:"brand,omitempty"` // denormalized brand name, populated by joins

	ProductType ProductTypeEnum `db:"product_type" json:"product_type"`
	Category    *string         `db:"category" json:"category,omitempty"`
	Style       *string         `db:"style" json:"style,omitempty"` // e.g. "ruby" for port wine

	ABV          *decimal.Decimal `db:"abv" json:"abv,omitempty"`
	AgeStatement *int             `db:"age_statement" json:"age_statement,omitempty"`
	VolumeML     *int             `db:"volume_ml" json:"volume_ml,omitempty"`
	Price        *decimal.Decimal `db:"price" json:"price,omitempty"`

	Country     *string `db:"country" json:"country,omitempty"`
	Region      *string `db:"region" json:"region,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	// Tasting profile.
	NoseDescription   *string `db:"nose_description" json:"nose_description,omitempty"`
	PalateDescription *string `db:"palate_description" json:"palate_description,omitempty"`
	FinishDescription *string `db:"finish_description" json:"finish_description,omitempty"`
	PrimaryAromas     []string `db:"primary_aromas" json:"primary_aromas,omitempty"`
	PalateFlavors     []string `db:"palate_flavors" json:"palate_flavors,omitempty"`
	FinishFlavors     []string `db:"finish_flavors" json:"finish_flavors,omitempty"`

	// Evolution (tasting_evolution flattening, §4.1).
	InitialTaste       *string `db:"initial_taste" json:"initial_taste,omitempty"`
	MidPalateEvolution *string `db:"mid_palate_evolution" json:"mid_palate_evolution,omitempty"`
	AromaEvolution     *string `db:"aroma_evolution" json:"aroma_evolution,omitempty"`
	FinishEvolution    *string `db:"finish_evolution" json:"finish_evolution,omitempty"`
	FinalNotes         *string `db:"final_notes" json:"final_notes,omitempty"`

	// Appearance.
	ColorDescription *string `db:"color_description" json:"color_description,omitempty"`
	ColorIntensity   *string `db:"color_intensity" json:"color_intensity,omitempty"`
	Clarity          *string `db:"clarity" json:"clarity,omitempty"`
	Viscosity        *string `db:"viscosity" json:"viscosity,omitempty"`

	Mouthfeel    *string          `db:"mouthfeel" json:"mouthfeel,omitempty"`
	FinishLength *string          `db:"finish_length" json:"finish_length,omitempty"`
	FoodPairings *string          `db:"food_pairings" json:"food_pairings,omitempty"` // comma-separated (§4.1)

	// Numeric ratings (ratings.* flattening, §4.1). 1-10 scale.
	FlavorIntensity    *decimal.Decimal `db:"flavor_intensity" json:"flavor_intensity,omitempty"`
	Complexity         *decimal.Decimal `db:"complexity" json:"complexity,omitempty"`
	Warmth             *decimal.Decimal `db:"warmth" json:"warmth,omitempty"`
	Dryness            *decimal.Decimal `db:"dryness" json:"dryness,omitempty"`
	Balance            *decimal.Decimal `db:"balance" json:"balance,omitempty"`
	OverallComplexity  *decimal.Decimal `db:"overall_complexity" json:"overall_complexity,omitempty"`
	Uniqueness         *decimal.Decimal `db:"uniqueness" json:"uniqueness,omitempty"`
	Drinkability       *decimal.Decimal `db:"drinkability" json:"drinkability,omitempty"`

	// Production (production.* flattening, §4.1).
	Distillery         *string `db:"distillery" json:"distillery,omitempty"`
	Bottler            *string `db:"bottler" json:"bottler,omitempty"`
	PeatPPM            *decimal.Decimal `db:"peat_ppm" json:"peat_ppm,omitempty"`
	PeatLevel          *string `db:"peat_level" json:"peat_level,omitempty"`
	NaturalColor       *bool   `db:"natural_color" json:"natural_color,omitempty"`
	NonChillFiltered   *bool   `db:"non_chill_filtered" json:"non_chill_filtered,omitempty"`
	CaskStrength       *bool   `db:"cask_strength" json:"cask_strength,omitempty"`
	SingleCask         *bool   `db:"single_cask" json:"single_cask,omitempty"`
	Peated             *bool   `db:"peated" json:"peated,omitempty"`
	PrimaryCask        *string `db:"primary_cask" json:"primary_cask,omitempty"`
	FinishingCask      *string `db:"finishing_cask" json:"finishing_cask,omitempty"`
	WoodType           *string `db:"wood_type" json:"wood_type,omitempty"`
	CaskTreatment      *string `db:"cask_treatment" json:"cask_treatment,omitempty"`
	MaturationNotes    *string `db:"maturation_notes" json:"maturation_notes,omitempty"`

	// Port-wine-specific identity fields used by the Ruby style exception (§4.4).
	IndicationAge *string `db:"indication_age" json:"indication_age,omitempty"`
	HarvestYear   *string `db:"harvest_year" json:"harvest_year,omitempty"`
	ProducerHouse *string `db:"producer_house" json:"producer_house,omitempty"`

	Images  []string `db:"images" json:"images,omitempty"`
	Ratings []string `db:"ratings" json:"ratings,omitempty"` // folded scalar ratings, see §4.1

	SourceURL       *string             `db:"source_url" json:"source_url,omitempty"`
	DiscoverySource DiscoverySourceEnum `db:"discovery_source" json:"discovery_source"`

	Status               ProductStatusEnum `db:"status" json:"status"`
	CompletenessScore    decimal.Decimal   `db:"completeness_score" json:"completeness_score"`
	ECPTotal             decimal.Decimal   `db:"ecp_total" json:"ecp_total"`
	ECPByGroup           json.RawMessage   `db:"ecp_by_group" json:"ecp_by_group,omitempty"`
	SourceCount          int               `db:"source_count" json:"source_count"`
	VerifiedFields       []string          `db:"verified_fields" json:"verified_fields,omitempty"`
	Fingerprint          string            `db:"fingerprint" json:"fingerprint"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Award is a competition result evidence row (§3 Child evidence).
type Award struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProductID   uuid.UUID `db:"product_id" json:"product_id"`
	Competition string    `db:"competition" json:"competition"`
	Year        int       `db:"year" json:"year"`
	Medal       string    `db:"medal" json:"medal"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Score       *decimal.Decimal `db:"score" json:"score,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Rating is a third-party numeric score evidence row.
type Rating struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Source    string          `db:"source" json:"source"`
	Score     decimal.Decimal `db:"score" json:"score"`
	Max       decimal.Decimal `db:"max_score" json:"max_score"`
	Reviewer  *string         `db:"reviewer" json:"reviewer,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Image is an image evidence row.
type Image struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	URL       string    `db:"url" json:"url"`
	TypeTag   string    `db:"type_tag" json:"type_tag"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductSource records a page a product was seen on (§3 Child evidence).
type ProductSource struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProductID uuid.UUID  `db:"product_id" json:"product_id"`
	URL       string     `db:"url" json:"url"`
	SourceType SourceTypeEnum `db:"source_type" json:"source_type"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ProductFieldSource records which URL supplied which field, with what
// confidence (§4.2 step 7).
type ProductFieldSource struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ProductID  uuid.UUID       `db:"product_id" json:"product_id"`
	URL        string          `db:"url" json:"url"`
	FieldName  string          `db:"field_name" json:"field_name"`
	Confidence decimal.Decimal `db:"confidence" json:"confidence"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// CrawledSource is the per-URL content cache (§3, §4.5 Cache policy).
type CrawledSource struct {
	URL              string               `db:"url" json:"url"`
	RawContent       string               `db:"raw_content" json:"-"`
	ContentHash      string               `db:"content_hash" json:"content_hash"`
	Title            *string              `db:"title" json:"title,omitempty"`
	SourceType       SourceTypeEnum       `db:"source_type" json:"source_type"`
	ExtractionStatus ExtractionStatusEnum `db:"extraction_status" json:"extraction_status"`
	LastError        *string              `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// MaxRawContentBytes is the cache storage ceiling (§3).
const MaxRawContentBytes = 500 * 1024

// IsUsableCacheHit reports whether the cached row satisfies §4.5's cache-hit
// condition: status processed/needs_review AND non-empty content.
func (c *CrawledSource) IsUsableCacheHit() bool {
	if c == nil {
		return false
	}
	if c.RawContent == "" {
		return false
	}
	return c.ExtractionStatus == ExtractionStatusProcessed || c.ExtractionStatus == ExtractionStatusNeedsReview
}
