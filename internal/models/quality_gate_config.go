package models

// FieldGroup is a named, orderable group of field names the ECP Calculator
// (§4.3) scores completeness against. Groups are cached per process by
// internal/store/cached and cleared via an admin hook.
type FieldGroup struct {
	Key       string   `json:"key" toml:"key"`
	Fields    []string `json:"fields" toml:"fields"`
	IsActive  bool     `json:"is_active" toml:"is_active"`
	SortOrder int      `json:"sort_order" toml:"sort_order"`
}

// ORFieldGroup is an OR-group of alternative field names where at least one
// populated field satisfies the whole group (§4.4 OR-group semantics).
type ORFieldGroup []string

// FieldExceptionRule waives an OR-group when a trigger field holds one of a
// set of case-insensitive values (§4.4 Style exceptions, e.g. Ruby port).
type FieldExceptionRule struct {
	TriggerField  string   `json:"trigger_field" toml:"trigger_field"`
	TriggerValues []string `json:"trigger_values" toml:"trigger_values"`
	WaivedGroup   ORFieldGroup `json:"waived_group" toml:"waived_group"`
}

// ProductTypeConfig is the Quality Gate's per-product-type configuration
// (§3 QualityGateConfig, FieldGroup, ProductTypeConfig).
type ProductTypeConfig struct {
	ProductType ProductTypeEnum `json:"product_type" toml:"product_type"`

	SkeletonRequiredFields []string `json:"skeleton_required_fields" toml:"skeleton_required_fields"`
	PartialRequiredFields  []string `json:"partial_required_fields" toml:"partial_required_fields"`
	BaselineRequiredFields []string `json:"baseline_required_fields" toml:"baseline_required_fields"`
	BaselineORFields       []ORFieldGroup `json:"baseline_or_fields" toml:"baseline_or_fields"`
	BaselineORExceptions   []FieldExceptionRule `json:"baseline_or_field_exceptions" toml:"baseline_or_field_exceptions"`
	EnrichedRequiredFields []string `json:"enriched_required_fields" toml:"enriched_required_fields"`
	EnrichedORFields       []ORFieldGroup `json:"enriched_or_fields" toml:"enriched_or_fields"`

	// CategoryExemptLabels lists category values (e.g. "blended scotch
	// whisky") whose products waive ExemptableFields from Partial and
	// Baseline requirements (§4.4 Category exemptions).
	CategoryExemptLabels []string `json:"category_exempt_labels" toml:"category_exempt_labels"`
	ExemptableFields     []string `json:"exemptable_fields" toml:"exemptable_fields"`
}

// QualityGateConfig aggregates per-product-type configuration and the
// ordered FieldGroup list consulted by the ECP Calculator. It is mutable
// only via admin and cached per process (§3).
type QualityGateConfig struct {
	SchemaVersion string                                   `json:"schema_version" toml:"schema_version"`
	ProductTypes  map[ProductTypeEnum]ProductTypeConfig     `json:"product_types" toml:"product_types"`
	FieldGroups   map[ProductTypeEnum][]FieldGroup          `json:"field_groups" toml:"field_groups"`
}

// DefaultCategoryExemptLabels is the blended-whisky exemption list (§4.4).
var DefaultCategoryExemptLabels = []string{
	"blended scotch whisky", "blended scotch", "blended whisky", "blended whiskey",
	"blended malt", "blended malt scotch whisky", "blended grain whisky",
	"canadian whisky", "canadian whiskey",
}

// DefaultProductTypeConfig returns the spec's hardcoded defaults (§4.4
// "Defaults when no config exists") for a product type. The spec's literal
// default field lists (primary_cask, age_statement, region, country,
// category) describe whiskey; port_wine gets an analogous default config
// substituting its own identity fields (producer_house for primary_cask,
// an indication_age/harvest_year OR-group for a literal age requirement) —
// see DESIGN.md Open Question decisions.
func DefaultProductTypeConfig(pt ProductTypeEnum) ProductTypeConfig {
	if pt == ProductTypePortWine {
		return ProductTypeConfig{
			ProductType:            pt,
			SkeletonRequiredFields: []string{"name"},
			PartialRequiredFields:  []string{"name", "brand", "abv"},
			BaselineRequiredFields: []string{
				"name", "brand", "abv", "volume_ml", "description",
				"producer_house", "primary_aromas", "finish_flavors", "palate_flavors",
			},
			BaselineORFields: []ORFieldGroup{
				{"indication_age", "harvest_year"},
			},
			BaselineORExceptions: []FieldExceptionRule{
				{
					TriggerField:  "style",
					TriggerValues: []string{"ruby", "reserve_ruby"},
					WaivedGroup:   ORFieldGroup{"indication_age", "harvest_year"},
				},
			},
			EnrichedRequiredFields: []string{"mouthfeel"},
			EnrichedORFields: []ORFieldGroup{
				{"complexity", "overall_complexity"},
				{"finishing_cask", "maturation_notes"},
			},
			CategoryExemptLabels: nil,
			ExemptableFields:     nil,
		}
	}
	return ProductTypeConfig{
		ProductType:            pt,
		SkeletonRequiredFields: []string{"name"},
		PartialRequiredFields:  []string{"name", "brand", "abv", "region", "country", "category"},
		BaselineRequiredFields: []string{
			"name", "brand", "abv", "region", "country", "category",
			"volume_ml", "description", "primary_aromas", "finish_flavors",
			"age_statement", "primary_cask", "palate_flavors",
		},
		BaselineORFields: nil,
		BaselineORExceptions: []FieldExceptionRule{
			{
				TriggerField:  "style",
				TriggerValues: []string{"ruby", "reserve_ruby"},
				WaivedGroup:   ORFieldGroup{"indication_age", "harvest_year"},
			},
		},
		EnrichedRequiredFields: []string{"mouthfeel"},
		EnrichedORFields: []ORFieldGroup{
			{"complexity", "overall_complexity"},
			{"finishing_cask", "maturation_notes"},
		},
		CategoryExemptLabels: DefaultCategoryExemptLabels,
		ExemptableFields:     []string{"primary_cask", "region"},
	}
}

// DefaultFieldGroups returns a reasonable default ECP field-group layout
// when no admin configuration has been loaded.
func DefaultFieldGroups(pt ProductTypeEnum) []FieldGroup {
	return []FieldGroup{
		{Key: "identity", Fields: []string{"name", "brand", "category", "country", "region"}, IsActive: true, SortOrder: 0},
		{Key: "specs", Fields: []string{"abv", "age_statement", "volume_ml", "price"}, IsActive: true, SortOrder: 1},
		{Key: "tasting", Fields: []string{
			"nose_description", "palate_description", "finish_description",
			"primary_aromas", "palate_flavors", "finish_flavors", "mouthfeel",
		}, IsActive: true, SortOrder: 2},
		{Key: "ratings", Fields: []string{"complexity", "overall_complexity", "balance", "drinkability"}, IsActive: true, SortOrder: 3},
		{Key: "production", Fields: []string{"distillery", "primary_cask", "finishing_cask", "maturation_notes"}, IsActive: true, SortOrder: 4},
	}
}
