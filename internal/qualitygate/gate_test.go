package qualitygate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/models"
)

func whiskeyBaselineFields() models.FieldMap {
	return models.FieldMap{
		"name": "Glen Foo 12", "brand": "Glen Foo", "abv": 40.0,
		"region": "Speyside", "country": "Scotland", "category": "single malt scotch whisky",
		"volume_ml": 700.0, "description": "A fine dram.",
		"primary_aromas": []string{"vanilla", "oak"}, "finish_flavors": []string{"pepper"},
		"age_statement": 12, "primary_cask": "ex-bourbon", "palate_flavors": []string{"honey"},
	}
}

func TestAssess_MissingNameRejects(t *testing.T) {
	a := Assess(Input{
		Fields:      models.FieldMap{"brand": "Foo"},
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	if a.Status != models.ProductStatusRejected {
		t.Fatalf("status = %v, want rejected", a.Status)
	}
	if a.RejectionReason == "" {
		t.Fatalf("expected a rejection reason")
	}
}

func TestAssess_ECPBoundary_8999IsEnriched(t *testing.T) {
	fields := whiskeyBaselineFields()
	fields["mouthfeel"] = "oily"
	fields["complexity"] = 7
	fields["finishing_cask"] = "sherry"
	ecpTotal := decimal.NewFromFloat(89.99)
	a := Assess(Input{
		Fields:         fields,
		ProductType:    models.ProductTypeWhiskey,
		Config:         models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
		PrecomputedECP: &ecpTotal,
	})
	if a.Status != models.ProductStatusEnriched {
		t.Fatalf("status = %v, want enriched at ecp_total=89.99", a.Status)
	}
}

func TestAssess_ECPBoundary_9000IsComplete(t *testing.T) {
	fields := whiskeyBaselineFields()
	ecpTotal := decimal.NewFromFloat(90.00)
	a := Assess(Input{
		Fields:         fields,
		ProductType:    models.ProductTypeWhiskey,
		Config:         models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
		PrecomputedECP: &ecpTotal,
	})
	if a.Status != models.ProductStatusComplete {
		t.Fatalf("status = %v, want complete at ecp_total=90.00", a.Status)
	}
	if a.NeedsEnrichment {
		t.Fatalf("complete products should not need further enrichment")
	}
}

// TestAssess_RubyPortWaivesAgeOR exercises the end-to-end Ruby-style port
// wine scenario: no indication_age/harvest_year supplied, style=ruby waives
// the OR-group, and the product lands on Baseline.
func TestAssess_RubyPortWaivesAgeOR(t *testing.T) {
	fields := models.FieldMap{
		"name": "Foo Ruby Port", "brand": "Foo", "abv": 19.5, "style": "ruby",
		"volume_ml": 750.0, "description": "A young ruby port.",
		"producer_house":  "Foo House",
		"primary_aromas":  []string{"red berry"},
		"finish_flavors":  []string{"spice"},
		"palate_flavors":  []string{"plum"},
	}
	a := Assess(Input{
		Fields:      fields,
		ProductType: models.ProductTypePortWine,
		Config:      models.DefaultProductTypeConfig(models.ProductTypePortWine),
	})
	if a.Status != models.ProductStatusBaseline {
		t.Fatalf("status = %v, want baseline, missing=%v missingOR=%v", a.Status, a.MissingRequiredFields, a.MissingORFields)
	}
}

// TestAssess_PortWithoutRubyRequiresAgeOR confirms the OR-group still
// applies (blocking Baseline) when the style does not match an exception.
func TestAssess_PortWithoutRubyRequiresAgeOR(t *testing.T) {
	fields := models.FieldMap{
		"name": "Foo Tawny Port", "brand": "Foo", "abv": 20.0, "style": "tawny",
		"volume_ml": 750.0, "description": "An aged tawny port.",
		"producer_house": "Foo House",
		"primary_aromas": []string{"nutty"},
		"finish_flavors": []string{"caramel"},
		"palate_flavors": []string{"dried fruit"},
	}
	a := Assess(Input{
		Fields:      fields,
		ProductType: models.ProductTypePortWine,
		Config:      models.DefaultProductTypeConfig(models.ProductTypePortWine),
	})
	if a.Status == models.ProductStatusBaseline || a.Status == models.ProductStatusEnriched {
		t.Fatalf("status = %v, want below baseline without indication_age/harvest_year or a waiving style", a.Status)
	}
	found := false
	for _, group := range a.MissingORFields {
		for _, f := range group {
			if f == "indication_age" || f == "harvest_year" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected the age OR-group to be reported missing, got %v", a.MissingORFields)
	}
}

func TestAssess_BlendedCategoryExemptsCaskAndRegion(t *testing.T) {
	fields := whiskeyBaselineFields()
	fields["category"] = "Blended Scotch Whisky"
	delete(fields, "primary_cask")
	delete(fields, "region")
	a := Assess(Input{
		Fields:      fields,
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	if a.Status != models.ProductStatusBaseline && a.Status != models.ProductStatusEnriched {
		t.Fatalf("status = %v, want baseline or higher once primary_cask/region are exempted, missing=%v", a.Status, a.MissingRequiredFields)
	}
}

func TestAssess_NonExemptCategoryStillRequiresCaskAndRegion(t *testing.T) {
	fields := whiskeyBaselineFields()
	delete(fields, "primary_cask")
	delete(fields, "region")
	a := Assess(Input{
		Fields:      fields,
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	if a.Status == models.ProductStatusBaseline || a.Status == models.ProductStatusEnriched {
		t.Fatalf("status = %v, want below baseline for a non-exempt category missing primary_cask/region", a.Status)
	}
}

func TestAssess_LowConfidenceFieldTreatedAsMissing(t *testing.T) {
	fields := whiskeyBaselineFields()
	confidences := map[string]decimal.Decimal{
		"primary_cask": decimal.NewFromFloat(0.2),
	}
	a := Assess(Input{
		Fields:      fields,
		Confidences: confidences,
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	found := false
	for _, f := range a.LowConfidenceFields {
		if f == "primary_cask" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected primary_cask in LowConfidenceFields, got %v", a.LowConfidenceFields)
	}
	for _, f := range a.MissingRequiredFields {
		if f == "primary_cask" {
			return
		}
	}
	t.Fatalf("low-confidence primary_cask should count as missing, missing=%v", a.MissingRequiredFields)
}

func TestAssess_EnrichmentPriorityClampedRange(t *testing.T) {
	a := Assess(Input{
		Fields:      models.FieldMap{"name": "Bare"},
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	if a.EnrichmentPriority < 1 || a.EnrichmentPriority > 10 {
		t.Fatalf("priority out of [1,10]: %d", a.EnrichmentPriority)
	}
}

func TestAssess_SkeletonWithOnlyName(t *testing.T) {
	a := Assess(Input{
		Fields:      models.FieldMap{"name": "Bare Bottle"},
		ProductType: models.ProductTypeWhiskey,
		Config:      models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
	})
	if a.Status != models.ProductStatusSkeleton {
		t.Fatalf("status = %v, want skeleton", a.Status)
	}
}
