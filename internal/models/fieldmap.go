package models

import "github.com/shopspring/decimal"

// FieldMap is the flat field-name -> value representation every component
// downstream of the Normalizer (§4.1) operates on: internal/ecp,
// internal/qualitygate, internal/smartcrawler's merge logic, and
// internal/verification all read and write FieldMap, not *Product directly.
type FieldMap map[string]interface{}

// ToFieldMap flattens a Product's current column values into a FieldMap,
// the same flat shape the Normalizer produces from a fresh extraction. The
// Quality Gate and ECP Calculator are both pure functions of this map.
func (p *Product) ToFieldMap() FieldMap {
	m := FieldMap{}
	m["name"] = p.Name
	if p.Brand != nil {
		m["brand"] = *p.Brand
	}
	m["product_type"] = string(p.ProductType)
	putStr(m, "category", p.Category)
	putStr(m, "style", p.Style)
	putDecimal(m, "abv", p.ABV)
	putInt(m, "age_statement", p.AgeStatement)
	putInt(m, "volume_ml", p.VolumeML)
	putDecimal(m, "price", p.Price)
	putStr(m, "country", p.Country)
	putStr(m, "region", p.Region)
	putStr(m, "description", p.Description)
	putStr(m, "nose_description", p.NoseDescription)
	putStr(m, "palate_description", p.PalateDescription)
	putStr(m, "finish_description", p.FinishDescription)
	putStrSlice(m, "primary_aromas", p.PrimaryAromas)
	putStrSlice(m, "palate_flavors", p.PalateFlavors)
	putStrSlice(m, "finish_flavors", p.FinishFlavors)
	putStr(m, "initial_taste", p.InitialTaste)
	putStr(m, "mid_palate_evolution", p.MidPalateEvolution)
	putStr(m, "aroma_evolution", p.AromaEvolution)
	putStr(m, "finish_evolution", p.FinishEvolution)
	putStr(m, "final_notes", p.FinalNotes)
	putStr(m, "color_description", p.ColorDescription)
	putStr(m, "color_intensity", p.ColorIntensity)
	putStr(m, "clarity", p.Clarity)
	putStr(m, "viscosity", p.Viscosity)
	putStr(m, "mouthfeel", p.Mouthfeel)
	putStr(m, "finish_length", p.FinishLength)
	putStr(m, "food_pairings", p.FoodPairings)
	putDecimal(m, "flavor_intensity", p.FlavorIntensity)
	putDecimal(m, "complexity", p.Complexity)
	putDecimal(m, "warmth", p.Warmth)
	putDecimal(m, "dryness", p.Dryness)
	putDecimal(m, "balance", p.Balance)
	putDecimal(m, "overall_complexity", p.OverallComplexity)
	putDecimal(m, "uniqueness", p.Uniqueness)
	putDecimal(m, "drinkability", p.Drinkability)
	putStr(m, "distillery", p.Distillery)
	putStr(m, "bottler", p.Bottler)
	putDecimal(m, "peat_ppm", p.PeatPPM)
	putStr(m, "peat_level", p.PeatLevel)
	putBool(m, "natural_color", p.NaturalColor)
	putBool(m, "non_chill_filtered", p.NonChillFiltered)
	putBool(m, "cask_strength", p.CaskStrength)
	putBool(m, "single_cask", p.SingleCask)
	putBool(m, "peated", p.Peated)
	putStr(m, "primary_cask", p.PrimaryCask)
	putStr(m, "finishing_cask", p.FinishingCask)
	putStr(m, "wood_type", p.WoodType)
	putStr(m, "cask_treatment", p.CaskTreatment)
	putStr(m, "maturation_notes", p.MaturationNotes)
	putStr(m, "indication_age", p.IndicationAge)
	putStr(m, "harvest_year", p.HarvestYear)
	putStr(m, "producer_house", p.ProducerHouse)
	putStrSlice(m, "images", p.Images)
	putStrSlice(m, "ratings", p.Ratings)
	if p.SourceURL != nil {
		m["source_url"] = *p.SourceURL
	}
	return m
}

func putStr(m FieldMap, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func putInt(m FieldMap, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}

func putBool(m FieldMap, key string, v *bool) {
	if v != nil {
		m[key] = *v
	}
}

func putDecimal(m FieldMap, key string, v *decimal.Decimal) {
	if v != nil {
		m[key] = *v
	}
}

func putStrSlice(m FieldMap, key string, v []string) {
	if len(v) > 0 {
		m[key] = v
	}
}

// KnownColumnFields lists every column name the Normalizer is allowed to
// write into the Product struct directly (as opposed to passing through
// untouched extra keys, §4.1 Contract).
var KnownColumnFields = map[string]bool{
	"name": true, "brand": true, "category": true, "style": true,
	"abv": true, "age_statement": true, "volume_ml": true, "price": true,
	"country": true, "region": true, "description": true,
	"nose_description": true, "palate_description": true, "finish_description": true,
	"primary_aromas": true, "palate_flavors": true, "finish_flavors": true,
	"initial_taste": true, "mid_palate_evolution": true, "aroma_evolution": true,
	"finish_evolution": true, "final_notes": true,
	"color_description": true, "color_intensity": true, "clarity": true, "viscosity": true,
	"mouthfeel": true, "finish_length": true, "food_pairings": true,
	"flavor_intensity": true, "complexity": true, "warmth": true, "dryness": true,
	"balance": true, "overall_complexity": true, "uniqueness": true, "drinkability": true,
	"distillery": true, "bottler": true, "peat_ppm": true, "peat_level": true,
	"natural_color": true, "non_chill_filtered": true, "cask_strength": true,
	"single_cask": true, "peated": true, "primary_cask": true, "finishing_cask": true,
	"wood_type": true, "cask_treatment": true, "maturation_notes": true,
	"indication_age": true, "harvest_year": true, "producer_house": true,
	"images": true, "ratings": true, "awards": true, "source_url": true,
}

// ListValuedFields are the fields merged by append-dedup rather than
// first-writer-wins (§4.2 step 6, §4.5 merge rules).
var ListValuedFields = map[string]bool{
	"images": true, "ratings": true, "awards": true,
	"primary_aromas": true, "palate_flavors": true, "finish_flavors": true,
}

// VerifiableFields is the closed set of fields the Verification Pipeline
// (§4.6 step 5) reconciles by majority vote.
var VerifiableFields = []string{
	"name", "brand", "abv", "age_statement", "volume_ml", "country", "region",
	"distillery", "bottler", "palate_description", "nose_description",
	"finish_description", "palate_flavors", "price",
}
