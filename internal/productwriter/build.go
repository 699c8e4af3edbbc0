package productwriter

import (
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/productpipeline/internal/models"
)

// buildProduct maps a normalized FieldMap onto a fresh Product (§4.2 step 6
// "on miss, insert the Product with mapped columns"). Unknown keys (not in
// models.KnownColumnFields) are silently dropped here; they are still
// available on the caller's FieldMap for the ECP Calculator.
func buildProduct(fields models.FieldMap, productType models.ProductTypeEnum, sourceURL string, discoverySource models.DiscoverySourceEnum) *models.Product {
	p := &models.Product{
		ID:              uuid.New(),
		ProductType:     productType,
		DiscoverySource: discoverySource,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if name := toStringPtr(fields["name"]); name != nil {
		p.Name = *name
	}
	if sourceURL != "" {
		p.SourceURL = &sourceURL
	}

	p.Category = toStringPtr(fields["category"])
	p.Style = toStringPtr(fields["style"])
	p.ABV = toDecimalPtr(fields["abv"])
	p.AgeStatement = toIntPtr(fields["age_statement"])
	p.VolumeML = toIntPtr(fields["volume_ml"])
	p.Price = toDecimalPtr(fields["price"])
	p.Country = toStringPtr(fields["country"])
	p.Region = toStringPtr(fields["region"])
	p.Description = toStringPtr(fields["description"])

	p.NoseDescription = toStringPtr(fields["nose_description"])
	p.PalateDescription = toStringPtr(fields["palate_description"])
	p.FinishDescription = toStringPtr(fields["finish_description"])
	p.PrimaryAromas = toStringSlice(fields["primary_aromas"])
	p.PalateFlavors = toStringSlice(fields["palate_flavors"])
	p.FinishFlavors = toStringSlice(fields["finish_flavors"])

	p.InitialTaste = toStringPtr(fields["initial_taste"])
	p.MidPalateEvolution = toStringPtr(fields["mid_palate_evolution"])
	p.AromaEvolution = toStringPtr(fields["aroma_evolution"])
	p.FinishEvolution = toStringPtr(fields["finish_evolution"])
	p.FinalNotes = toStringPtr(fields["final_notes"])

	p.ColorDescription = toStringPtr(fields["color_description"])
	p.ColorIntensity = toStringPtr(fields["color_intensity"])
	p.Clarity = toStringPtr(fields["clarity"])
	p.Viscosity = toStringPtr(fields["viscosity"])

	p.Mouthfeel = toStringPtr(fields["mouthfeel"])
	p.FinishLength = toStringPtr(fields["finish_length"])
	p.FoodPairings = toStringPtr(fields["food_pairings"])

	p.FlavorIntensity = toDecimalPtr(fields["flavor_intensity"])
	p.Complexity = toDecimalPtr(fields["complexity"])
	p.Warmth = toDecimalPtr(fields["warmth"])
	p.Dryness = toDecimalPtr(fields["dryness"])
	p.Balance = toDecimalPtr(fields["balance"])
	p.OverallComplexity = toDecimalPtr(fields["overall_complexity"])
	p.Uniqueness = toDecimalPtr(fields["uniqueness"])
	p.Drinkability = toDecimalPtr(fields["drinkability"])

	p.Distillery = toStringPtr(fields["distillery"])
	p.Bottler = toStringPtr(fields["bottler"])
	p.PeatPPM = toDecimalPtr(fields["peat_ppm"])
	p.PeatLevel = toStringPtr(fields["peat_level"])
	p.NaturalColor = toBoolPtr(fields["natural_color"])
	p.NonChillFiltered = toBoolPtr(fields["non_chill_filtered"])
	p.CaskStrength = toBoolPtr(fields["cask_strength"])
	p.SingleCask = toBoolPtr(fields["single_cask"])
	p.Peated = toBoolPtr(fields["peated"])
	p.PrimaryCask = toStringPtr(fields["primary_cask"])
	p.FinishingCask = toStringPtr(fields["finishing_cask"])
	p.WoodType = toStringPtr(fields["wood_type"])
	p.CaskTreatment = toStringPtr(fields["cask_treatment"])
	p.MaturationNotes = toStringPtr(fields["maturation_notes"])

	p.IndicationAge = toStringPtr(fields["indication_age"])
	p.HarvestYear = toStringPtr(fields["harvest_year"])
	p.ProducerHouse = toStringPtr(fields["producer_house"])

	p.Images = toStringSlice(fields["images"])
	p.Ratings = toStringSlice(fields["ratings"])

	p.Fingerprint = Fingerprint(p.Name, p.ABV, p.AgeStatement, p.VolumeML)
	return p
}

// emptyColumnPatch returns the subset of fields that are currently empty on
// existing and populated on incoming, restricted to scalar (non list-valued)
// known columns (§4.2 step 6 "update only empty columns").
func emptyColumnPatch(existing *models.Product, incoming models.FieldMap) models.FieldMap {
	existingFields := existing.ToFieldMap()
	patch := models.FieldMap{}
	for key, value := range incoming {
		if models.ListValuedFields[key] {
			continue
		}
		if !models.KnownColumnFields[key] {
			continue
		}
		if _, present := existingFields[key]; present {
			continue
		}
		patch[key] = value
	}
	return patch
}

// listFieldAppends returns the list-valued fields from incoming that should
// be appended (deduplicated against existing) rather than overwritten.
func listFieldAppends(existing *models.Product, incoming models.FieldMap) map[string][]string {
	out := map[string][]string{}
	for key := range models.ListValuedFields {
		raw, ok := incoming[key]
		if !ok {
			continue
		}
		values := toStringSlice(raw)
		if len(values) == 0 {
			continue
		}
		out[key] = values
	}
	return out
}
