package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/models"
)

// productRow is the sqlx scan target for the products table: nullable
// scalars use database/sql's Null* wrappers and list columns use
// pq.StringArray, the teacher's internal/models scan-shape convention
// (models.go's ProxyServer/RejectionSummary use the same pair).
type productRow struct {
	ID          uuid.UUID      `db:"id"`
	Name        string         `db:"name"`
	BrandID     uuid.NullUUID  `db:"brand_id"`
	ProductType string         `db:"product_type"`
	Category    sql.NullString `db:"category"`
	Style       sql.NullString `db:"style"`

	ABV          decimal.NullDecimal `db:"abv"`
	AgeStatement sql.NullInt32       `db:"age_statement"`
	VolumeML     sql.NullInt32       `db:"volume_ml"`
	Price        decimal.NullDecimal `db:"price"`

	Country     sql.NullString `db:"country"`
	Region      sql.NullString `db:"region"`
	Description sql.NullString `db:"description"`

	NoseDescription   sql.NullString `db:"nose_description"`
	PalateDescription sql.NullString `db:"palate_description"`
	FinishDescription sql.NullString `db:"finish_description"`
	PrimaryAromas     pq.StringArray `db:"primary_aromas"`
	PalateFlavors     pq.StringArray `db:"palate_flavors"`
	FinishFlavors     pq.StringArray `db:"finish_flavors"`

	InitialTaste       sql.NullString `db:"initial_taste"`
	MidPalateEvolution sql.NullString `db:"mid_palate_evolution"`
	AromaEvolution     sql.NullString `db:"aroma_evolution"`
	FinishEvolution    sql.NullString `db:"finish_evolution"`
	FinalNotes         sql.NullString `db:"final_notes"`

	ColorDescription sql.NullString `db:"color_description"`
	ColorIntensity   sql.NullString `db:"color_intensity"`
	Clarity          sql.NullString `db:"clarity"`
	Viscosity        sql.NullString `db:"viscosity"`

	Mouthfeel    sql.NullString `db:"mouthfeel"`
	FinishLength sql.NullString `db:"finish_length"`
	FoodPairings sql.NullString `db:"food_pairings"`

	FlavorIntensity   decimal.NullDecimal `db:"flavor_intensity"`
	Complexity        decimal.NullDecimal `db:"complexity"`
	Warmth            decimal.NullDecimal `db:"warmth"`
	Dryness           decimal.NullDecimal `db:"dryness"`
	Balance           decimal.NullDecimal `db:"balance"`
	OverallComplexity decimal.NullDecimal `db:"overall_complexity"`
	Uniqueness        decimal.NullDecimal `db:"uniqueness"`
	Drinkability      decimal.NullDecimal `db:"drinkability"`

	Distillery       sql.NullString      `db:"distillery"`
	Bottler          sql.NullString      `db:"bottler"`
	PeatPPM          decimal.NullDecimal `db:"peat_ppm"`
	PeatLevel        sql.NullString      `db:"peat_level"`
	NaturalColor     sql.NullBool        `db:"natural_color"`
	NonChillFiltered sql.NullBool        `db:"non_chill_filtered"`
	CaskStrength     sql.NullBool        `db:"cask_strength"`
	SingleCask       sql.NullBool        `db:"single_cask"`
	Peated           sql.NullBool        `db:"peated"`
	PrimaryCask      sql.NullString      `db:"primary_cask"`
	FinishingCask    sql.NullString      `db:"finishing_cask"`
	WoodType         sql.NullString      `db:"wood_type"`
	CaskTreatment    sql.NullString      `db:"cask_treatment"`
	MaturationNotes  sql.NullString      `db:"maturation_notes"`

	IndicationAge sql.NullString `db:"indication_age"`
	HarvestYear   sql.NullString `db:"harvest_year"`
	ProducerHouse sql.NullString `db:"producer_house"`

	Images  pq.StringArray `db:"images"`
	Ratings pq.StringArray `db:"ratings"`

	SourceURL       sql.NullString `db:"source_url"`
	DiscoverySource string         `db:"discovery_source"`

	Status            string              `db:"status"`
	CompletenessScore decimal.NullDecimal `db:"completeness_score"`
	ECPTotal          decimal.NullDecimal `db:"ecp_total"`
	ECPByGroup        []byte              `db:"ecp_by_group"`
	SourceCount       int                 `db:"source_count"`
	VerifiedFields    pq.StringArray      `db:"verified_fields"`
	Fingerprint       string              `db:"fingerprint"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func nullStrPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func nullIntPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}

func nullBoolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func nullDecimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	v := n.Decimal
	return &v
}

func (r *productRow) toProduct() *models.Product {
	p := &models.Product{
		ID:                r.ID,
		Name:              r.Name,
		ProductType:       models.ProductTypeEnum(r.ProductType),
		Category:          nullStrPtr(r.Category),
		Style:             nullStrPtr(r.Style),
		ABV:               nullDecimalPtr(r.ABV),
		AgeStatement:      nullIntPtr(r.AgeStatement),
		VolumeML:          nullIntPtr(r.VolumeML),
		Price:             nullDecimalPtr(r.Price),
		Country:           nullStrPtr(r.Country),
		Region:            nullStrPtr(r.Region),
		Description:       nullStrPtr(r.Description),
		NoseDescription:   nullStrPtr(r.NoseDescription),
		PalateDescription: nullStrPtr(r.PalateDescription),
		FinishDescription: nullStrPtr(r.FinishDescription),
		PrimaryAromas:     []string(r.PrimaryAromas),
		PalateFlavors:     []string(r.PalateFlavors),
		FinishFlavors:     []string(r.FinishFlavors),

		InitialTaste:       nullStrPtr(r.InitialTaste),
		MidPalateEvolution: nullStrPtr(r.MidPalateEvolution),
		AromaEvolution:     nullStrPtr(r.AromaEvolution),
		FinishEvolution:    nullStrPtr(r.FinishEvolution),
		FinalNotes:         nullStrPtr(r.FinalNotes),

		ColorDescription: nullStrPtr(r.ColorDescription),
		ColorIntensity:   nullStrPtr(r.ColorIntensity),
		Clarity:          nullStrPtr(r.Clarity),
		Viscosity:        nullStrPtr(r.Viscosity),

		Mouthfeel:    nullStrPtr(r.Mouthfeel),
		FinishLength: nullStrPtr(r.FinishLength),
		FoodPairings: nullStrPtr(r.FoodPairings),

		FlavorIntensity:   nullDecimalPtr(r.FlavorIntensity),
		Complexity:        nullDecimalPtr(r.Complexity),
		Warmth:            nullDecimalPtr(r.Warmth),
		Dryness:           nullDecimalPtr(r.Dryness),
		Balance:           nullDecimalPtr(r.Balance),
		OverallComplexity: nullDecimalPtr(r.OverallComplexity),
		Uniqueness:        nullDecimalPtr(r.Uniqueness),
		Drinkability:      nullDecimalPtr(r.Drinkability),

		Distillery:       nullStrPtr(r.Distillery),
		Bottler:          nullStrPtr(r.Bottler),
		PeatPPM:          nullDecimalPtr(r.PeatPPM),
		PeatLevel:        nullStrPtr(r.PeatLevel),
		NaturalColor:     nullBoolPtr(r.NaturalColor),
		NonChillFiltered: nullBoolPtr(r.NonChillFiltered),
		CaskStrength:     nullBoolPtr(r.CaskStrength),
		SingleCask:       nullBoolPtr(r.SingleCask),
		Peated:           nullBoolPtr(r.Peated),
		PrimaryCask:      nullStrPtr(r.PrimaryCask),
		FinishingCask:    nullStrPtr(r.FinishingCask),
		WoodType:         nullStrPtr(r.WoodType),
		CaskTreatment:    nullStrPtr(r.CaskTreatment),
		MaturationNotes:  nullStrPtr(r.MaturationNotes),

		IndicationAge: nullStrPtr(r.IndicationAge),
		HarvestYear:   nullStrPtr(r.HarvestYear),
		ProducerHouse: nullStrPtr(r.ProducerHouse),

		Images:  []string(r.Images),
		Ratings: []string(r.Ratings),

		SourceURL:       nullStrPtr(r.SourceURL),
		DiscoverySource: models.DiscoverySourceEnum(r.DiscoverySource),

		Status:         models.ProductStatusEnum(r.Status),
		ECPByGroup:     r.ECPByGroup,
		SourceCount:    r.SourceCount,
		VerifiedFields: []string(r.VerifiedFields),
		Fingerprint:    r.Fingerprint,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.BrandID.Valid {
		id := r.BrandID.UUID
		p.BrandID = &id
	}
	if r.CompletenessScore.Valid {
		p.CompletenessScore = r.CompletenessScore.Decimal
	}
	if r.ECPTotal.Valid {
		p.ECPTotal = r.ECPTotal.Decimal
	}
	return p
}

func fromProduct(p *models.Product) *productRow {
	row := &productRow{
		ID:                p.ID,
		Name:              p.Name,
		ProductType:       string(p.ProductType),
		Category:          strToNull(p.Category),
		Style:             strToNull(p.Style),
		ABV:               decimalToNull(p.ABV),
		AgeStatement:      intToNull(p.AgeStatement),
		VolumeML:          intToNull(p.VolumeML),
		Price:             decimalToNull(p.Price),
		Country:           strToNull(p.Country),
		Region:            strToNull(p.Region),
		Description:       strToNull(p.Description),
		NoseDescription:   strToNull(p.NoseDescription),
		PalateDescription: strToNull(p.PalateDescription),
		FinishDescription: strToNull(p.FinishDescription),
		PrimaryAromas:     pq.StringArray(p.PrimaryAromas),
		PalateFlavors:     pq.StringArray(p.PalateFlavors),
		FinishFlavors:     pq.StringArray(p.FinishFlavors),

		InitialTaste:       strToNull(p.InitialTaste),
		MidPalateEvolution: strToNull(p.MidPalateEvolution),
		AromaEvolution:     strToNull(p.AromaEvolution),
		FinishEvolution:    strToNull(p.FinishEvolution),
		FinalNotes:         strToNull(p.FinalNotes),

		ColorDescription: strToNull(p.ColorDescription),
		ColorIntensity:   strToNull(p.ColorIntensity),
		Clarity:          strToNull(p.Clarity),
		Viscosity:        strToNull(p.Viscosity),

		Mouthfeel:    strToNull(p.Mouthfeel),
		FinishLength: strToNull(p.FinishLength),
		FoodPairings: strToNull(p.FoodPairings),

		FlavorIntensity:   decimalToNull(p.FlavorIntensity),
		Complexity:        decimalToNull(p.Complexity),
		Warmth:            decimalToNull(p.Warmth),
		Dryness:           decimalToNull(p.Dryness),
		Balance:           decimalToNull(p.Balance),
		OverallComplexity: decimalToNull(p.OverallComplexity),
		Uniqueness:        decimalToNull(p.Uniqueness),
		Drinkability:      decimalToNull(p.Drinkability),

		Distillery:       strToNull(p.Distillery),
		Bottler:          strToNull(p.Bottler),
		PeatPPM:          decimalToNull(p.PeatPPM),
		PeatLevel:        strToNull(p.PeatLevel),
		NaturalColor:     boolToNull(p.NaturalColor),
		NonChillFiltered: boolToNull(p.NonChillFiltered),
		CaskStrength:     boolToNull(p.CaskStrength),
		SingleCask:       boolToNull(p.SingleCask),
		Peated:           boolToNull(p.Peated),
		PrimaryCask:      strToNull(p.PrimaryCask),
		FinishingCask:    strToNull(p.FinishingCask),
		WoodType:         strToNull(p.WoodType),
		CaskTreatment:    strToNull(p.CaskTreatment),
		MaturationNotes:  strToNull(p.MaturationNotes),

		IndicationAge: strToNull(p.IndicationAge),
		HarvestYear:   strToNull(p.HarvestYear),
		ProducerHouse: strToNull(p.ProducerHouse),

		Images:  pq.StringArray(p.Images),
		Ratings: pq.StringArray(p.Ratings),

		SourceURL:       strToNull(p.SourceURL),
		DiscoverySource: string(p.DiscoverySource),

		Status:            string(p.Status),
		CompletenessScore: decimal.NewNullDecimal(p.CompletenessScore),
		ECPTotal:          decimal.NewNullDecimal(p.ECPTotal),
		ECPByGroup:        p.ECPByGroup,
		SourceCount:       p.SourceCount,
		VerifiedFields:    pq.StringArray(p.VerifiedFields),
		Fingerprint:       p.Fingerprint,

		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.BrandID != nil {
		row.BrandID = uuid.NullUUID{UUID: *p.BrandID, Valid: true}
	}
	return row
}

func strToNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func intToNull(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func boolToNull(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func decimalToNull(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}
