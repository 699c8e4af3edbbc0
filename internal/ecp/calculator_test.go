package ecp

import (
	"testing"
	"time"

	"github.com/shelfmark/productpipeline/internal/models"
)

func groups() []models.FieldGroup {
	return []models.FieldGroup{
		{Key: "identity", Fields: []string{"name", "brand"}, IsActive: true, SortOrder: 0},
		{Key: "specs", Fields: []string{"abv", "age_statement"}, IsActive: true, SortOrder: 1},
		{Key: "inactive", Fields: []string{"x"}, IsActive: false, SortOrder: 2},
	}
}

func TestCalculateByGroup_OmitsInactive(t *testing.T) {
	data := models.FieldMap{"name": "Foo", "brand": "", "abv": 40.0}
	result := CalculateByGroup(data, groups())
	if _, ok := result["inactive"]; ok {
		t.Fatalf("inactive group should be omitted")
	}
	identity := result["identity"]
	if identity.Populated != 1 || identity.Total != 2 {
		t.Fatalf("identity = %+v", identity)
	}
	if len(identity.Missing) != 1 || identity.Missing[0] != "brand" {
		t.Fatalf("missing = %v", identity.Missing)
	}
}

func TestCalculateByGroup_WhitespaceNotPopulated(t *testing.T) {
	data := models.FieldMap{"name": "   ", "brand": "Foo"}
	result := CalculateByGroup(data, groups())
	if result["identity"].Populated != 1 {
		t.Fatalf("whitespace-only string should not count as populated: %+v", result["identity"])
	}
}

func TestCalculateTotal(t *testing.T) {
	data := models.FieldMap{"name": "Foo", "brand": "Bar", "abv": 40.0}
	perGroup := CalculateByGroup(data, groups())
	total := CalculateTotal(perGroup)
	// 3 populated out of 4 total fields across active groups = 75%
	if total.Percentage != 75.0 {
		t.Fatalf("total percentage = %v", total.Percentage)
	}
}

func TestBuildJSON_Deterministic(t *testing.T) {
	data := models.FieldMap{"name": "Foo"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r1, _, err := BuildJSON(data, groups(), now)
	if err != nil {
		t.Fatal(err)
	}
	r2, _, err := BuildJSON(data, groups(), now)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Total != r2.Total {
		t.Fatalf("group counts differ across identical calls: %+v vs %+v", r1.Total, r2.Total)
	}
}

func TestCalculateByGroup_EmptyGroupDivisionByZero(t *testing.T) {
	empty := []models.FieldGroup{{Key: "empty", Fields: nil, IsActive: true}}
	result := CalculateByGroup(models.FieldMap{}, empty)
	if result["empty"].Percentage != 0 {
		t.Fatalf("expected 0 for empty group, got %v", result["empty"].Percentage)
	}
}
