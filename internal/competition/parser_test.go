package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/productpipeline/internal/models"
)

func TestParseAwards_ExtractsMedalLines(t *testing.T) {
	content := `2024 Results
Double Gold - Glenfarclas 25 Year Old
Gold: Macallan Rare Cask
Silver Medal Highland Park 18
Bronze Taylor Fladgate Vintage Port
Just a regular line with no medal`

	awards := ParseAwards(content, "IWSC", 0, []models.ProductTypeEnum{models.ProductTypeWhiskey})
	require.Len(t, awards, 4)

	assert.Equal(t, "Double Gold", awards[0].Medal)
	assert.Equal(t, "Glenfarclas", awards[0].Brand)
	assert.Equal(t, "25 Year Old", awards[0].Name)
	assert.Equal(t, 2024, awards[0].Year)
	assert.Equal(t, "IWSC", awards[0].Competition)

	assert.Equal(t, "Gold", awards[1].Medal)
	assert.Equal(t, "Silver", awards[2].Medal)
	assert.Equal(t, "Bronze", awards[3].Medal)
}

func TestParseAwards_InfersPortWineFromEntryText(t *testing.T) {
	content := `Gold Taylor Fladgate Vintage Port 2015`
	awards := ParseAwards(content, "IWSC", 2024, []models.ProductTypeEnum{models.ProductTypeWhiskey, models.ProductTypePortWine})
	require.Len(t, awards, 1)
	assert.Equal(t, models.ProductTypePortWine, awards[0].ProductType)
}

func TestParseAwards_SingleProductTypeNeverOverridden(t *testing.T) {
	content := `Gold Some Port Style Whisky`
	awards := ParseAwards(content, "IWSC", 2024, []models.ProductTypeEnum{models.ProductTypeWhiskey})
	require.Len(t, awards, 1)
	assert.Equal(t, models.ProductTypeWhiskey, awards[0].ProductType)
}

func TestParseAwards_NoMedalLinesYieldsNoAwards(t *testing.T) {
	awards := ParseAwards("Nothing to see here.\nJust prose.", "IWSC", 2024, nil)
	assert.Empty(t, awards)
}
