package domainintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSkip(t *testing.T) {
	ds := New()
	assert.True(t, ds.IsSkip("https://www.amazon.com/dp/123"))
	assert.True(t, ds.IsSkip("https://ebay.com/itm/1"))
	assert.False(t, ds.IsSkip("https://ardbeg.com/products/ten"))
}

func TestCompetitionParserKey(t *testing.T) {
	ds := New()
	key, ok := ds.CompetitionParserKey("https://www.iwsc.net/results/2024")
	assert.True(t, ok)
	assert.Equal(t, "IWSC", key)

	_, ok = ds.CompetitionParserKey("https://example.com")
	assert.False(t, ok)
}

func TestPreferenceRank(t *testing.T) {
	ds := New()
	ds.AddOfficialBrand("ardbeg.com")
	ds.AddRetailer("masterofmalt.com")
	ds.AddReview("whiskyadvocate.com")

	assert.Equal(t, 3, ds.PreferenceRank("https://ardbeg.com/x"))
	assert.Equal(t, 2, ds.PreferenceRank("https://masterofmalt.com/x"))
	assert.Equal(t, 1, ds.PreferenceRank("https://whiskyadvocate.com/x"))
	assert.Equal(t, 0, ds.PreferenceRank("https://randomblog.example/x"))
}

func TestIsMembersOnly(t *testing.T) {
	assert.True(t, IsMembersOnly(403, ""))
	assert.True(t, IsMembersOnly(200, "Please sign in to continue reading this review."))
	assert.True(t, IsMembersOnly(200, "This content is Members Only."))
	assert.False(t, IsMembersOnly(200, "A perfectly ordinary whiskey review."))
}

func TestSessionBlacklist(t *testing.T) {
	bl := NewSessionBlacklist()
	assert.False(t, bl.Contains("https://paywalled.example/page"))
	bl.Add("https://paywalled.example/page")
	assert.True(t, bl.Contains("https://www.paywalled.example/other-page"))
	assert.Len(t, bl.Domains(), 1)
}

func TestDomainStripsWWW(t *testing.T) {
	assert.Equal(t, "ardbeg.com", Domain("https://www.ardbeg.com/products/ten"))
	assert.Equal(t, "ardbeg.com", Domain("https://ardbeg.com/products/ten"))
}
