package domainintel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of the admin-editable domain seed list
// (§4.11), loaded as YAML (teacher and codenerd both use yaml.v3 for their
// own static config lists).
type seedFile struct {
	Retailers      []string          `yaml:"retailers"`
	ReviewSites    []string          `yaml:"review_sites"`
	OfficialBrands []string          `yaml:"official_brands"`
	Competitions   map[string]string `yaml:"competitions"`
}

// LoadSeedFile extends ds with the retailer/review/official-brand/
// competition entries in a YAML seed file.
func LoadSeedFile(ds *DomainSets, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading domain seed file %s: %w", path, err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parsing domain seed file %s: %w", path, err)
	}
	for _, d := range sf.Retailers {
		ds.AddRetailer(d)
	}
	for _, d := range sf.ReviewSites {
		ds.AddReview(d)
	}
	for _, d := range sf.OfficialBrands {
		ds.AddOfficialBrand(d)
	}
	for domain, key := range sf.Competitions {
		ds.AddCompetition(domain, key)
	}
	return nil
}
