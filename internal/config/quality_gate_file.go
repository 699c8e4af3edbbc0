package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"

	"github.com/shelfmark/productpipeline/internal/models"
)

// SupportedQualityGateSchemaVersion is the highest config schema version
// this binary understands. A loaded file declaring a newer major version
// is refused rather than silently misinterpreted, the same way
// eddieran-skillpm's manifest loader gates on a semver-compatible schema
// before trusting a skill manifest.
const SupportedQualityGateSchemaVersion = "v1.0.0"

// qualityGateFile is the on-disk TOML shape for models.QualityGateConfig
// (§3 "Mutable only via admin; cached per process").
type qualityGateFile struct {
	SchemaVersion string                                `toml:"schema_version"`
	ProductTypes  []models.ProductTypeConfig             `toml:"product_type"`
	FieldGroups   map[string][]models.FieldGroup         `toml:"field_groups"`
}

// LoadQualityGateConfig reads a TOML quality-gate configuration file. If
// path is empty or the file does not exist, it returns a config built
// entirely from the spec's hardcoded defaults (§4.4 "Defaults when no
// config exists") for whiskey and port_wine.
func LoadQualityGateConfig(path string) (*models.QualityGateConfig, error) {
	cfg := defaultQualityGateConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading quality gate config %s: %w", path, err)
	}

	var file qualityGateFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing quality gate config %s: %w", path, err)
	}
	if file.SchemaVersion != "" {
		v := "v" + file.SchemaVersion
		if !semver.IsValid(v) {
			return nil, fmt.Errorf("quality gate config %s: invalid schema_version %q", path, file.SchemaVersion)
		}
		if semver.Compare(semver.Major(v), semver.Major(SupportedQualityGateSchemaVersion)) > 0 {
			return nil, fmt.Errorf("quality gate config %s: schema_version %s is newer than supported %s",
				path, file.SchemaVersion, SupportedQualityGateSchemaVersion)
		}
	}

	for _, pt := range file.ProductTypes {
		cfg.ProductTypes[pt.ProductType] = pt
	}
	for ptKey, groups := range file.FieldGroups {
		cfg.FieldGroups[models.ProductTypeEnum(ptKey)] = groups
	}
	return cfg, nil
}

func defaultQualityGateConfig() *models.QualityGateConfig {
	types := []models.ProductTypeEnum{models.ProductTypeWhiskey, models.ProductTypePortWine}
	cfg := &models.QualityGateConfig{
		SchemaVersion: SupportedQualityGateSchemaVersion,
		ProductTypes:  map[models.ProductTypeEnum]models.ProductTypeConfig{},
		FieldGroups:   map[models.ProductTypeEnum][]models.FieldGroup{},
	}
	for _, pt := range types {
		cfg.ProductTypes[pt] = models.DefaultProductTypeConfig(pt)
		cfg.FieldGroups[pt] = models.DefaultFieldGroups(pt)
	}
	return cfg
}
