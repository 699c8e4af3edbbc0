package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type qualityGateConfigStorePostgres struct {
	db *sqlx.DB
}

// NewQualityGateConfigStore builds the store.QualityGateConfigStore backed
// by db. The quality_gate_config table may hold one row per version; Load
// reads the most recently updated row.
func NewQualityGateConfigStore(db *sqlx.DB) store.QualityGateConfigStore {
	return &qualityGateConfigStorePostgres{db: db}
}

func (s *qualityGateConfigStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

type qualityGateConfigRow struct {
	SchemaVersion string `db:"schema_version"`
	ProductTypes  []byte `db:"product_types"`
	FieldGroups   []byte `db:"field_groups"`
}

// Load reads the admin-mutable Quality Gate configuration, falling back to
// the spec's hardcoded defaults (§4.4 "Defaults when no config exists")
// when the table is empty.
func (s *qualityGateConfigStorePostgres) Load(ctx context.Context, exec store.Querier) (*models.QualityGateConfig, error) {
	var row qualityGateConfigRow
	err := s.exec(exec).GetContext(ctx, &row, `SELECT schema_version, product_types, field_groups FROM quality_gate_config ORDER BY updated_at DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return defaultQualityGateConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg := &models.QualityGateConfig{SchemaVersion: row.SchemaVersion}
	if err := json.Unmarshal(row.ProductTypes, &cfg.ProductTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.FieldGroups, &cfg.FieldGroups); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultQualityGateConfig() *models.QualityGateConfig {
	productTypes := map[models.ProductTypeEnum]models.ProductTypeConfig{
		models.ProductTypeWhiskey:  models.DefaultProductTypeConfig(models.ProductTypeWhiskey),
		models.ProductTypePortWine: models.DefaultProductTypeConfig(models.ProductTypePortWine),
	}
	fieldGroups := map[models.ProductTypeEnum][]models.FieldGroup{
		models.ProductTypeWhiskey:  models.DefaultFieldGroups(models.ProductTypeWhiskey),
		models.ProductTypePortWine: models.DefaultFieldGroups(models.ProductTypePortWine),
	}
	return &models.QualityGateConfig{
		SchemaVersion: "1.0.0",
		ProductTypes:  productTypes,
		FieldGroups:   fieldGroups,
	}
}
