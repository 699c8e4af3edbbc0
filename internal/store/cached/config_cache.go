// Package cached provides process-scoped caching for configuration the
// ECP Calculator and Quality Gate consult on every product write: field
// groups and quality-gate configuration are loaded once per process and
// kept warm, the way the teacher keeps its persona/config lookups warm
// (§4.3 Caching, §9 "Global mutable state is limited to process-scoped
// config caches for field groups and quality gate configs; expose a clear
// reset hook for tests").
package cached

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shelfmark/productpipeline/internal/httpapi"
	"github.com/shelfmark/productpipeline/internal/models"
)

const (
	fieldGroupsKeyPrefix = "field_groups:"
	qualityGateConfigKey = "quality_gate_config"
	noExpiration         = gocache.NoExpiration
)

// ConfigCache is a process-scoped cache for FieldGroup lists and the
// QualityGateConfig, keyed by product type for field groups.
type ConfigCache struct {
	c *gocache.Cache
}

// NewConfigCache constructs a cache with no default expiration: entries
// live until Reset is called by an admin hook.
func NewConfigCache() *ConfigCache {
	return &ConfigCache{c: gocache.New(noExpiration, 10*time.Minute)}
}

// FieldGroups returns the cached field-group list for a product type,
// loading it via loader on a cache miss.
func (c *ConfigCache) FieldGroups(pt models.ProductTypeEnum, loader func() []models.FieldGroup) []models.FieldGroup {
	key := fieldGroupsKeyPrefix + string(pt)
	if v, ok := c.c.Get(key); ok {
		httpapi.RecordCacheAccess(true)
		return v.([]models.FieldGroup)
	}
	httpapi.RecordCacheAccess(false)
	groups := loader()
	c.c.Set(key, groups, noExpiration)
	return groups
}

// QualityGateConfig returns the cached quality-gate config, loading it via
// loader on a cache miss.
func (c *ConfigCache) QualityGateConfig(loader func() *models.QualityGateConfig) *models.QualityGateConfig {
	if v, ok := c.c.Get(qualityGateConfigKey); ok {
		httpapi.RecordCacheAccess(true)
		return v.(*models.QualityGateConfig)
	}
	httpapi.RecordCacheAccess(false)
	cfg := loader()
	c.c.Set(qualityGateConfigKey, cfg, noExpiration)
	return cfg
}

// Reset clears every cached entry. Exposed as an admin hook (§4.3 Caching,
// §9) and called by tests between cases that mutate configuration.
func (c *ConfigCache) Reset() {
	c.c.Flush()
}
