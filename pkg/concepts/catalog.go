package concepts

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/seekmed/medharvest/pkg/errors"
)

// Tier names recognized by the catalog and the CLI.
const (
	TierSmall  = "small"
	TierMedium = "medium"
	TierLarge  = "large"
)

//go:embed categories.yaml
var embeddedCatalog []byte

// Catalog holds the harvestable categories grouped by scale tier. The
// embedded default carries the standard medical category set; deployments
// point the config at their own file to override it.
type Catalog struct {
	Tiers map[string][]CategorySpec `yaml:"tiers"`
}

// DefaultCatalog parses the embedded category catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// LoadCatalog reads and parses a category catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return c, nil
}

// ParseCatalog parses catalog YAML and validates every category spec.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapParse("yaml", "catalog", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every spec in every tier. The first invalid spec aborts
// loading; a broken catalog must never reach the harvest pipeline.
func (c *Catalog) Validate() error {
	if len(c.Tiers) == 0 {
		return errors.NewConfigError("catalog", "no tiers defined", nil)
	}
	for tier, specs := range c.Tiers {
		if len(specs) == 0 {
			return errors.NewConfigError("catalog", fmt.Sprintf("tier %q is empty", tier), nil)
		}
		for _, spec := range specs {
			if err := spec.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Tier returns the category specs for the named tier.
func (c *Catalog) Tier(name string) ([]CategorySpec, error) {
	specs, ok := c.Tiers[name]
	if !ok {
		return nil, errors.NewConfigError("catalog", fmt.Sprintf("unknown tier %q (have %v)", name, c.TierNames()), nil)
	}
	return specs, nil
}

// TierNames returns the defined tier names, sorted.
func (c *Catalog) TierNames() []string {
	names := make([]string, 0, len(c.Tiers))
	for name := range c.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Category looks an identifier up across all tiers. When the same category
// appears in several tiers the entry from the largest tier wins, since
// wider tiers carry the more complete exclusion lists.
func (c *Catalog) Category(id QID) (CategorySpec, bool) {
	var (
		found CategorySpec
		ok    bool
	)
	for _, tier := range []string{TierSmall, TierMedium, TierLarge} {
		for _, spec := range c.Tiers[tier] {
			if spec.ID == id {
				found, ok = spec, true
			}
		}
	}
	if ok {
		return found, true
	}
	// Custom tier names fall back to an unordered scan.
	for _, specs := range c.Tiers {
		for _, spec := range specs {
			if spec.ID == id {
				return spec, true
			}
		}
	}
	return CategorySpec{}, false
}
