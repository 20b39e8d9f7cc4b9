// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"loan-intake/internal/models"
)

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &c, nil
}

var knownCategories = map[models.DocumentCategory]bool{
	models.CategoryIdentity:  true,
	models.CategoryIncome:    true,
	models.CategoryFinancial: true,
	models.CategoryProperty:  true,
	models.CategoryBusiness:  true,
	models.CategoryPartner:   true,
	models.CategoryOther:     true,
}

// Validate checks ids are unique and enumerations are known.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, d := range c.Documents {
		if d.ID == "" {
			return fmt.Errorf("document without id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
		if !knownCategories[d.Category] {
			return fmt.Errorf("document %q has unknown category %q", d.ID, d.Category)
		}
		if cd := d.ConditionalDisplay; cd != nil {
			if _, ok := (models.Flags{}).Value(cd.Field); !ok {
				return fmt.Errorf("document %q depends on unknown flag %q", d.ID, cd.Field)
			}
		}
	}

	seen = map[string]bool{}
	for _, o := range c.Offers {
		if o.ID == "" {
			return fmt.Errorf("offer without id")
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate offer id %q", o.ID)
		}
		seen[o.ID] = true
		if o.TermYears <= 0 || o.InterestRate < 0 || o.MaxAmount < o.MinAmount {
			return fmt.Errorf("offer %q has inconsistent terms", o.ID)
		}
	}
	return nil
}
