// pkg/registry/schema.go
package registry

import "loan-intake/internal/models"

// Catalog overrides the built-in document and offer catalogs.
// An empty list keeps the built-in one.
type Catalog struct {
	Version     string                      `json:"version"`
	LastUpdated string                      `json:"lastUpdated"`
	Documents   []models.DocumentDefinition `json:"documents"`
	Offers      []models.LoanOffer          `json:"offers"`
}
