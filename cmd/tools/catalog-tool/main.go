// cmd/tools/catalog-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/offers"
	"loan-intake/internal/models"
	"loan-intake/pkg/registry"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add-document", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	exportPath := exportCmd.String("path", "configs/catalog.json", "Where to write the built-in catalog")

	addPath := addCmd.String("path", "configs/catalog.json", "Catalog file")
	id := addCmd.String("id", "", "Document ID (e.g., council-rates)")
	name := addCmd.String("name", "", "Display name")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (identity, income, financial, property, business, partner, other)")
	required := addCmd.Bool("required", false, "Required for progress")
	multiple := addCmd.Bool("multiple", false, "Allow more than one file")
	applicable := addCmd.String("for", string(models.ApplicableAll), "Applicability (primary, partner, business, all)")
	flagName := addCmd.String("when", "", "Only show when this flag is true (hasPartner, isBusinessOwner)")

	validatePath := validateCmd.String("path", "configs/catalog.json", "Catalog file")
	listPath := listCmd.String("path", "configs/catalog.json", "Catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		c := &registry.Catalog{
			Version:   "1.0.0",
			Documents: documents.DefaultCatalog(),
			Offers:    offers.DefaultOffers(),
		}
		if err := saveCatalog(c, *exportPath); err != nil {
			fmt.Printf("Error exporting catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d documents and %d offers to %s\n", len(c.Documents), len(c.Offers), *exportPath)

	case "add-document":
		addCmd.Parse(os.Args[2:])
		if *id == "" || *name == "" || *category == "" {
			fmt.Println("Error: id, name, and category are required for add-document.")
			addCmd.Usage()
			os.Exit(1)
		}
		def := models.DocumentDefinition{
			ID:              *id,
			Name:            *name,
			Description:     *description,
			Required:        *required,
			Category:        models.DocumentCategory(*category),
			MultipleAllowed: *multiple,
			ApplicableFor:   models.Applicability(*applicable),
		}
		if *flagName != "" {
			def.ConditionalDisplay = &models.ConditionalDisplay{Field: *flagName, Value: true}
		}
		if err := addDocument(*addPath, def); err != nil {
			fmt.Printf("Error adding document: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added document: %s\n", *id)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		c, err := registry.LoadCatalog(*validatePath)
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed. Found %d documents and %d offers.\n", len(c.Documents), len(c.Offers))

	case "list":
		listCmd.Parse(os.Args[2:])
		c, err := registry.LoadCatalog(*listPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}
		printCatalog(c)

	case "help":
		fallthrough
	default:
		help()
	}
}

func addDocument(path string, def models.DocumentDefinition) error {
	c, err := registry.LoadCatalog(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c = &registry.Catalog{Version: "1.0.0"}
	}

	c.Documents = append(c.Documents, def)
	if err := c.Validate(); err != nil {
		return err
	}
	return saveCatalog(c, path)
}

func printCatalog(c *registry.Catalog) {
	byCategory := map[models.DocumentCategory][]models.DocumentDefinition{}
	for _, d := range c.Documents {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}
	cats := make([]string, 0, len(byCategory))
	for k := range byCategory {
		cats = append(cats, string(k))
	}
	sort.Strings(cats)

	for _, cat := range cats {
		fmt.Printf("%s\n", cat)
		for _, d := range byCategory[models.DocumentCategory(cat)] {
			req := ""
			if d.Required {
				req = " (required)"
			}
			fmt.Printf("  %-28s %s%s\n", d.ID, d.Name, req)
		}
	}
	if len(c.Offers) > 0 {
		fmt.Println("offers")
		for _, o := range c.Offers {
			fmt.Printf("  %-28s %s %.2f%% %dy\n", o.ID, o.Lender, o.InterestRate, o.TermYears)
		}
	}
}

func saveCatalog(c *registry.Catalog, path string) error {
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: catalog-tool <command> [flags]

Commands:
  export        Write the built-in document and offer catalog to a file
  add-document  Add a document definition to a catalog file
  validate      Validate a catalog file
  list          Print a catalog grouped by category
  help          Show this help message

Examples:
  catalog-tool export -path configs/catalog.json
  catalog-tool add-document -id council-rates -name "Council Rates Notice" -category property -for primary
  catalog-tool validate -path configs/catalog.json

The server loads the file named by catalog.path in configs/config.yaml.
` + "\n")
}
