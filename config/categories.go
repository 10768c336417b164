package config

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// LoadCategories reads the category list of a site. CSV files carry a
// name,url header; JSON files hold an array, and JSON/YAML/TOML files may
// instead hold a top-level "categories" list. Source order is kept.
func LoadCategories(path string) ([]models.Category, error) {
	if path == "" {
		return nil, fmt.Errorf("categories file cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var categories []models.Category
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		categories, err = readCategoriesCSV(bytes.NewReader(data))
	case ".json":
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &categories)
			break
		}
		categories, err = readCategoriesViper(data, "json")
	case ".yaml", ".yml", ".toml":
		categories, err = readCategoriesViper(data, strings.TrimPrefix(ext, "."))
	default:
		return nil, fmt.Errorf("unsupported categories file %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}
	if err := validateCategories(categories); err != nil {
		return nil, fmt.Errorf("categories %s: %w", path, err)
	}
	return categories, nil
}

func readCategoriesCSV(r io.Reader) ([]models.Category, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	nameCol, urlCol := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "name":
			nameCol = i
		case "url":
			urlCol = i
		}
	}
	if nameCol < 0 || urlCol < 0 {
		return nil, fmt.Errorf("header must contain name and url columns")
	}

	categories := make([]models.Category, 0, len(records)-1)
	for _, rec := range records[1:] {
		categories = append(categories, models.Category{
			Name: strings.TrimSpace(rec[nameCol]),
			URL:  strings.TrimSpace(rec[urlCol]),
		})
	}
	return categories, nil
}

func readCategoriesViper(data []byte, format string) ([]models.Category, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	var categories []models.Category
	if err := v.UnmarshalKey("categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func validateCategories(categories []models.Category) error {
	seen := make(map[string]struct{}, len(categories))
	for i, c := range categories {
		if c.Name == "" || c.URL == "" {
			return fmt.Errorf("entry %d needs a name and a url", i+1)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
