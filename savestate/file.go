package savestate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var unsafeName = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// FileStore keeps one JSON file per record:
//
//	<dir>/<site>/<date>/categories/<category>.json
//	<dir>/<site>/<date>/products/<category>/<productid>.json
type FileStore struct {
	dir string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("save-state directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save-state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) categoryPath(site, date, category string) string {
	return filepath.Join(s.dir, safeName(site), safeName(date), "categories", safeName(category)+".json")
}

func (s *FileStore) productPath(site, date, category, productID string) string {
	return filepath.Join(s.dir, safeName(site), safeName(date), "products", safeName(category), safeName(productID)+".json")
}

func (s *FileStore) LoadCategory(_ context.Context, site, date, category string) (*models.CategoryState, error) {
	var state models.CategoryState
	if err := readJSON(s.categoryPath(site, date, category), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *FileStore) SaveCategory(_ context.Context, state *models.CategoryState) error {
	if err := validateCategory(state); err != nil {
		return err
	}
	return writeJSON(s.categoryPath(state.Sitename, state.Date, state.Name), state)
}

func (s *FileStore) LoadProduct(_ context.Context, site, date, category, productID string) (*models.ProductState, error) {
	var state models.ProductState
	if err := readJSON(s.productPath(site, date, category, productID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *FileStore) SaveProduct(_ context.Context, state *models.ProductState) error {
	if err := validateProduct(state); err != nil {
		return err
	}
	return writeJSON(s.productPath(state.Sitename, state.Date, state.CategoryName, state.ProductID), state)
}

func (s *FileStore) Close() error { return nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically so a crash never leaves a torn record.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// safeName turns a key into a file name. A rewritten name gets a short
// hash of the original so "A/B" and "A_B" stay distinct.
func safeName(name string) string {
	safe := strings.TrimSpace(unsafeName.ReplaceAllString(name, "_"))
	safe = strings.Trim(safe, ".")
	if safe == name {
		return safe
	}
	sum := sha256.Sum256([]byte(name))
	if safe == "" {
		safe = "_"
	}
	return safe + "-" + hex.EncodeToString(sum[:4])
}
