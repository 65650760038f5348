package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func (o *options) withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(o.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// tokenFilePath keeps the server token alongside the database.
func (o *options) tokenFilePath() string {
	return filepath.Join(filepath.Dir(o.dbPath), ".pathsplit-token")
}

// engine builds a personalization engine whose catalog is the default one
// merged with the configured YAML catalog.
func (o *options) engine() (*personalize.Engine, error) {
	if o.cfg == nil || o.cfg.CatalogPath == "" {
		return personalize.NewEngine(), nil
	}
	f, err := os.Open(o.cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	overrides, err := personalize.LoadCatalog(f)
	if err != nil {
		return nil, err
	}
	catalog := personalize.DefaultCatalog().Merge(overrides...)
	return personalize.NewEngine(personalize.WithCatalog(catalog)), nil
}

// notFound rewrites store.ErrNotFound into a user-facing message.
func notFound(err error, kind, name string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s '%s' not found", kind, name)
	}
	return err
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a label into a path id: "Free Shipping!" becomes
// "free-shipping".
func slugify(label string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "-"), "-")
}
