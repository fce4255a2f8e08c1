// Package sites holds the named registries of scrape targets.
package sites

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/listing-report/internal/extract"
	"github.com/maltedev/listing-report/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	ErrRegistryNotFound = errors.New("registry not found")
	ErrInvalidSite      = errors.New("invalid site")
)

// Excel limits sheet names to 31 characters and forbids these.
const (
	maxSheetName      = 31
	invalidSheetChars = `[]:*?/\`
)

type file struct {
	Registries map[string][]models.SiteConfig `yaml:"registries"`
}

// Registry is an immutable set of named site lists.
type Registry struct {
	registries map[string][]models.SiteConfig
}

// New builds a validated registry from in-memory site lists.
func New(registries map[string][]models.SiteConfig) (*Registry, error) {
	r := &Registry{registries: make(map[string][]models.SiteConfig, len(registries))}
	for name, cfgs := range registries {
		r.registries[name] = append([]models.SiteConfig(nil), cfgs...)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Default returns the built-in registries.
func Default() (*Registry, error) {
	return Load("")
}

// Load reads the built-in registries and, when path is not empty, overlays
// the registries defined in that YAML file. The result is validated.
func Load(path string) (*Registry, error) {
	base, err := parse(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in sites: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sites file: %w", err)
		}
		overlay, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sites file %s: %w", path, err)
		}
		for name, cfgs := range overlay {
			base[name] = cfgs
		}
	}

	r := &Registry{registries: base}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func parse(data []byte) (map[string][]models.SiteConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if f.Registries == nil {
		f.Registries = make(map[string][]models.SiteConfig)
	}
	return f.Registries, nil
}

// Get returns a copy of the named registry's sites in declaration order.
func (r *Registry) Get(name string) ([]models.SiteConfig, error) {
	cfgs, ok := r.registries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, name)
	}
	out := make([]models.SiteConfig, len(cfgs))
	copy(out, cfgs)
	return out, nil
}

// Names returns registry names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.registries))
	for name := range r.registries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Validate() error {
	var errs []error
	for _, name := range r.Names() {
		if err := ValidateSites(r.registries[name]); err != nil {
			errs = append(errs, fmt.Errorf("registry %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateSites checks a site list before it is scraped: every source needs
// a unique id usable as a sheet name, an absolute http(s) entry URL and
// compilable selectors.
func ValidateSites(cfgs []models.SiteConfig) error {
	if len(cfgs) == 0 {
		return fmt.Errorf("%w: no sites", ErrInvalidSite)
	}

	var errs []error
	seen := make(map[string]bool, len(cfgs))

	for i, cfg := range cfgs {
		if err := validateSite(cfg); err != nil {
			errs = append(errs, fmt.Errorf("%w %d (%s): %v", ErrInvalidSite, i, cfg.SourceID, err))
			continue
		}
		key := strings.ToLower(cfg.SourceID)
		if seen[key] {
			errs = append(errs, fmt.Errorf("%w %d (%s): duplicate source id", ErrInvalidSite, i, cfg.SourceID))
		}
		seen[key] = true
	}

	return errors.Join(errs...)
}

func validateSite(cfg models.SiteConfig) error {
	if err := validateSheetName(cfg.SourceID); err != nil {
		return err
	}

	u, err := url.Parse(cfg.EntryURL)
	if err != nil {
		return fmt.Errorf("entry url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("entry url %q is not an absolute http(s) url", cfg.EntryURL)
	}

	if cfg.DetailFieldOrdinal != nil && *cfg.DetailFieldOrdinal < 0 {
		return fmt.Errorf("detail_field_ordinal must not be negative")
	}

	return extract.Validate(cfg)
}

func validateSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("source_id is required")
	case utf8.RuneCountInString(name) > maxSheetName:
		return fmt.Errorf("source_id longer than %d characters", maxSheetName)
	case strings.ContainsAny(name, invalidSheetChars):
		return fmt.Errorf("source_id contains one of %s", invalidSheetChars)
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return fmt.Errorf("source_id must not start or end with an apostrophe")
	}
	return nil
}
