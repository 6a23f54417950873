// Package patterns manages per-tenant setlist extraction patterns.
//
// A [Store] caches compiled regex pairs keyed by tenant and falls back to
// the built-in defaults when a tenant has no override or a stored override
// no longer compiles. Updates validate before persisting and invalidate the
// cache entry so the next read recompiles.
package patterns

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/shared"
)

// ConfigStore is the slice of the tenant repository the pattern store needs.
type ConfigStore interface {
	Get(tenantID string) (*models.TenantConfig, error)
	UpdatePatterns(tenantID string, patterns models.ExtractionPattern, updatedBy string) error
}

// Store resolves tenants to compiled extraction patterns.
type Store struct {
	mu      sync.RWMutex
	configs ConfigStore
	cache   map[string]parser.Pattern
	logger  *log.Logger
}

func NewStore(configs ConfigStore, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		configs: configs,
		cache:   make(map[string]parser.Pattern),
		logger:  logger.With("component", "patterns"),
	}
}

// Get returns the compiled pattern pair for the tenant. Missing or invalid
// stored patterns fall back to the defaults; an invalid pattern is logged
// but never fails the caller.
func (s *Store) Get(tenantID string) (parser.Pattern, error) {
	s.mu.RLock()
	if pattern, ok := s.cache[tenantID]; ok {
		s.mu.RUnlock()
		return pattern, nil
	}
	s.mu.RUnlock()

	config, err := s.configs.Get(tenantID)
	if err != nil {
		return parser.Pattern{}, fmt.Errorf("failed to load tenant patterns: %w", err)
	}

	pattern := parser.Default()
	if config != nil {
		compiled, err := parser.Compile(config.Patterns)
		if err != nil {
			s.logger.Warn("stored pattern invalid, using defaults", "tenant", tenantID, "error", err)
		} else {
			pattern = compiled
		}
	}

	s.mu.Lock()
	s.cache[tenantID] = pattern
	s.mu.Unlock()

	return pattern, nil
}

// Update validates, persists and activates new patterns for the tenant.
// Either field may be empty to keep the default for that slot.
func (s *Store) Update(tenantID string, patterns models.ExtractionPattern, updatedBy string) error {
	if err := Validate(patterns); err != nil {
		return err
	}

	if err := s.configs.UpdatePatterns(tenantID, patterns, updatedBy); err != nil {
		return err
	}

	s.Invalidate(tenantID)
	s.logger.Info("patterns updated", "tenant", tenantID, "by", updatedBy)
	return nil
}

// Invalidate drops the tenant's cached pattern so the next Get recompiles.
func (s *Store) Invalidate(tenantID string) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
}

// Validate checks that both pattern sources compile. Empty sources are
// valid and mean "use the default".
func Validate(patterns models.ExtractionPattern) error {
	for _, source := range []string{patterns.Intro, patterns.Song} {
		if source == "" {
			continue
		}
		if _, err := regexp.Compile(source); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidPattern, err)
		}
	}
	return nil
}
