package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/coresight/coresight/internal/models"
	"gopkg.in/yaml.v3"
)

// Override replaces individual parts of the global thresholds for one
// entity. Nil fields inherit the global value.
type Override struct {
	CPU             *Limit  `yaml:"cpu"`
	Memory          *Limit  `yaml:"memory"`
	Disk            *Limit  `yaml:"disk"`
	Network         *Limit  `yaml:"network"`
	WarningSeverity *string `yaml:"warning_severity"`
}

type overrideFile struct {
	// Keyed by entity id or name.
	Entities map[string]Override `yaml:"entities"`
}

// Source resolves the thresholds for an entity: global defaults merged
// with an optional YAML override file that is reloaded when its
// modification time changes.
type Source struct {
	defaults Thresholds
	path     string
	logger   *slog.Logger

	mu        sync.RWMutex
	overrides map[string]Override
	modTime   time.Time
}

func NewSource(defaults Thresholds, path string, logger *slog.Logger) (*Source, error) {
	s := &Source{
		defaults:  defaults,
		path:      path,
		logger:    logger,
		overrides: map[string]Override{},
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// For returns the thresholds that apply to e.
func (s *Source) For(e *models.Entity) Thresholds {
	t := s.defaults
	if e == nil {
		return t
	}

	s.mu.RLock()
	o, ok := s.overrides[e.ID]
	if !ok {
		o, ok = s.overrides[e.Name]
	}
	s.mu.RUnlock()
	if !ok {
		return t
	}

	if o.CPU != nil {
		t.CPU = *o.CPU
	}
	if o.Memory != nil {
		t.Memory = *o.Memory
	}
	if o.Disk != nil {
		t.Disk = *o.Disk
	}
	if o.Network != nil {
		t.Network = *o.Network
	}
	if o.WarningSeverity != nil && models.ValidSeverity(*o.WarningSeverity) {
		t.WarningSeverity = *o.WarningSeverity
	}
	return t
}

// Reload re-reads the override file if it changed since the last load.
// A missing file clears all overrides.
func (s *Source) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		changed := len(s.overrides) > 0
		s.overrides = map[string]Override{}
		s.modTime = time.Time{}
		s.mu.Unlock()
		return changed, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat threshold overrides: %w", err)
	}

	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read threshold overrides: %w", err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return false, fmt.Errorf("parse threshold overrides %s: %w", s.path, err)
	}
	if f.Entities == nil {
		f.Entities = map[string]Override{}
	}

	s.mu.Lock()
	s.overrides = f.Entities
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return true, nil
}

// Watch polls the override file until ctx is cancelled. A file that
// fails to parse keeps the previous overrides in effect.
func (s *Source) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Reload()
			if err != nil {
				s.logger.Error("failed to reload threshold overrides", "path", s.path, "err", err)
				continue
			}
			if changed {
				s.mu.RLock()
				n := len(s.overrides)
				s.mu.RUnlock()
				s.logger.Info("threshold overrides reloaded", "path", s.path, "entities", n)
			}
		}
	}
}
