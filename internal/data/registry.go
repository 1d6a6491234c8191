package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// registryRepo implements the group registry on top of a single JSON file.
// Every mutation rewrites the whole file through a temp file and rename.
// Chat ids migrated from the legacy flat format are kept in a sibling
// file so they survive restarts.
type registryRepo struct {
	path       string
	legacyPath string
	log        zerolog.Logger

	mu     sync.RWMutex
	groups map[string]domain.Group
}

// NewRegistryRepo creates a file-backed registry. Call Load before use.
func NewRegistryRepo(path string, log zerolog.Logger) repo.GroupRepo {
	return &registryRepo{
		path:       path,
		legacyPath: legacySiblingPath(path),
		log:        log.With().Str("component", "registry").Logger(),
		groups:     make(map[string]domain.Group),
	}
}

// legacySiblingPath maps "data/active_groups.json" to "data/active_groups.legacy.json"
func legacySiblingPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".legacy.json"
}

// Load reads the registry file, migrating the legacy flat array format.
// It returns the legacy chat ids on every load, not only the migrating one.
func (r *registryRepo) Load(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read registry: %v", domain.ErrUpstream, err)
	}
	raw = bytes.TrimSpace(raw)

	switch {
	case len(raw) == 0:
		r.log.Info().Str("path", r.path).Msg("No registry file, starting empty")
		r.groups = make(map[string]domain.Group)
	case raw[0] == '[':
		if err := r.migrateLocked(raw); err != nil {
			return nil, err
		}
	default:
		var stored map[string]domain.Group
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("%w: parse registry: %v", domain.ErrValidation, err)
		}
		groups := make(map[string]domain.Group, len(stored))
		for id, g := range stored {
			if g.ChatIDs == nil {
				g.ChatIDs = []string{}
			}
			groups[id] = g
		}
		r.groups = groups
		r.log.Info().Int("groups", len(groups)).Msg("Registry loaded")
	}

	return r.readLegacyLocked()
}

// migrateLocked turns a legacy chat id array into the default group. The
// ids are written to the sibling file before the registry is replaced.
func (r *registryRepo) migrateLocked(raw []byte) error {
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return fmt.Errorf("%w: parse legacy registry: %v", domain.ErrValidation, err)
	}
	ids := make([]string, 0, len(legacy))
	for _, id := range legacy {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	group, err := domain.NewGroup(domain.DefaultGroupName, ids)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(group.ChatIDs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode legacy ids: %v", domain.ErrUpstream, err)
	}
	if err := r.writeFile(r.legacyPath, data); err != nil {
		return err
	}

	migrated := map[string]domain.Group{domain.DefaultGroupID: group}
	if err := r.persist(migrated); err != nil {
		return err
	}
	r.groups = migrated
	r.log.Info().Int("chats", len(group.ChatIDs)).Int("dropped", len(legacy)-len(ids)).
		Msg("Migrated legacy chat list into default group")
	return nil
}

func (r *registryRepo) readLegacyLocked() ([]string, error) {
	raw, err := os.ReadFile(r.legacyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read legacy ids: %v", domain.ErrUpstream, err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: parse legacy ids: %v", domain.ErrValidation, err)
	}
	return ids, nil
}

// Put inserts or replaces a group, rolling back on a failed write
func (r *registryRepo) Put(ctx context.Context, id string, group domain.Group) (domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	next[id] = group.Clone()
	if err := r.persist(next); err != nil {
		return domain.Group{}, err
	}
	r.groups = next
	return group.Clone(), nil
}

// Get returns one group
func (r *registryRepo) Get(ctx context.Context, id string) (domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("%w: group %q", domain.ErrNotFound, id)
	}
	return g.Clone(), nil
}

// List returns a deep copy of the registry
func (r *registryRepo) List(ctx context.Context) (map[string]domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyLocked(), nil
}

// Delete removes a group, rolling back on a failed write
func (r *registryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[id]; !ok {
		return fmt.Errorf("%w: group %q", domain.ErrNotFound, id)
	}
	next := r.copyLocked()
	delete(next, id)
	if err := r.persist(next); err != nil {
		return err
	}
	r.groups = next
	return nil
}

func (r *registryRepo) copyLocked() map[string]domain.Group {
	out := make(map[string]domain.Group, len(r.groups))
	for id, g := range r.groups {
		out[id] = g.Clone()
	}
	return out
}

func (r *registryRepo) persist(groups map[string]domain.Group) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode registry: %v", domain.ErrUpstream, err)
	}
	if err := r.writeFile(r.path, data); err != nil {
		return err
	}
	r.log.Debug().Int("groups", len(groups)).Msg("Registry persisted")
	return nil
}

// writeFile writes data to a temp file in the same directory and renames it
// over path, so readers never see a half-written file.
func (r *registryRepo) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create registry directory: %v", domain.ErrUpstream, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp registry: %v", domain.ErrUpstream, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write registry: %v", domain.ErrUpstream, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync registry: %v", domain.ErrUpstream, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close registry: %v", domain.ErrUpstream, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replace registry: %v", domain.ErrUpstream, err)
	}
	return nil
}
