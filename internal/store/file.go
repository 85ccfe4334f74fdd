package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/replyhero/backend/internal/models"
)

// FileStore implements TenantStore and ReplyStateStore on flat JSON files
// under a data directory, for deployments without a provisioned database.
// tenants.json holds the tenant map; reply state lives in one file per
// tenant×location under reply_state/.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "reply_state"), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) tenantsPath() string {
	return filepath.Join(s.dir, "tenants.json")
}

func (s *FileStore) replyStatePath(tenantID, locationID string) string {
	// IDs come from the review platform and are URL-safe, but keep the
	// filename flat just in case.
	name := fmt.Sprintf("%s__%s.json", sanitizeFileName(tenantID), sanitizeFileName(locationID))
	return filepath.Join(s.dir, "reply_state", name)
}

func sanitizeFileName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (s *FileStore) loadTenants() (map[string]models.Tenant, error) {
	raw, err := os.ReadFile(s.tenantsPath())
	if os.IsNotExist(err) {
		return map[string]models.Tenant{}, nil
	}
	if err != nil {
		return nil, err
	}
	tenants := map[string]models.Tenant{}
	if err := json.Unmarshal(raw, &tenants); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.tenantsPath(), err)
	}
	return tenants, nil
}

// writeJSONFile writes via a temp file and rename so a crash mid-write never
// leaves a truncated store behind.
func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Get(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenants, err := s.loadTenants()
	if err != nil {
		return nil, err
	}
	t, ok := tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *FileStore) List(_ context.Context) ([]models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenants, err := s.loadTenants()
	if err != nil {
		return nil, err
	}
	out := make([]models.Tenant, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *FileStore) Upsert(_ context.Context, patch models.TenantPatch) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenants, err := s.loadTenants()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	prior, existed := tenants[patch.ID]
	if !existed {
		prior = models.Tenant{ID: patch.ID, CreatedAt: now}
	}
	merged := models.MergeTenant(prior, patch)
	merged.UpdatedAt = now
	tenants[patch.ID] = merged
	if err := writeJSONFile(s.tenantsPath(), tenants); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *FileStore) mutate(id string, fn func(*models.Tenant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenants, err := s.loadTenants()
	if err != nil {
		return err
	}
	t, ok := tenants[id]
	if !ok {
		return ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	tenants[id] = t
	return writeJSONFile(s.tenantsPath(), tenants)
}

func (s *FileStore) SetAutoReply(_ context.Context, id string, enabled bool) error {
	return s.mutate(id, func(t *models.Tenant) { t.AutoReplyEnabled = enabled })
}

func (s *FileStore) SetTrialEndsAt(_ context.Context, id string, endsAt time.Time) error {
	return s.mutate(id, func(t *models.Tenant) { t.TrialEndsAt = &endsAt })
}

func (s *FileStore) SetSubscription(_ context.Context, id string, subscribedAt *time.Time, stripeCustomerID *string, isPro bool) error {
	return s.mutate(id, func(t *models.Tenant) {
		t.SubscribedAt = subscribedAt
		t.StripeCustomerID = stripeCustomerID
		t.IsPro = isPro
	})
}

func (s *FileStore) MarkFreeReplyUsed(_ context.Context, id string) error {
	return s.mutate(id, func(t *models.Tenant) { t.FreeReplyUsed = true })
}

// GetReplyState returns an empty set when the file does not exist yet.
func (s *FileStore) GetReplyState(_ context.Context, tenantID, locationID string) (*models.ReplyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := models.ReplyState{TenantID: tenantID, LocationID: locationID}
	raw, err := os.ReadFile(s.replyStatePath(tenantID, locationID))
	if os.IsNotExist(err) {
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse reply state for %s/%s: %w", tenantID, locationID, err)
	}
	return &state, nil
}

func (s *FileStore) SaveReplyState(_ context.Context, state models.ReplyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.replyStatePath(state.TenantID, state.LocationID), state)
}

// FileReplyStates adapts FileStore to the ReplyStateStore interface.
type FileReplyStates struct {
	*FileStore
}

func (s FileReplyStates) Get(ctx context.Context, tenantID, locationID string) (*models.ReplyState, error) {
	return s.GetReplyState(ctx, tenantID, locationID)
}

func (s FileReplyStates) Save(ctx context.Context, state models.ReplyState) error {
	return s.SaveReplyState(ctx, state)
}
