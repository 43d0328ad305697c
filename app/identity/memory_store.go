package identity

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/shashiranjanraj/shop/app/models"
)

// MemoryStore keeps identities in process. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*models.Identity{}}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, loginName string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[loginName]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) filter(keep func(*models.Identity) bool) []*models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Identity
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginName < out[j].LoginName })
	return out
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) ([]*models.Identity, error) {
	return s.filter(func(rec *models.Identity) bool { return rec.Email == email }), nil
}

func (s *MemoryStore) FindByEmailPrefix(_ context.Context, prefix string) ([]*models.Identity, error) {
	return s.filter(func(rec *models.Identity) bool { return strings.HasPrefix(rec.Email, prefix) }), nil
}

func (s *MemoryStore) FindByLastName(_ context.Context, lastName string) ([]*models.Identity, error) {
	return s.filter(func(rec *models.Identity) bool { return rec.LastName == lastName }), nil
}

func (s *MemoryStore) LoginNamesByPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, rec := range s.filter(func(rec *models.Identity) bool { return strings.HasPrefix(rec.LoginName, prefix) }) {
		out = append(out, rec.LoginName)
	}
	return out, nil
}

func (s *MemoryStore) ListLoginNames(ctx context.Context) ([]string, error) {
	return s.LoginNamesByPrefix(ctx, "")
}

func (s *MemoryStore) Insert(_ context.Context, id *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id.LoginName]; ok {
		return ErrLoginNameExists
	}
	rec := id.Clone()
	rec.Password = ""
	s.records[id.LoginName] = rec
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, id *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id.LoginName]
	if !ok {
		return ErrNotFound
	}
	rec := id.Clone()
	rec.Password = ""
	rec.Roles = cur.Roles
	s.records[id.LoginName] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, loginName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[loginName]
	delete(s.records, loginName)
	return ok, nil
}

func (s *MemoryStore) AddRoles(_ context.Context, loginName string, roles []models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[loginName]
	if !ok {
		return ErrNotFound
	}
	for _, r := range roles {
		if !slices.Contains(rec.Roles, r) {
			rec.Roles = append(rec.Roles, r)
		}
	}
	return nil
}

func (s *MemoryStore) RemoveRoles(_ context.Context, loginName string, roles []models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[loginName]
	if !ok {
		return ErrNotFound
	}
	rec.Roles = slices.DeleteFunc(rec.Roles, func(r models.Role) bool { return slices.Contains(roles, r) })
	return nil
}

func (s *MemoryStore) Roles(_ context.Context, loginName string) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[loginName]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.Role(nil), rec.Roles...), nil
}
