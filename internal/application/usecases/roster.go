package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// RosterStore persists the members a scheduled run books for.
type RosterStore interface {
	List(ctx context.Context) ([]user.Member, error)
	Upsert(ctx context.Context, m user.Member) error
	Remove(ctx context.Context, name string) error
	Replace(ctx context.Context, members []user.Member) error
}

// RosterService validates roster edits before they reach the store.
type RosterService struct {
	Store RosterStore
}

func (s RosterService) List(ctx context.Context) ([]user.Member, error) {
	return s.Store.List(ctx)
}

func (s RosterService) Upsert(ctx context.Context, m user.Member) error {
	m, err := cleanMember(m)
	if err != nil {
		return err
	}
	return s.Store.Upsert(ctx, m)
}

func (s RosterService) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return internaltypes.Invalid("name", "is required")
	}
	return s.Store.Remove(ctx, name)
}

func (s RosterService) Replace(ctx context.Context, members []user.Member) error {
	cleaned := make([]user.Member, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		m, err := cleanMember(m)
		if err != nil {
			return err
		}
		if _, dup := seen[m.Name]; dup {
			return internaltypes.Invalid("name", fmt.Sprintf("%q listed twice", m.Name))
		}
		seen[m.Name] = struct{}{}
		cleaned = append(cleaned, m)
	}
	return s.Store.Replace(ctx, cleaned)
}

func cleanMember(m user.Member) (user.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Token = strings.TrimSpace(m.Token)
	if m.Name == "" {
		return m, internaltypes.Invalid("name", "is required")
	}
	if m.Token == "" {
		return m, internaltypes.Invalid("token", "is required")
	}
	return m, nil
}

// MemoryRoster is a process-local RosterStore.
type MemoryRoster struct {
	mu      sync.Mutex
	members map[string]user.Member
}

func NewMemoryRoster(members ...user.Member) *MemoryRoster {
	r := &MemoryRoster{members: make(map[string]user.Member)}
	for _, m := range members {
		r.members[m.Name] = m
	}
	return r
}

func (r *MemoryRoster) List(_ context.Context) ([]user.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]user.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRoster) Upsert(_ context.Context, m user.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.UpdatedAt = time.Now().UTC()
	r.members[m.Name] = m
	return nil
}

func (r *MemoryRoster) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[name]; !ok {
		return internaltypes.ErrNotFound
	}
	delete(r.members, name)
	return nil
}

func (r *MemoryRoster) Replace(_ context.Context, members []user.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.members = make(map[string]user.Member, len(members))
	for _, m := range members {
		m.UpdatedAt = now
		r.members[m.Name] = m
	}
	return nil
}
