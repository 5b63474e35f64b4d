// Package memory provides an in-process account store for development,
// tests and the single-node deployment mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"escrow/internal/domain"
)

type state struct {
	counters      map[domain.Pubkey]domain.Counter
	campaigns     map[domain.Pubkey]domain.Campaign
	milestones    map[domain.Pubkey]domain.Milestone
	contributions map[domain.Pubkey]domain.Contribution
	balances      map[domain.Pubkey]uint64
}

func newState() *state {
	return &state{
		counters:      make(map[domain.Pubkey]domain.Counter),
		campaigns:     make(map[domain.Pubkey]domain.Campaign),
		milestones:    make(map[domain.Pubkey]domain.Milestone),
		contributions: make(map[domain.Pubkey]domain.Contribution),
		balances:      make(map[domain.Pubkey]uint64),
	}
}

// Store keeps accounts in memory. Update holds the writer lock for the whole
// transaction, so transactions are fully serialized.
type Store struct {
	mu   sync.RWMutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// View runs fn against committed state under the read lock.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r domain.AccountReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{base: s.data, pending: newState()})
}

// Update stages writes in an overlay and applies them only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &tx{base: s.data, pending: newState()}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.apply()
	return nil
}

type tx struct {
	base    *state
	pending *state
}

func (t *tx) apply() {
	for k, v := range t.pending.counters {
		t.base.counters[k] = v
	}
	for k, v := range t.pending.campaigns {
		t.base.campaigns[k] = v
	}
	for k, v := range t.pending.milestones {
		t.base.milestones[k] = v
	}
	for k, v := range t.pending.contributions {
		t.base.contributions[k] = v
	}
	for k, v := range t.pending.balances {
		t.base.balances[k] = v
	}
}

func lookup[V any](pending, base map[domain.Pubkey]V, addr domain.Pubkey) (V, bool) {
	if v, ok := pending[addr]; ok {
		return v, true
	}
	v, ok := base[addr]
	return v, ok
}

// merged returns the union of base and pending, pending winning.
func merged[V any](pending, base map[domain.Pubkey]V) map[domain.Pubkey]V {
	out := make(map[domain.Pubkey]V, len(base)+len(pending))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range pending {
		out[k] = v
	}
	return out
}

func (t *tx) Counter(_ context.Context, addr domain.Pubkey) (*domain.Counter, error) {
	v, ok := lookup(t.pending.counters, t.base.counters, addr)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &v, nil
}

func (t *tx) Campaign(_ context.Context, addr domain.Pubkey) (*domain.Campaign, error) {
	v, ok := lookup(t.pending.campaigns, t.base.campaigns, addr)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &v, nil
}

func (t *tx) Milestone(_ context.Context, addr domain.Pubkey) (*domain.Milestone, error) {
	v, ok := lookup(t.pending.milestones, t.base.milestones, addr)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &v, nil
}

func (t *tx) Contribution(_ context.Context, addr domain.Pubkey) (*domain.Contribution, error) {
	v, ok := lookup(t.pending.contributions, t.base.contributions, addr)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &v, nil
}

func (t *tx) Balance(_ context.Context, addr domain.Pubkey) (uint64, error) {
	v, _ := lookup(t.pending.balances, t.base.balances, addr)
	return v, nil
}

func (t *tx) Campaigns(_ context.Context, after string, limit int) ([]domain.Campaign, error) {
	all := merged(t.pending.campaigns, t.base.campaigns)
	keys := make([]string, 0, len(all))
	byKey := make(map[string]domain.Campaign, len(all))
	for addr, c := range all {
		k := addr.String()
		if k <= after {
			continue
		}
		keys = append(keys, k)
		byKey[k] = c
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]domain.Campaign, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out, nil
}

func (t *tx) Milestones(_ context.Context, campaign domain.Pubkey) ([]domain.Milestone, error) {
	var out []domain.Milestone
	for _, m := range merged(t.pending.milestones, t.base.milestones) {
		if m.Campaign == campaign {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MilestoneIndex < out[j].MilestoneIndex })
	return out, nil
}

func (t *tx) Contributions(_ context.Context, campaign domain.Pubkey) ([]domain.Contribution, error) {
	var out []domain.Contribution
	for _, c := range merged(t.pending.contributions, t.base.contributions) {
		if c.Campaign == campaign {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.String() < out[j].Address.String() })
	return out, nil
}

func (t *tx) InsertCounter(_ context.Context, c *domain.Counter) error {
	if _, ok := lookup(t.pending.counters, t.base.counters, c.Address); ok {
		return domain.ErrAccountExists
	}
	t.pending.counters[c.Address] = *c
	return nil
}

func (t *tx) SaveCounter(_ context.Context, c *domain.Counter) error {
	if _, ok := lookup(t.pending.counters, t.base.counters, c.Address); !ok {
		return domain.ErrAccountNotFound
	}
	t.pending.counters[c.Address] = *c
	return nil
}

func (t *tx) InsertCampaign(_ context.Context, c *domain.Campaign) error {
	if _, ok := lookup(t.pending.campaigns, t.base.campaigns, c.Address); ok {
		return domain.ErrAccountExists
	}
	t.pending.campaigns[c.Address] = *c
	return nil
}

func (t *tx) SaveCampaign(_ context.Context, c *domain.Campaign) error {
	if _, ok := lookup(t.pending.campaigns, t.base.campaigns, c.Address); !ok {
		return domain.ErrAccountNotFound
	}
	t.pending.campaigns[c.Address] = *c
	return nil
}

func (t *tx) InsertMilestone(_ context.Context, m *domain.Milestone) error {
	if _, ok := lookup(t.pending.milestones, t.base.milestones, m.Address); ok {
		return domain.ErrAccountExists
	}
	t.pending.milestones[m.Address] = *m
	return nil
}

func (t *tx) SaveMilestone(_ context.Context, m *domain.Milestone) error {
	if _, ok := lookup(t.pending.milestones, t.base.milestones, m.Address); !ok {
		return domain.ErrAccountNotFound
	}
	t.pending.milestones[m.Address] = *m
	return nil
}

func (t *tx) InsertContribution(_ context.Context, c *domain.Contribution) error {
	if _, ok := lookup(t.pending.contributions, t.base.contributions, c.Address); ok {
		return domain.ErrAccountExists
	}
	t.pending.contributions[c.Address] = *c
	return nil
}

func (t *tx) SaveContribution(_ context.Context, c *domain.Contribution) error {
	if _, ok := lookup(t.pending.contributions, t.base.contributions, c.Address); !ok {
		return domain.ErrAccountNotFound
	}
	t.pending.contributions[c.Address] = *c
	return nil
}

func (t *tx) Credit(ctx context.Context, addr domain.Pubkey, amount uint64) error {
	current, _ := t.Balance(ctx, addr)
	if amount > domain.MaxAmount-current {
		return domain.ErrInvalidAmount
	}
	t.pending.balances[addr] = current + amount
	return nil
}

func (t *tx) Debit(ctx context.Context, addr domain.Pubkey, amount uint64) error {
	current, _ := t.Balance(ctx, addr)
	if current < amount {
		return domain.ErrInsufficientFunds
	}
	t.pending.balances[addr] = current - amount
	return nil
}

var _ domain.Store = (*Store)(nil)
