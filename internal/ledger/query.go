package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"escrow/internal/address"
	"escrow/internal/domain"
)

// DefaultPageSize bounds how many campaigns Campaigns loads per store read.
const DefaultPageSize = 100

// Query reads account state. It never writes.
type Query struct {
	store    domain.Store
	derive   *address.Deriver
	pageSize int
}

func NewQuery(store domain.Store, derive *address.Deriver) *Query {
	return &Query{store: store, derive: derive, pageSize: DefaultPageSize}
}

// WithPageSize returns a copy of q that pages campaigns n at a time.
func (q *Query) WithPageSize(n int) *Query {
	cp := *q
	if n > 0 {
		cp.pageSize = n
	}
	return &cp
}

func (q *Query) IsInitialized(ctx context.Context) (bool, error) {
	_, found, err := q.Counter(ctx)
	return found, err
}

func (q *Query) Counter(ctx context.Context) (*domain.Counter, bool, error) {
	addr, _ := q.derive.Counter()
	var out *domain.Counter
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		c, err := r.Counter(ctx, addr)
		out = c
		return err
	})
	return absent(out, err)
}

// Campaign returns the campaign at addr, or found=false.
func (q *Query) Campaign(ctx context.Context, addr domain.Pubkey) (*domain.Campaign, bool, error) {
	var out *domain.Campaign
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		c, err := r.Campaign(ctx, addr)
		out = c
		return err
	})
	return absent(out, err)
}

// RequireCampaign is Campaign for callers that treat absence as an error.
func (q *Query) RequireCampaign(ctx context.Context, addr domain.Pubkey) (*domain.Campaign, error) {
	c, found, err := q.Campaign(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrAccountNotFound, addr)
	}
	return c, nil
}

// Campaigns iterates every campaign in address order. Each page is read in
// its own view, so the sequence may be restarted and reflects commits made
// between pages.
func (q *Query) Campaigns(ctx context.Context) iter.Seq2[domain.Campaign, error] {
	return q.CampaignsAfter(ctx, "")
}

// CampaignsAfter is Campaigns resumed after the campaign whose address text
// is cursor.
func (q *Query) CampaignsAfter(ctx context.Context, cursor string) iter.Seq2[domain.Campaign, error] {
	return func(yield func(domain.Campaign, error) bool) {
		after := cursor
		for {
			var page []domain.Campaign
			err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
				var err error
				page, err = r.Campaigns(ctx, after, q.pageSize)
				return err
			})
			if err != nil {
				yield(domain.Campaign{}, err)
				return
			}
			for _, c := range page {
				if !yield(c, nil) {
					return
				}
			}
			if len(page) < q.pageSize {
				return
			}
			after = page[len(page)-1].Address.String()
		}
	}
}

// CampaignSnapshot is a campaign with every account that backs it, read in
// one store view.
type CampaignSnapshot struct {
	Campaign      domain.Campaign
	Milestones    []domain.Milestone
	Contributions []domain.Contribution
	Vault         uint64
}

// Snapshot reads the campaign at addr, its milestones, its contributions and
// its vault balance in a single view. A commit racing the read is either
// fully visible or not visible at all.
func (q *Query) Snapshot(ctx context.Context, addr domain.Pubkey) (*CampaignSnapshot, error) {
	var out CampaignSnapshot
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		c, err := r.Campaign(ctx, addr)
		if err != nil {
			return err
		}
		out.Campaign = *c
		if out.Milestones, err = r.Milestones(ctx, addr); err != nil {
			return err
		}
		if out.Contributions, err = r.Contributions(ctx, addr); err != nil {
			return err
		}
		out.Vault, err = r.Balance(ctx, q.derive.Vault(addr))
		return err
	})
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Milestones returns the campaign's milestones ordered by index.
func (q *Query) Milestones(ctx context.Context, campaign domain.Pubkey) ([]domain.Milestone, error) {
	var out []domain.Milestone
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		var err error
		out, err = r.Milestones(ctx, campaign)
		return err
	})
	return out, err
}

// Contribution looks the record up by its derived address.
func (q *Query) Contribution(ctx context.Context, campaign, contributor domain.Pubkey) (*domain.Contribution, bool, error) {
	addr, _ := q.derive.Contribution(campaign, contributor)
	var out *domain.Contribution
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		c, err := r.Contribution(ctx, addr)
		out = c
		return err
	})
	return absent(out, err)
}

func (q *Query) Contributions(ctx context.Context, campaign domain.Pubkey) ([]domain.Contribution, error) {
	var out []domain.Contribution
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		var err error
		out, err = r.Contributions(ctx, campaign)
		return err
	})
	return out, err
}

func (q *Query) Balance(ctx context.Context, addr domain.Pubkey) (uint64, error) {
	var out uint64
	err := q.store.View(ctx, func(ctx context.Context, r domain.AccountReader) error {
		var err error
		out, err = r.Balance(ctx, addr)
		return err
	})
	return out, err
}

func absent[T any](v *T, err error) (*T, bool, error) {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
