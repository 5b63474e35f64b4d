// Package repo implements the account store on PostgreSQL.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"escrow/internal/domain"
	"escrow/internal/infra"
	"escrow/internal/sqlinline"
)

// AccountStore implements domain.Store using PostgreSQL.
//
// Update runs in a read-committed transaction and every account read inside
// it takes a row lock, so transitions touching the same campaign or counter
// are serialized while disjoint campaigns proceed concurrently.
type AccountStore struct {
	db infra.TxRunner
}

func NewAccountStore(db infra.TxRunner) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) View(ctx context.Context, fn func(ctx context.Context, r domain.AccountReader) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return s.db.InTx(ctx, opts, func(ctx context.Context, q infra.SQLExecutor) error {
		return fn(ctx, &accountTx{q: q})
	})
}

func (s *AccountStore) Update(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	return s.db.InTx(ctx, opts, func(ctx context.Context, q infra.SQLExecutor) error {
		return fn(ctx, &accountTx{q: q, lock: true})
	})
}

type accountTx struct {
	q    infra.SQLExecutor
	lock bool
}

func (t *accountTx) pick(plain, forUpdate string) string {
	if t.lock {
		return forUpdate
	}
	return plain
}

func (t *accountTx) Counter(ctx context.Context, addr domain.Pubkey) (*domain.Counter, error) {
	row := t.q.QueryRow(ctx, t.pick(sqlinline.QSelectCounter, sqlinline.QSelectCounterForUpdate), addr.String())
	return scanCounter(row)
}

func (t *accountTx) Campaign(ctx context.Context, addr domain.Pubkey) (*domain.Campaign, error) {
	row := t.q.QueryRow(ctx, t.pick(sqlinline.QSelectCampaign, sqlinline.QSelectCampaignForUpdate), addr.String())
	return scanCampaign(row)
}

func (t *accountTx) Milestone(ctx context.Context, addr domain.Pubkey) (*domain.Milestone, error) {
	row := t.q.QueryRow(ctx, t.pick(sqlinline.QSelectMilestone, sqlinline.QSelectMilestoneForUpdate), addr.String())
	return scanMilestone(row)
}

func (t *accountTx) Contribution(ctx context.Context, addr domain.Pubkey) (*domain.Contribution, error) {
	row := t.q.QueryRow(ctx, t.pick(sqlinline.QSelectContribution, sqlinline.QSelectContributionForUpdate), addr.String())
	return scanContribution(row)
}

func (t *accountTx) Balance(ctx context.Context, addr domain.Pubkey) (uint64, error) {
	var lamports int64
	if err := t.q.QueryRow(ctx, sqlinline.QSelectBalance, addr.String()).Scan(&lamports); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(lamports), nil
}

func (t *accountTx) Campaigns(ctx context.Context, after string, limit int) ([]domain.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.q.Query(ctx, sqlinline.QListCampaigns, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *accountTx) Milestones(ctx context.Context, campaign domain.Pubkey) ([]domain.Milestone, error) {
	rows, err := t.q.Query(ctx, sqlinline.QListMilestones, campaign.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *accountTx) Contributions(ctx context.Context, campaign domain.Pubkey) ([]domain.Contribution, error) {
	rows, err := t.q.Query(ctx, sqlinline.QListContributions, campaign.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *accountTx) InsertCounter(ctx context.Context, c *domain.Counter) error {
	return t.insert(ctx, sqlinline.QInsertCounter,
		c.Address.String(), int64(c.Count), c.Authority.String(), int16(c.Bump))
}

func (t *accountTx) SaveCounter(ctx context.Context, c *domain.Counter) error {
	return t.save(ctx, sqlinline.QUpdateCounter, c.Address.String(), int64(c.Count))
}

func (t *accountTx) InsertCampaign(ctx context.Context, c *domain.Campaign) error {
	return t.insert(ctx, sqlinline.QInsertCampaign,
		c.Address.String(), int64(c.ID), c.Creator.String(), c.Title, c.ShortDescription,
		int16(c.Category), c.CoverImageURL, c.StoryURL, int64(c.FundingGoal), c.Deadline.UTC(),
		int64(c.AmountRaised), int64(c.AmountWithdrawn), int64(c.AmountRefunded),
		int64(c.BackerCount), c.IsActive, c.CreatedAt.UTC(), int16(c.MilestoneCount), int16(c.Bump))
}

// SaveCampaign persists the mutable campaign fields only.
func (t *accountTx) SaveCampaign(ctx context.Context, c *domain.Campaign) error {
	return t.save(ctx, sqlinline.QUpdateCampaign,
		c.Address.String(), int64(c.AmountRaised), int64(c.AmountWithdrawn), int64(c.AmountRefunded),
		int64(c.BackerCount), c.IsActive, int16(c.MilestoneCount))
}

func (t *accountTx) InsertMilestone(ctx context.Context, m *domain.Milestone) error {
	return t.insert(ctx, sqlinline.QInsertMilestone,
		m.Address.String(), m.Campaign.String(), int16(m.MilestoneIndex), m.Title,
		int64(m.TargetAmount), m.IsCompleted, int16(m.Bump))
}

func (t *accountTx) SaveMilestone(ctx context.Context, m *domain.Milestone) error {
	return t.save(ctx, sqlinline.QUpdateMilestone, m.Address.String(), m.IsCompleted)
}

func (t *accountTx) InsertContribution(ctx context.Context, c *domain.Contribution) error {
	return t.insert(ctx, sqlinline.QInsertContribution,
		c.Address.String(), c.Campaign.String(), c.Contributor.String(), int64(c.Amount),
		c.ContributedAt.UTC(), c.RefundClaimed, int16(c.Bump))
}

func (t *accountTx) SaveContribution(ctx context.Context, c *domain.Contribution) error {
	return t.save(ctx, sqlinline.QUpdateContribution, c.Address.String(), int64(c.Amount), c.RefundClaimed)
}

func (t *accountTx) Credit(ctx context.Context, addr domain.Pubkey, amount uint64) error {
	if amount > domain.MaxAmount {
		return domain.ErrInvalidAmount
	}
	tag, err := t.q.Exec(ctx, sqlinline.QCreditBalance, addr.String(), int64(amount), int64(domain.MaxAmount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: balance of %s would overflow", domain.ErrInvalidAmount, addr)
	}
	return nil
}

func (t *accountTx) Debit(ctx context.Context, addr domain.Pubkey, amount uint64) error {
	if amount > domain.MaxAmount {
		return domain.ErrInsufficientFunds
	}
	tag, err := t.q.Exec(ctx, sqlinline.QDebitBalance, addr.String(), int64(amount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s cannot cover %d", domain.ErrInsufficientFunds, addr, amount)
	}
	return nil
}

func (t *accountTx) insert(ctx context.Context, query string, args ...any) error {
	tag, err := t.q.Exec(ctx, query, args...)
	if infra.IsUniqueViolation(err) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountExists
	}
	return nil
}

func (t *accountTx) save(ctx context.Context, query string, args ...any) error {
	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCounter(row scanner) (*domain.Counter, error) {
	var (
		c               domain.Counter
		addr, authority string
		count           int64
		bump            int16
	)
	if err := row.Scan(&addr, &count, &authority, &bump); err != nil {
		return nil, notFound(err)
	}
	keys, err := parseKeys(addr, authority)
	if err != nil {
		return nil, err
	}
	c.Address, c.Authority = keys[0], keys[1]
	c.Count = uint64(count)
	c.Bump = uint8(bump)
	return &c, nil
}

func scanCampaign(row scanner) (*domain.Campaign, error) {
	var (
		c                                     domain.Campaign
		addr, creator                         string
		id, goal, raised, withdrawn, refunded int64
		backers                               int64
		category, milestoneCount, bump        int16
		deadline, createdAt                   time.Time
	)
	err := row.Scan(&addr, &id, &creator, &c.Title, &c.ShortDescription, &category, &c.CoverImageURL,
		&c.StoryURL, &goal, &deadline, &raised, &withdrawn, &refunded, &backers,
		&c.IsActive, &createdAt, &milestoneCount, &bump)
	if err != nil {
		return nil, notFound(err)
	}
	keys, err := parseKeys(addr, creator)
	if err != nil {
		return nil, err
	}
	c.Address, c.Creator = keys[0], keys[1]
	c.ID = uint64(id)
	c.Category = domain.Category(category)
	c.FundingGoal = uint64(goal)
	c.Deadline = deadline.UTC()
	c.AmountRaised = uint64(raised)
	c.AmountWithdrawn = uint64(withdrawn)
	c.AmountRefunded = uint64(refunded)
	c.BackerCount = uint64(backers)
	c.CreatedAt = createdAt.UTC()
	c.MilestoneCount = uint8(milestoneCount)
	c.Bump = uint8(bump)
	return &c, nil
}

func scanMilestone(row scanner) (*domain.Milestone, error) {
	var (
		m              domain.Milestone
		addr, campaign string
		index, bump    int16
		target         int64
	)
	if err := row.Scan(&addr, &campaign, &index, &m.Title, &target, &m.IsCompleted, &bump); err != nil {
		return nil, notFound(err)
	}
	keys, err := parseKeys(addr, campaign)
	if err != nil {
		return nil, err
	}
	m.Address, m.Campaign = keys[0], keys[1]
	m.MilestoneIndex = uint8(index)
	m.TargetAmount = uint64(target)
	m.Bump = uint8(bump)
	return &m, nil
}

func scanContribution(row scanner) (*domain.Contribution, error) {
	var (
		c                           domain.Contribution
		addr, campaign, contributor string
		amount                      int64
		bump                        int16
		at                          time.Time
	)
	if err := row.Scan(&addr, &campaign, &contributor, &amount, &at, &c.RefundClaimed, &bump); err != nil {
		return nil, notFound(err)
	}
	keys, err := parseKeys(addr, campaign, contributor)
	if err != nil {
		return nil, err
	}
	c.Address, c.Campaign, c.Contributor = keys[0], keys[1], keys[2]
	c.Amount = uint64(amount)
	c.ContributedAt = at.UTC()
	c.Bump = uint8(bump)
	return &c, nil
}

func notFound(err error) error {
	if infra.IsNoRows(err) {
		return domain.ErrAccountNotFound
	}
	return err
}

func parseKeys(texts ...string) ([]domain.Pubkey, error) {
	out := make([]domain.Pubkey, len(texts))
	for i, s := range texts {
		pk, err := domain.ParsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("stored key %q: %w", s, err)
		}
		out[i] = pk
	}
	return out, nil
}

var _ domain.Store = (*AccountStore)(nil)
