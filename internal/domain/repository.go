package domain

import "context"

// AccountReader reads persisted accounts. Single-account lookups return
// ErrAccountNotFound when no record backs the address.
type AccountReader interface {
	Counter(ctx context.Context, addr Pubkey) (*Counter, error)
	Campaign(ctx context.Context, addr Pubkey) (*Campaign, error)
	Milestone(ctx context.Context, addr Pubkey) (*Milestone, error)
	Contribution(ctx context.Context, addr Pubkey) (*Contribution, error)
	// Balance returns zero for addresses that never held lamports.
	Balance(ctx context.Context, addr Pubkey) (uint64, error)
	// Campaigns returns up to limit campaigns whose address text sorts after
	// the cursor, in ascending address order.
	Campaigns(ctx context.Context, after string, limit int) ([]Campaign, error)
	Milestones(ctx context.Context, campaign Pubkey) ([]Milestone, error)
	Contributions(ctx context.Context, campaign Pubkey) ([]Contribution, error)
}

// AccountWriter mutates accounts inside a transaction. Insert* fails with
// ErrAccountExists when the address is taken; Save* overwrites an existing
// record. Debit fails with ErrInsufficientFunds instead of going negative.
type AccountWriter interface {
	InsertCounter(ctx context.Context, c *Counter) error
	SaveCounter(ctx context.Context, c *Counter) error
	InsertCampaign(ctx context.Context, c *Campaign) error
	SaveCampaign(ctx context.Context, c *Campaign) error
	InsertMilestone(ctx context.Context, m *Milestone) error
	SaveMilestone(ctx context.Context, m *Milestone) error
	InsertContribution(ctx context.Context, c *Contribution) error
	SaveContribution(ctx context.Context, c *Contribution) error
	Credit(ctx context.Context, addr Pubkey, amount uint64) error
	Debit(ctx context.Context, addr Pubkey, amount uint64) error
}

// Tx is the view of the store available to a mutating transaction. Reads
// through a Tx lock the rows they return until the transaction ends.
type Tx interface {
	AccountReader
	AccountWriter
}

// Store executes transactions against persisted accounts. Update commits every
// write made by fn when fn returns nil and discards all of them otherwise.
// Transactions touching the same account are serialized.
type Store interface {
	View(ctx context.Context, fn func(ctx context.Context, r AccountReader) error) error
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
