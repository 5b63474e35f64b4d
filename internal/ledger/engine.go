// Package ledger implements the campaign escrow state machine on top of a
// transactional account store.
//
// Every exported operation validates the signer and the current account state
// inside a single store transaction and either commits all of its writes or
// none of them. Balances move only between the signer's wallet and the
// campaign escrow, so the total number of lamports is conserved by every
// operation except Airdrop.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"escrow/internal/address"
	"escrow/internal/domain"
	"escrow/internal/metrics"
)

// Engine executes lifecycle transitions.
type Engine struct {
	store  domain.Store
	derive *address.Deriver
	now    func() time.Time
	sink   domain.EventSink
	logger zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock. Timestamps are truncated to seconds.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventSink publishes committed transitions to sink.
func WithEventSink(sink domain.EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(store domain.Store, derive *address.Deriver, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		derive: derive,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deriver exposes the address scheme the engine writes with.
func (e *Engine) Deriver() *address.Deriver {
	return e.derive
}

type txFunc func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error

func (e *Engine) transact(ctx context.Context, op domain.Op, signer domain.Pubkey, fn txFunc) (domain.Receipt, error) {
	start := time.Now()
	receipt := domain.Receipt{
		Signature: uuid.NewString(),
		Op:        op,
		Signer:    signer,
		At:        e.now().UTC().Truncate(time.Second),
	}

	var err error
	switch {
	case signer.IsZero():
		err = fmt.Errorf("%w: missing signer", domain.ErrUnauthorized)
	case !address.IsOnCurve(signer):
		err = fmt.Errorf("%w: %s is a derived address and cannot sign", domain.ErrUnauthorized, signer)
	default:
		err = e.store.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			r := receipt
			if err := fn(ctx, tx, &r); err != nil {
				return err
			}
			receipt = r
			return nil
		})
	}

	result := "ok"
	if err != nil {
		result = domain.Code(err)
	}
	metrics.ObserveTransition(string(op), result, receipt.Amount, time.Since(start))

	if err != nil {
		ev := e.logger.Debug()
		if !domain.IsDomainError(err) {
			ev = e.logger.Error()
		}
		ev.Err(err).Str("op", string(op)).Str("signer", signer.String()).Msg("transition rejected")
		return domain.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Info().
		Str("op", string(op)).
		Str("signature", receipt.Signature).
		Str("signer", signer.String()).
		Str("campaign", receipt.Campaign.String()).
		Uint64("amount", receipt.Amount).
		Msg("transition committed")

	if e.sink != nil && !receipt.Campaign.IsZero() {
		e.sink.Publish(domain.Event{
			Signature: receipt.Signature,
			Op:        op,
			Campaign:  receipt.Campaign,
			Signer:    signer,
			Amount:    receipt.Amount,
			At:        receipt.At,
		})
	}
	return receipt, nil
}

// Initialize creates the campaign counter. It succeeds exactly once per deployment.
func (e *Engine) Initialize(ctx context.Context, authority domain.Pubkey) (domain.Receipt, error) {
	counterAddr, bump := e.derive.Counter()
	return e.transact(ctx, domain.OpInitialize, authority, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		err := tx.InsertCounter(ctx, &domain.Counter{Address: counterAddr, Authority: authority, Bump: bump})
		if errors.Is(err, domain.ErrAccountExists) {
			return domain.ErrAlreadyInitialized
		}
		if err != nil {
			return err
		}
		r.Accounts = []domain.Pubkey{counterAddr}
		return nil
	})
}

// CreateCampaign allocates the next campaign id and opens the campaign.
func (e *Engine) CreateCampaign(ctx context.Context, creator domain.Pubkey, p domain.CampaignParams) (domain.Receipt, error) {
	if err := validateCampaignParams(p); err != nil {
		return domain.Receipt{}, fmt.Errorf("%s: %w", domain.OpCreateCampaign, err)
	}
	counterAddr, _ := e.derive.Counter()
	return e.transact(ctx, domain.OpCreateCampaign, creator, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		counter, err := tx.Counter(ctx, counterAddr)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrNotInitialized
		}
		if err != nil {
			return err
		}

		addr, bump := e.derive.Campaign(creator, counter.Count)
		campaign := &domain.Campaign{
			Address:          addr,
			ID:               counter.Count,
			Creator:          creator,
			Title:            p.Title,
			ShortDescription: p.ShortDescription,
			Category:         p.Category,
			CoverImageURL:    p.CoverImageURL,
			StoryURL:         p.StoryURL,
			FundingGoal:      p.FundingGoal,
			Deadline:         r.At.Add(time.Duration(p.DurationDays) * domain.SecondsPerDay * time.Second),
			IsActive:         true,
			CreatedAt:        r.At,
			Bump:             bump,
		}
		if err := tx.InsertCampaign(ctx, campaign); err != nil {
			return err
		}
		counter.Count++
		if err := tx.SaveCounter(ctx, counter); err != nil {
			return err
		}
		r.Campaign = addr
		r.Accounts = []domain.Pubkey{addr, counterAddr}
		return nil
	})
}

// FundCampaign moves amount from the contributor's wallet into the campaign
// escrow. Repeated pledges accumulate on the same contribution record.
func (e *Engine) FundCampaign(ctx context.Context, contributor, campaignAddr domain.Pubkey, amount uint64) (domain.Receipt, error) {
	if amount == 0 || amount > domain.MaxAmount {
		return domain.Receipt{}, fmt.Errorf("%s: %w: amount must be between 1 and %d", domain.OpFundCampaign, domain.ErrInvalidAmount, domain.MaxAmount)
	}
	return e.transact(ctx, domain.OpFundCampaign, contributor, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if !campaign.IsActive {
			return domain.ErrCampaignInactive
		}
		if campaign.Ended(r.At) {
			return fmt.Errorf("%w: deadline %s", domain.ErrCampaignEnded, campaign.Deadline.Format(time.RFC3339))
		}
		if amount > domain.MaxAmount-campaign.AmountRaised {
			return fmt.Errorf("%w: total raised would overflow", domain.ErrInvalidAmount)
		}

		if err := tx.Debit(ctx, contributor, amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, e.derive.Vault(campaign.Address), amount); err != nil {
			return err
		}

		contribAddr, bump := e.derive.Contribution(campaign.Address, contributor)
		contribution, err := tx.Contribution(ctx, contribAddr)
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			contribution = &domain.Contribution{
				Address:       contribAddr,
				Campaign:      campaign.Address,
				Contributor:   contributor,
				Amount:        amount,
				ContributedAt: r.At,
				Bump:          bump,
			}
			if err := tx.InsertContribution(ctx, contribution); err != nil {
				return err
			}
			campaign.BackerCount++
		case err != nil:
			return err
		default:
			contribution.Amount += amount
			if err := tx.SaveContribution(ctx, contribution); err != nil {
				return err
			}
		}

		campaign.AmountRaised += amount
		if err := tx.SaveCampaign(ctx, campaign); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address, contribAddr, contributor}
		r.Amount = amount
		return nil
	})
}

// AddMilestone appends the milestone at index, which must equal the
// campaign's current milestone count.
func (e *Engine) AddMilestone(ctx context.Context, creator, campaignAddr domain.Pubkey, index uint8, title string, targetAmount uint64) (domain.Receipt, error) {
	if err := validateMilestone(title, targetAmount); err != nil {
		return domain.Receipt{}, fmt.Errorf("%s: %w", domain.OpAddMilestone, err)
	}
	return e.transact(ctx, domain.OpAddMilestone, creator, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if err := authorize(creator, campaign.Creator); err != nil {
			return err
		}
		if index != campaign.MilestoneCount {
			return fmt.Errorf("%w: got %d, next is %d", domain.ErrMilestoneOutOfOrder, index, campaign.MilestoneCount)
		}
		if int(campaign.MilestoneCount) >= domain.MaxMilestonesPerCampaign {
			return fmt.Errorf("%w: %d", domain.ErrMilestoneLimitReached, domain.MaxMilestonesPerCampaign)
		}

		addr, bump := e.derive.Milestone(campaign.Address, index)
		milestone := &domain.Milestone{
			Address:        addr,
			Campaign:       campaign.Address,
			MilestoneIndex: index,
			Title:          title,
			TargetAmount:   targetAmount,
			Bump:           bump,
		}
		if err := tx.InsertMilestone(ctx, milestone); err != nil {
			return err
		}
		campaign.MilestoneCount++
		if err := tx.SaveCampaign(ctx, campaign); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address, addr}
		return nil
	})
}

// CompleteMilestone marks a milestone done once the campaign raised its target.
func (e *Engine) CompleteMilestone(ctx context.Context, creator, campaignAddr domain.Pubkey, index uint8) (domain.Receipt, error) {
	return e.transact(ctx, domain.OpCompleteMilestone, creator, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if err := authorize(creator, campaign.Creator); err != nil {
			return err
		}
		addr, _ := e.derive.Milestone(campaign.Address, index)
		milestone, err := tx.Milestone(ctx, addr)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("%w: milestone %d of campaign %s", domain.ErrAccountNotFound, index, campaign.Address)
		}
		if err != nil {
			return err
		}
		if milestone.IsCompleted {
			return domain.ErrAlreadyCompleted
		}
		if campaign.AmountRaised < milestone.TargetAmount {
			return fmt.Errorf("%w: raised %d of %d", domain.ErrTargetNotReached, campaign.AmountRaised, milestone.TargetAmount)
		}
		milestone.IsCompleted = true
		if err := tx.SaveMilestone(ctx, milestone); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address, addr}
		return nil
	})
}

// WithdrawFunds sweeps the whole escrow balance to the creator once the goal
// is met. It may be repeated to collect later pledges.
func (e *Engine) WithdrawFunds(ctx context.Context, creator, campaignAddr domain.Pubkey) (domain.Receipt, error) {
	return e.transact(ctx, domain.OpWithdrawFunds, creator, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if err := authorize(creator, campaign.Creator); err != nil {
			return err
		}
		if !campaign.GoalMet() {
			return fmt.Errorf("%w: raised %d of %d", domain.ErrGoalNotMet, campaign.AmountRaised, campaign.FundingGoal)
		}
		amount := campaign.EscrowBalance()
		if amount == 0 {
			return domain.ErrNothingToWithdraw
		}
		if err := tx.Debit(ctx, e.derive.Vault(campaign.Address), amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, creator, amount); err != nil {
			return err
		}
		campaign.AmountWithdrawn += amount
		if err := tx.SaveCampaign(ctx, campaign); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address, creator}
		r.Amount = amount
		return nil
	})
}

// CloseCampaign deactivates the campaign. It cannot be reopened.
func (e *Engine) CloseCampaign(ctx context.Context, creator, campaignAddr domain.Pubkey) (domain.Receipt, error) {
	return e.transact(ctx, domain.OpCloseCampaign, creator, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if err := authorize(creator, campaign.Creator); err != nil {
			return err
		}
		if !campaign.IsActive {
			return domain.ErrAlreadyClosed
		}
		campaign.IsActive = false
		if err := tx.SaveCampaign(ctx, campaign); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address}
		return nil
	})
}

// ClaimRefund returns a contributor's pledge from a closed campaign that
// missed its goal.
func (e *Engine) ClaimRefund(ctx context.Context, contributor, campaignAddr domain.Pubkey) (domain.Receipt, error) {
	return e.transact(ctx, domain.OpClaimRefund, contributor, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		campaign, err := loadCampaign(ctx, tx, campaignAddr)
		if err != nil {
			return err
		}
		if campaign.IsActive {
			return domain.ErrCampaignStillActive
		}
		if campaign.GoalMet() {
			return domain.ErrGoalWasMet
		}
		contribAddr, _ := e.derive.Contribution(campaign.Address, contributor)
		contribution, err := tx.Contribution(ctx, contribAddr)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("%w: no contribution from %s", domain.ErrAccountNotFound, contributor)
		}
		if err != nil {
			return err
		}
		if contribution.RefundClaimed {
			return domain.ErrAlreadyRefunded
		}
		if contribution.Amount == 0 {
			return fmt.Errorf("%w: nothing was contributed", domain.ErrInvalidAmount)
		}

		if err := tx.Debit(ctx, e.derive.Vault(campaign.Address), contribution.Amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, contributor, contribution.Amount); err != nil {
			return err
		}
		contribution.RefundClaimed = true
		if err := tx.SaveContribution(ctx, contribution); err != nil {
			return err
		}
		campaign.AmountRefunded += contribution.Amount
		if err := tx.SaveCampaign(ctx, campaign); err != nil {
			return err
		}
		r.Campaign = campaign.Address
		r.Accounts = []domain.Pubkey{campaign.Address, contribAddr, contributor}
		r.Amount = contribution.Amount
		return nil
	})
}

// Airdrop credits a wallet out of thin air. Only development deployments
// expose it. Derived accounts are refused like any other off-curve signer,
// so the faucet cannot move a campaign vault.
func (e *Engine) Airdrop(ctx context.Context, owner domain.Pubkey, amount uint64) (domain.Receipt, error) {
	if amount == 0 || amount > domain.MaxAmount {
		return domain.Receipt{}, fmt.Errorf("%s: %w", domain.OpAirdrop, domain.ErrInvalidAmount)
	}
	return e.transact(ctx, domain.OpAirdrop, owner, func(ctx context.Context, tx domain.Tx, r *domain.Receipt) error {
		if err := tx.Credit(ctx, owner, amount); err != nil {
			return err
		}
		r.Accounts = []domain.Pubkey{owner}
		r.Amount = amount
		return nil
	})
}

func loadCampaign(ctx context.Context, tx domain.Tx, addr domain.Pubkey) (*domain.Campaign, error) {
	campaign, err := tx.Campaign(ctx, addr)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrAccountNotFound, addr)
	}
	return campaign, err
}

func authorize(signer, owner domain.Pubkey) error {
	if signer != owner {
		return fmt.Errorf("%w: %s is not the campaign creator", domain.ErrUnauthorized, signer)
	}
	return nil
}
