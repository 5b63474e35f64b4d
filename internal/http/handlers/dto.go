package handlers

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"escrow/internal/domain"
)

// Lamports is an integer amount encoded as a decimal JSON string so values
// above 2^53 survive JavaScript clients. Requests may also send a JSON number.
type Lamports uint64

func (l Lamports) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(l), 10))), nil
}

func (l *Lamports) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: amount is null", domain.ErrInvalidAmount)
	}
	raw := string(b)
	if len(b) >= 2 && b[0] == '"' {
		unq, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, raw)
		}
		raw = unq
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s is not a whole number of lamports", domain.ErrInvalidAmount, raw)
	}
	*l = Lamports(v)
	return nil
}

type receiptDTO struct {
	Signature string    `json:"signature"`
	Op        domain.Op `json:"op"`
	Signer    string    `json:"signer"`
	Campaign  string    `json:"campaign,omitempty"`
	Accounts  []string  `json:"accounts"`
	Amount    Lamports  `json:"amount"`
	At        time.Time `json:"at"`
}

func toReceipt(r domain.Receipt) receiptDTO {
	out := receiptDTO{
		Signature: r.Signature,
		Op:        r.Op,
		Signer:    r.Signer.String(),
		Accounts:  make([]string, 0, len(r.Accounts)),
		Amount:    Lamports(r.Amount),
		At:        r.At,
	}
	if !r.Campaign.IsZero() {
		out.Campaign = r.Campaign.String()
	}
	for _, a := range r.Accounts {
		out.Accounts = append(out.Accounts, a.String())
	}
	return out
}

type counterDTO struct {
	Initialized bool   `json:"initialized"`
	ProgramID   string `json:"program_id"`
	Address     string `json:"address"`
	Bump        uint8  `json:"bump"`
	Authority   string `json:"authority,omitempty"`
	Count       uint64 `json:"count"`
}

type campaignDTO struct {
	Address          string          `json:"address"`
	ID               uint64          `json:"id"`
	Creator          string          `json:"creator"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	Category         domain.Category `json:"category"`
	CategoryLabel    string          `json:"category_label"`
	CoverImageURL    string          `json:"cover_image_url"`
	StoryURL         string          `json:"story_url"`
	FundingGoal      Lamports        `json:"funding_goal"`
	AmountRaised     Lamports        `json:"amount_raised"`
	AmountWithdrawn  Lamports        `json:"amount_withdrawn"`
	AmountRefunded   Lamports        `json:"amount_refunded"`
	EscrowBalance    Lamports        `json:"escrow_balance"`
	BackerCount      uint64          `json:"backer_count"`
	MilestoneCount   uint8           `json:"milestone_count"`
	IsActive         bool            `json:"is_active"`
	GoalMet          bool            `json:"goal_met"`
	Ended            bool            `json:"ended"`
	Deadline         time.Time       `json:"deadline"`
	CreatedAt        time.Time       `json:"created_at"`
	Bump             uint8           `json:"bump"`
}

func toCampaign(c *domain.Campaign, tag language.Tag, now time.Time) campaignDTO {
	return campaignDTO{
		Address:          c.Address.String(),
		ID:               c.ID,
		Creator:          c.Creator.String(),
		Title:            c.Title,
		ShortDescription: c.ShortDescription,
		Category:         c.Category,
		CategoryLabel:    c.Category.DisplayName(tag),
		CoverImageURL:    c.CoverImageURL,
		StoryURL:         c.StoryURL,
		FundingGoal:      Lamports(c.FundingGoal),
		AmountRaised:     Lamports(c.AmountRaised),
		AmountWithdrawn:  Lamports(c.AmountWithdrawn),
		AmountRefunded:   Lamports(c.AmountRefunded),
		EscrowBalance:    Lamports(c.EscrowBalance()),
		BackerCount:      c.BackerCount,
		MilestoneCount:   c.MilestoneCount,
		IsActive:         c.IsActive,
		GoalMet:          c.GoalMet(),
		Ended:            c.Ended(now),
		Deadline:         c.Deadline,
		CreatedAt:        c.CreatedAt,
		Bump:             c.Bump,
	}
}

type milestoneDTO struct {
	Address      string   `json:"address"`
	Campaign     string   `json:"campaign"`
	Index        uint8    `json:"index"`
	Title        string   `json:"title"`
	TargetAmount Lamports `json:"target_amount"`
	IsCompleted  bool     `json:"is_completed"`
	Bump         uint8    `json:"bump"`
}

func toMilestone(m *domain.Milestone) milestoneDTO {
	return milestoneDTO{
		Address:      m.Address.String(),
		Campaign:     m.Campaign.String(),
		Index:        m.MilestoneIndex,
		Title:        m.Title,
		TargetAmount: Lamports(m.TargetAmount),
		IsCompleted:  m.IsCompleted,
		Bump:         m.Bump,
	}
}

type contributionDTO struct {
	Address       string    `json:"address"`
	Campaign      string    `json:"campaign"`
	Contributor   string    `json:"contributor"`
	Amount        Lamports  `json:"amount"`
	ContributedAt time.Time `json:"contributed_at"`
	RefundClaimed bool      `json:"refund_claimed"`
	Bump          uint8     `json:"bump"`
}

func toContribution(c *domain.Contribution) contributionDTO {
	return contributionDTO{
		Address:       c.Address.String(),
		Campaign:      c.Campaign.String(),
		Contributor:   c.Contributor.String(),
		Amount:        Lamports(c.Amount),
		ContributedAt: c.ContributedAt,
		RefundClaimed: c.RefundClaimed,
		Bump:          c.Bump,
	}
}
