package domain

import (
	"math"
	"time"
)

const (
	MaxTitleLength          = 80
	MaxDescriptionLength    = 200
	MaxURLLength            = 200
	MaxMilestoneTitleLength = 100

	// MaxMilestonesPerCampaign is the product limit. The address encoding
	// (single-byte index) caps it at 256 regardless.
	MaxMilestonesPerCampaign = 10

	MinCampaignDurationDays = 1
	MaxCampaignDurationDays = 90

	SecondsPerDay = 86400

	// MaxAmount bounds every balance and running total so that lamport values
	// stay representable as signed 64-bit integers in storage.
	MaxAmount uint64 = math.MaxInt64
)

// Counter is the deployment-wide campaign id allocator.
type Counter struct {
	Address   Pubkey
	Count     uint64
	Authority Pubkey
	Bump      uint8
}

// Campaign is a single funding effort and the escrow that holds its pledges.
type Campaign struct {
	Address          Pubkey
	ID               uint64
	Creator          Pubkey
	Title            string
	ShortDescription string
	Category         Category
	CoverImageURL    string
	StoryURL         string
	FundingGoal      uint64
	Deadline         time.Time
	AmountRaised     uint64
	AmountWithdrawn  uint64
	AmountRefunded   uint64
	BackerCount      uint64
	IsActive         bool
	CreatedAt        time.Time
	MilestoneCount   uint8
	Bump             uint8
}

// GoalMet reports whether cumulative pledges reached the funding goal.
func (c *Campaign) GoalMet() bool {
	return c.AmountRaised >= c.FundingGoal
}

// EscrowBalance is the amount still held for the campaign.
func (c *Campaign) EscrowBalance() uint64 {
	return c.AmountRaised - c.AmountWithdrawn - c.AmountRefunded
}

// Ended reports whether the funding window has closed at now.
func (c *Campaign) Ended(now time.Time) bool {
	return now.After(c.Deadline)
}

// Milestone is an ordered sub-goal of a campaign.
type Milestone struct {
	Address        Pubkey
	Campaign       Pubkey
	MilestoneIndex uint8
	Title          string
	TargetAmount   uint64
	IsCompleted    bool
	Bump           uint8
}

// Contribution accumulates one contributor's pledges to one campaign.
type Contribution struct {
	Address       Pubkey
	Campaign      Pubkey
	Contributor   Pubkey
	Amount        uint64
	ContributedAt time.Time
	RefundClaimed bool
	Bump          uint8
}

// CampaignParams carries the creator-supplied fields of a new campaign.
type CampaignParams struct {
	Title            string
	ShortDescription string
	Category         Category
	CoverImageURL    string
	StoryURL         string
	FundingGoal      uint64
	DurationDays     uint64
}
