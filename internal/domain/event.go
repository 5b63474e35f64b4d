package domain

import "time"

// Op names a lifecycle transition.
type Op string

const (
	OpInitialize        Op = "initialize"
	OpCreateCampaign    Op = "create_campaign"
	OpFundCampaign      Op = "fund_campaign"
	OpAddMilestone      Op = "add_milestone"
	OpCompleteMilestone Op = "complete_milestone"
	OpWithdrawFunds     Op = "withdraw_funds"
	OpCloseCampaign     Op = "close_campaign"
	OpClaimRefund       Op = "claim_refund"
	OpAirdrop           Op = "airdrop"
)

// Receipt is returned for every committed transition.
type Receipt struct {
	Signature string
	Op        Op
	Signer    Pubkey
	Campaign  Pubkey
	Accounts  []Pubkey
	Amount    uint64
	At        time.Time
}

// Event describes a committed transition for subscribers.
type Event struct {
	Signature string    `json:"signature"`
	Op        Op        `json:"op"`
	Campaign  Pubkey    `json:"campaign"`
	Signer    Pubkey    `json:"signer"`
	Amount    uint64    `json:"amount,string"`
	At        time.Time `json:"at"`
}

// EventSink receives committed transitions. Publish must not block.
type EventSink interface {
	Publish(Event)
}
