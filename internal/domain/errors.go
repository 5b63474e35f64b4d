package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotInitialized        = errors.New("program not initialized")
	ErrAlreadyInitialized    = errors.New("program already initialized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidGoal           = errors.New("funding goal must be positive")
	ErrInvalidDuration       = errors.New("invalid campaign duration")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidCategory       = errors.New("unknown category")
	ErrCampaignInactive      = errors.New("campaign is not active")
	ErrCampaignEnded         = errors.New("campaign deadline has passed")
	ErrAlreadyClosed         = errors.New("campaign already closed")
	ErrMilestoneOutOfOrder   = errors.New("milestone index out of order")
	ErrMilestoneLimitReached = errors.New("milestone limit reached")
	ErrAlreadyCompleted      = errors.New("milestone already completed")
	ErrTargetNotReached      = errors.New("milestone target not reached")
	ErrGoalNotMet            = errors.New("funding goal not met")
	ErrNothingToWithdraw     = errors.New("nothing to withdraw")
	ErrCampaignStillActive   = errors.New("campaign still active")
	ErrGoalWasMet            = errors.New("funding goal was met")
	ErrAlreadyRefunded       = errors.New("refund already claimed")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountExists         = errors.New("account already exists")
)

// codes maps each sentinel to the stable identifier surfaced to clients.
// Order matters: more specific input errors precede ErrInvalidInput.
var codes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrInvalidGoal, "invalid_goal"},
	{ErrInvalidDuration, "invalid_duration"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidCategory, "invalid_category"},
	{ErrInvalidInput, "invalid_input"},
	{ErrCampaignInactive, "campaign_inactive"},
	{ErrCampaignEnded, "campaign_ended"},
	{ErrAlreadyClosed, "already_closed"},
	{ErrMilestoneOutOfOrder, "milestone_out_of_order"},
	{ErrMilestoneLimitReached, "milestone_limit_reached"},
	{ErrAlreadyCompleted, "already_completed"},
	{ErrTargetNotReached, "target_not_reached"},
	{ErrGoalNotMet, "goal_not_met"},
	{ErrNothingToWithdraw, "nothing_to_withdraw"},
	{ErrCampaignStillActive, "campaign_still_active"},
	{ErrGoalWasMet, "goal_was_met"},
	{ErrAlreadyRefunded, "already_refunded"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountExists, "account_exists"},
}

// Code returns the client-facing error code for err, or "internal" when err
// does not wrap a domain error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsDomainError reports whether err is an expected, caller-recoverable failure.
func IsDomainError(err error) bool {
	return err != nil && Code(err) != "internal"
}
