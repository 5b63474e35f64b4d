// Package audit reconciles stored campaign accounts against the ledger
// invariants and publishes a report for each run.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"escrow/internal/domain"
	"escrow/internal/ledger"
	"escrow/internal/metrics"
)

// Check names.
const (
	CheckRaisedSum       = "raised_equals_contributions"
	CheckBackerCount     = "backer_count"
	CheckRefundedSum     = "refunded_equals_claims"
	CheckMilestoneCount  = "milestone_count"
	CheckMilestoneOrder  = "milestone_indices_contiguous"
	CheckMilestoneTarget = "completed_milestone_reached"
	CheckEscrowBalance   = "escrow_matches_vault"
	CheckOutflows        = "outflows_within_raised"
	CheckWithdrawGate    = "withdrawn_only_when_goal_met"
	CheckRefundGate      = "refunded_only_when_closed_unmet"
)

// Violation is one failed check on one campaign.
type Violation struct {
	Campaign domain.Pubkey `json:"campaign"`
	Check    string        `json:"check"`
	Detail   string        `json:"detail"`
}

// Report summarizes one audit run.
type Report struct {
	ID          uuid.UUID   `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Campaigns   int         `json:"campaigns"`
	TotalRaised uint64      `json:"total_raised,string"`
	TotalEscrow uint64      `json:"total_escrow,string"`
	Violations  []Violation `json:"violations"`
	ReportKey   string      `json:"report_key,omitempty"`
}

// Clean reports whether the run found no violations.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// ReportWriter persists serialized reports. storage.FileStore satisfies it.
type ReportWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// RunRecorder keeps a history of runs.
type RunRecorder interface {
	RecordAuditRun(ctx context.Context, r *Report) error
}

type Auditor struct {
	query   *ledger.Query
	reports ReportWriter
	runs    RunRecorder
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Auditor)

func WithReportWriter(w ReportWriter) Option {
	return func(a *Auditor) { a.reports = w }
}

func WithRunRecorder(r RunRecorder) Option {
	return func(a *Auditor) { a.runs = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

func New(query *ledger.Query, opts ...Option) *Auditor {
	a := &Auditor{query: query, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run checks every campaign. Violations are reported, not returned as
// errors; err is set only when the state could not be read or the report
// could not be stored.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{ID: uuid.New(), StartedAt: a.now().UTC(), Violations: []Violation{}}

	err := a.scan(ctx, report)
	report.FinishedAt = a.now().UTC()
	if err == nil {
		err = a.publish(ctx, report)
	}
	metrics.RecordAudit(len(report.Violations), err)
	if err != nil {
		a.logger.Error().Err(err).Str("audit_id", report.ID.String()).Msg("audit run failed")
		return report, err
	}

	ev := a.logger.Info()
	if !report.Clean() {
		ev = a.logger.Warn()
	}
	ev.Str("audit_id", report.ID.String()).
		Int("campaigns", report.Campaigns).
		Int("violations", len(report.Violations)).
		Str("report", report.ReportKey).
		Msg("audit run finished")
	return report, nil
}

// scan lists campaigns page by page, then checks each against a fresh
// snapshot so pledges committed after the page was read cannot show up as
// drift.
func (a *Auditor) scan(ctx context.Context, report *Report) error {
	for listed, err := range a.query.Campaigns(ctx) {
		if err != nil {
			return fmt.Errorf("list campaigns: %w", err)
		}
		snap, err := a.query.Snapshot(ctx, listed.Address)
		if err != nil {
			return fmt.Errorf("campaign %s: %w", listed.Address, err)
		}
		c := &snap.Campaign
		report.Campaigns++
		report.TotalRaised += c.AmountRaised
		report.TotalEscrow += c.EscrowBalance()
		report.Violations = append(report.Violations, checkCampaign(snap)...)
	}
	return nil
}

func checkCampaign(snap *ledger.CampaignSnapshot) []Violation {
	c := &snap.Campaign
	var out []Violation
	fail := func(check, format string, args ...any) {
		out = append(out, Violation{Campaign: c.Address, Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	var sum, refunded, backers uint64
	for _, k := range snap.Contributions {
		sum += k.Amount
		if k.Amount > 0 {
			backers++
		}
		if k.RefundClaimed {
			refunded += k.Amount
		}
	}
	if sum != c.AmountRaised {
		fail(CheckRaisedSum, "amount_raised %d, contributions sum to %d", c.AmountRaised, sum)
	}
	if backers != c.BackerCount {
		fail(CheckBackerCount, "backer_count %d, %d contributions with a positive amount", c.BackerCount, backers)
	}
	if refunded != c.AmountRefunded {
		fail(CheckRefundedSum, "amount_refunded %d, claimed refunds sum to %d", c.AmountRefunded, refunded)
	}

	if len(snap.Milestones) != int(c.MilestoneCount) {
		fail(CheckMilestoneCount, "milestone_count %d, %d milestones stored", c.MilestoneCount, len(snap.Milestones))
	}
	for i, m := range snap.Milestones {
		if int(m.MilestoneIndex) != i {
			fail(CheckMilestoneOrder, "position %d holds index %d", i, m.MilestoneIndex)
			break
		}
	}
	for _, m := range snap.Milestones {
		if m.IsCompleted && m.TargetAmount > c.AmountRaised {
			fail(CheckMilestoneTarget, "milestone %d completed with target %d above raised %d",
				m.MilestoneIndex, m.TargetAmount, c.AmountRaised)
		}
	}

	if c.AmountWithdrawn > c.AmountRaised || c.AmountRefunded > c.AmountRaised-c.AmountWithdrawn {
		fail(CheckOutflows, "withdrawn %d + refunded %d exceed raised %d", c.AmountWithdrawn, c.AmountRefunded, c.AmountRaised)
	} else if snap.Vault != c.EscrowBalance() {
		fail(CheckEscrowBalance, "vault holds %d, ledger expects %d", snap.Vault, c.EscrowBalance())
	}
	if c.AmountWithdrawn > 0 && !c.GoalMet() {
		fail(CheckWithdrawGate, "withdrew %d below goal %d", c.AmountWithdrawn, c.FundingGoal)
	}
	if c.AmountRefunded > 0 && (c.IsActive || c.GoalMet()) {
		fail(CheckRefundGate, "refunded %d while active=%t goal_met=%t", c.AmountRefunded, c.IsActive, c.GoalMet())
	}
	return out
}

func (a *Auditor) publish(ctx context.Context, report *Report) error {
	if a.reports != nil {
		key := fmt.Sprintf("audit/%s/%s.json", report.StartedAt.Format("2006/01/02"), report.ID)
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		stored, err := a.reports.Write(ctx, key, data)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		report.ReportKey = stored
	}
	if a.runs != nil {
		if err := a.runs.RecordAuditRun(ctx, report); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	return nil
}
