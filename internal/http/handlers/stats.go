package handlers

import (
	"net/http"
	"time"
)

// StatsSummary aggregates every campaign. It walks the full campaign set and
// is meant for dashboards, not hot paths.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	var campaigns, active, ended, goalMet, backers uint64
	var raised, escrow, withdrawn, refunded uint64
	now := time.Now()
	for c, err := range a.Query.Campaigns(r.Context()) {
		if err != nil {
			a.fail(w, r, err)
			return
		}
		campaigns++
		if c.IsActive {
			active++
		}
		if c.Ended(now) {
			ended++
		}
		if c.GoalMet() {
			goalMet++
		}
		backers += c.BackerCount
		raised += c.AmountRaised
		escrow += c.EscrowBalance()
		withdrawn += c.AmountWithdrawn
		refunded += c.AmountRefunded
	}
	a.json(w, http.StatusOK, map[string]any{
		"campaigns":       campaigns,
		"active":          active,
		"ended":           ended,
		"goal_met":        goalMet,
		"backers":         backers,
		"total_raised":    Lamports(raised),
		"total_escrow":    Lamports(escrow),
		"total_withdrawn": Lamports(withdrawn),
		"total_refunded":  Lamports(refunded),
	})
}
