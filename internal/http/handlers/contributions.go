package handlers

import (
	"fmt"
	"net/http"

	"escrow/internal/domain"
)

func (a *App) ContributionsList(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	if _, err := a.Query.RequireCampaign(r.Context(), addr); err != nil {
		a.fail(w, r, err)
		return
	}
	cs, err := a.Query.Contributions(r.Context(), addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]contributionDTO, 0, len(cs))
	for i := range cs {
		items = append(items, toContribution(&cs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ContributionGet looks a contributor up by derived address. Absence is 404.
func (a *App) ContributionGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	contributor, ok := a.pubkeyParam(w, r, "contributor")
	if !ok {
		return
	}
	c, found, err := a.Query.Contribution(r.Context(), addr, contributor)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !found {
		a.fail(w, r, fmt.Errorf("%w: contribution of %s to %s", domain.ErrAccountNotFound, contributor, addr))
		return
	}
	a.json(w, http.StatusOK, toContribution(c))
}
