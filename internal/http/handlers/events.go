package handlers

import (
	"net/http"

	"escrow/internal/domain"
)

// CampaignEvents upgrades to a websocket that streams committed transitions
// touching one campaign.
func (a *App) CampaignEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	if _, err := a.Query.RequireCampaign(r.Context(), addr); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Hub.Serve(w, r, addr)
}

// Events streams every committed transition.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	a.Hub.Serve(w, r, domain.Pubkey{})
}
