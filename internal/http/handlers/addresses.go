package handlers

import (
	"net/http"
	"strconv"

	"escrow/internal/domain"
)

type addressDTO struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func (a *App) address(w http.ResponseWriter, kind string, addr domain.Pubkey, bump uint8) {
	a.json(w, http.StatusOK, addressDTO{Kind: kind, Address: addr.String(), Bump: bump})
}

func (a *App) AddressCounter(w http.ResponseWriter, r *http.Request) {
	addr, bump := a.Engine.Deriver().Counter()
	a.address(w, "counter", addr, bump)
}

// AddressCampaign derives ?creator=&id= into the campaign address.
func (a *App) AddressCampaign(w http.ResponseWriter, r *http.Request) {
	creator, ok := a.pubkeyQuery(w, r, "creator")
	if !ok {
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		a.badRequest(w, r, "id must be an unsigned integer")
		return
	}
	addr, bump := a.Engine.Deriver().Campaign(creator, id)
	a.address(w, "campaign", addr, bump)
}

func (a *App) AddressMilestone(w http.ResponseWriter, r *http.Request) {
	campaign, ok := a.pubkeyQuery(w, r, "campaign")
	if !ok {
		return
	}
	index, err := parseIndex(r.URL.Query().Get("index"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	addr, bump := a.Engine.Deriver().Milestone(campaign, index)
	a.address(w, "milestone", addr, bump)
}

func (a *App) AddressContribution(w http.ResponseWriter, r *http.Request) {
	campaign, ok := a.pubkeyQuery(w, r, "campaign")
	if !ok {
		return
	}
	contributor, ok := a.pubkeyQuery(w, r, "contributor")
	if !ok {
		return
	}
	addr, bump := a.Engine.Deriver().Contribution(campaign, contributor)
	a.address(w, "contribution", addr, bump)
}

// AddressVault returns the account that holds a campaign's escrowed lamports.
func (a *App) AddressVault(w http.ResponseWriter, r *http.Request) {
	campaign, ok := a.pubkeyQuery(w, r, "campaign")
	if !ok {
		return
	}
	a.address(w, "vault", a.Engine.Deriver().Vault(campaign), 0)
}
