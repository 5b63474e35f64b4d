package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"escrow/internal/domain"
)

// addMilestoneRequest omits Index to append after the current milestones.
type addMilestoneRequest struct {
	Index        *uint8   `json:"index"`
	Title        string   `json:"title"`
	TargetAmount Lamports `json:"target_amount"`
}

type milestoneReceiptResponse struct {
	Receipt   receiptDTO    `json:"receipt"`
	Milestone *milestoneDTO `json:"milestone,omitempty"`
}

func (a *App) MilestonesAdd(w http.ResponseWriter, r *http.Request) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	var req addMilestoneRequest
	if !a.decode(w, r, &req) {
		return
	}

	var index uint8
	if req.Index != nil {
		index = *req.Index
	} else {
		c, err := a.Query.RequireCampaign(r.Context(), addr)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		index = c.MilestoneCount
	}

	receipt, err := a.Engine.AddMilestone(r.Context(), signer, addr, index, req.Title, uint64(req.TargetAmount))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondWithMilestone(w, r, http.StatusCreated, receipt.Campaign, index, toReceipt(receipt))
}

func (a *App) MilestonesList(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	if _, err := a.Query.RequireCampaign(r.Context(), addr); err != nil {
		a.fail(w, r, err)
		return
	}
	ms, err := a.Query.Milestones(r.Context(), addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]milestoneDTO, 0, len(ms))
	for i := range ms {
		items = append(items, toMilestone(&ms[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) MilestoneComplete(w http.ResponseWriter, r *http.Request) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	receipt, err := a.Engine.CompleteMilestone(r.Context(), signer, addr, index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondWithMilestone(w, r, http.StatusOK, addr, index, toReceipt(receipt))
}

func (a *App) respondWithMilestone(w http.ResponseWriter, r *http.Request, status int, campaign domain.Pubkey, index uint8, receipt receiptDTO) {
	resp := milestoneReceiptResponse{Receipt: receipt}
	ms, err := a.Query.Milestones(r.Context(), campaign)
	if err != nil {
		a.Logger.Warn().Err(err).Str("signature", receipt.Signature).Msg("reload milestone after commit")
	}
	for i := range ms {
		if ms[i].MilestoneIndex == index {
			dto := toMilestone(&ms[i])
			resp.Milestone = &dto
			break
		}
	}
	a.json(w, status, resp)
}
