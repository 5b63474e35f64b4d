package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"escrow/internal/domain"
	"escrow/internal/middleware"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type createCampaignRequest struct {
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	Category         *domain.Category `json:"category"`
	CoverImageURL    string          `json:"cover_image_url"`
	StoryURL         string          `json:"story_url"`
	FundingGoal      Lamports        `json:"funding_goal"`
	DurationDays     uint64          `json:"duration_days"`
}

type amountRequest struct {
	Amount Lamports `json:"amount"`
}

type campaignReceiptResponse struct {
	Receipt  receiptDTO   `json:"receipt"`
	Campaign *campaignDTO `json:"campaign,omitempty"`
}

func (a *App) CampaignsCreate(w http.ResponseWriter, r *http.Request) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	var req createCampaignRequest
	if !a.decode(w, r, &req) {
		return
	}
	// A missing or null category never falls back to the zero value.
	if req.Category == nil {
		a.fail(w, r, fmt.Errorf("%w: category is required", domain.ErrInvalidCategory))
		return
	}
	receipt, err := a.Engine.CreateCampaign(r.Context(), signer, domain.CampaignParams{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Category:         *req.Category,
		CoverImageURL:    req.CoverImageURL,
		StoryURL:         req.StoryURL,
		FundingGoal:      uint64(req.FundingGoal),
		DurationDays:     req.DurationDays,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondWithCampaign(w, r, http.StatusCreated, receipt)
}

// CampaignsList pages campaigns in address order. Filters apply after
// paging, so a page may hold fewer than limit items while next_cursor is set.
func (a *App) CampaignsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	var filters []func(*domain.Campaign) bool
	if raw := q.Get("creator"); raw != "" {
		creator, ok := a.pubkeyQuery(w, r, "creator")
		if !ok {
			return
		}
		filters = append(filters, func(c *domain.Campaign) bool { return c.Creator == creator })
	}
	if raw := q.Get("category"); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		filters = append(filters, func(c *domain.Campaign) bool { return c.Category == category })
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			a.badRequest(w, r, "active must be a boolean")
			return
		}
		filters = append(filters, func(c *domain.Campaign) bool { return c.IsActive == active })
	}

	tag := middleware.LocaleTag(r.Context())
	now := time.Now()
	items := make([]campaignDTO, 0, limit)
	scanned, last, next := 0, "", ""
	for c, err := range a.Query.CampaignsAfter(r.Context(), q.Get("after")) {
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if scanned == limit {
			next = last
			break
		}
		scanned++
		last = c.Address.String()
		if matches(&c, filters) {
			items = append(items, toCampaign(&c, tag, now))
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
}

func matches(c *domain.Campaign, filters []func(*domain.Campaign) bool) bool {
	for _, f := range filters {
		if !f(c) {
			return false
		}
	}
	return true
}

func (a *App) CampaignsGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	c, err := a.Query.RequireCampaign(r.Context(), addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toCampaign(c, middleware.LocaleTag(r.Context()), time.Now()))
}

func (a *App) CampaignFund(w http.ResponseWriter, r *http.Request) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	var req amountRequest
	if !a.decode(w, r, &req) {
		return
	}
	receipt, err := a.Engine.FundCampaign(r.Context(), signer, addr, uint64(req.Amount))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondWithCampaign(w, r, http.StatusOK, receipt)
}

func (a *App) CampaignWithdraw(w http.ResponseWriter, r *http.Request) {
	a.signedAction(w, r, a.Engine.WithdrawFunds)
}

func (a *App) CampaignClose(w http.ResponseWriter, r *http.Request) {
	a.signedAction(w, r, a.Engine.CloseCampaign)
}

func (a *App) CampaignRefund(w http.ResponseWriter, r *http.Request) {
	a.signedAction(w, r, a.Engine.ClaimRefund)
}

// signedAction runs a body-less transition signed by the caller against the
// campaign in the URL.
func (a *App) signedAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, signer, campaign domain.Pubkey) (domain.Receipt, error)) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	receipt, err := op(r.Context(), signer, addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondWithCampaign(w, r, http.StatusOK, receipt)
}

// respondWithCampaign returns the receipt with the campaign state after the
// commit. The transition already succeeded, so a failed re-read only drops
// the campaign from the response.
func (a *App) respondWithCampaign(w http.ResponseWriter, r *http.Request, status int, receipt domain.Receipt) {
	resp := campaignReceiptResponse{Receipt: toReceipt(receipt)}
	c, err := a.Query.RequireCampaign(r.Context(), receipt.Campaign)
	if err != nil {
		a.Logger.Warn().Err(err).Str("signature", receipt.Signature).Msg("reload campaign after commit")
	} else {
		dto := toCampaign(c, middleware.LocaleTag(r.Context()), time.Now())
		resp.Campaign = &dto
	}
	a.json(w, status, resp)
}
