package handlers

import (
	"net/http"
)

func (a *App) AccountBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	bal, err := a.Query.Balance(r.Context(), addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"address": addr.String(), "balance": Lamports(bal)})
}

// AccountAirdrop mints lamports into a wallet. The router mounts it only in
// development.
func (a *App) AccountAirdrop(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	var req amountRequest
	if !a.decode(w, r, &req) {
		return
	}
	receipt, err := a.Engine.Airdrop(r.Context(), addr, uint64(req.Amount))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	bal, err := a.Query.Balance(r.Context(), addr)
	if err != nil {
		a.Logger.Warn().Err(err).Str("signature", receipt.Signature).Msg("reload balance after airdrop")
	}
	a.json(w, http.StatusOK, map[string]any{"receipt": toReceipt(receipt), "balance": Lamports(bal)})
}
