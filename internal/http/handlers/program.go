package handlers

import (
	"net/http"
)

func (a *App) ProgramInitialize(w http.ResponseWriter, r *http.Request) {
	signer, ok := a.signer(w, r)
	if !ok {
		return
	}
	receipt, err := a.Engine.Initialize(r.Context(), signer)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toReceipt(receipt))
}

// ProgramGet reports the counter account. An uninitialized program is a
// normal answer, not an error.
func (a *App) ProgramGet(w http.ResponseWriter, r *http.Request) {
	derive := a.Engine.Deriver()
	addr, bump := derive.Counter()
	out := counterDTO{
		ProgramID: derive.Program().String(),
		Address:   addr.String(),
		Bump:      bump,
	}
	counter, found, err := a.Query.Counter(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if found {
		out.Initialized = true
		out.Authority = counter.Authority.String()
		out.Count = counter.Count
	}
	a.json(w, http.StatusOK, out)
}
