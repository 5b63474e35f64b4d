package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"escrow/internal/domain"
	"escrow/internal/infra"
	"escrow/internal/ledger"
	"escrow/internal/middleware"
	"escrow/internal/realtime"
)

const maxBodyBytes = 64 << 10

type App struct {
	Engine *ledger.Engine
	Query  *ledger.Query
	Hub    *realtime.Hub
	Config *infra.Config
	Logger zerolog.Logger
}

func NewApp(engine *ledger.Engine, query *ledger.Query, hub *realtime.Hub, cfg *infra.Config, logger zerolog.Logger) *App {
	return &App{Engine: engine, Query: query, Hub: hub, Config: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	a.json(w, status, map[string]errorBody{
		"error": {Code: code, Message: localize(middleware.LocaleTag(r.Context()), code), Detail: detail},
	})
}

// fail maps err onto its HTTP status and localized message. Unexpected errors
// are logged and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	if code == "internal" {
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, r, http.StatusInternalServerError, code, "")
		return
	}
	a.error(w, r, statusFor(code), code, err.Error())
}

func (a *App) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	a.error(w, r, http.StatusBadRequest, codeBadRequest, detail)
}

// signer returns the authenticated wallet. Routes that reach it are mounted
// behind AuthJWT, so a missing signer is a wiring bug reported as 401.
func (a *App) signer(w http.ResponseWriter, r *http.Request) (domain.Pubkey, bool) {
	pk, ok := middleware.SignerFromContext(r.Context())
	if !ok {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing signer")
	}
	return pk, ok
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, domain.ErrInvalidCategory) || errors.Is(err, domain.ErrInvalidAmount) {
			a.fail(w, r, err)
			return false
		}
		a.badRequest(w, r, err.Error())
		return false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		a.badRequest(w, r, "request body must hold a single JSON value")
		return false
	}
	return true
}

// pubkeyParam parses the named chi URL parameter as a base58 key.
func (a *App) pubkeyParam(w http.ResponseWriter, r *http.Request, name string) (domain.Pubkey, bool) {
	pk, err := domain.ParsePubkey(chi.URLParam(r, name))
	if err != nil {
		a.badRequest(w, r, fmt.Sprintf("%s: %v", name, err))
		return domain.Pubkey{}, false
	}
	return pk, true
}

func (a *App) pubkeyQuery(w http.ResponseWriter, r *http.Request, name string) (domain.Pubkey, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		a.badRequest(w, r, name+" is required")
		return domain.Pubkey{}, false
	}
	pk, err := domain.ParsePubkey(raw)
	if err != nil {
		a.badRequest(w, r, fmt.Sprintf("%s: %v", name, err))
		return domain.Pubkey{}, false
	}
	return pk, true
}

func parseIndex(raw string) (uint8, error) {
	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("milestone index %q: %w", raw, domain.ErrInvalidInput)
	}
	return uint8(v), nil
}

func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.error(w, r, http.StatusNotFound, "not_found", r.URL.Path)
}

func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.error(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
}
