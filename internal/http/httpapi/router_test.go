package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"escrow/internal/adapter/memory"
	"escrow/internal/address"
	"escrow/internal/domain"
	"escrow/internal/http/handlers"
	"escrow/internal/infra"
	"escrow/internal/ledger"
	"escrow/internal/middleware"
	"escrow/internal/realtime"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	derive *address.Deriver
}

func key(b byte) domain.Pubkey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0], seed[31] = 0x51, b
	var pk domain.Pubkey
	copy(pk[:], ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey))
	return pk
}

var (
	authority = key(1)
	creator   = key(2)
	alice     = key(3)
	bob       = key(4)
)

func newTestServer(t *testing.T, appEnv string) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	program := key(99)
	cfg := &infra.Config{
		AppEnv:    appEnv,
		JWTSecret: testSecret,
		ProgramID: program,
	}
	derive := address.New(program)
	store := memory.NewStore()
	hub := realtime.NewHub(zerolog.Nop(), nil)
	go hub.Run(ctx)
	engine := ledger.NewEngine(store, derive, ledger.WithEventSink(hub))
	app := handlers.NewApp(engine, ledger.NewQuery(store, derive), hub, cfg, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(app, Options{}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, derive: derive}
}

func token(t *testing.T, signer domain.Pubkey) string {
	t.Helper()
	tok, err := middleware.SignToken(testSecret, signer, "", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

type response struct {
	status int
	body   map[string]any
	raw    string
}

func (r response) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (s *testServer) do(t *testing.T, method, path string, signer *domain.Pubkey, body any, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signer != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *signer))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode, raw: string(raw)}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return out
}

func (s *testServer) expect(t *testing.T, want int, r response) response {
	t.Helper()
	if r.status != want {
		t.Fatalf("status = %d, want %d: %s", r.status, want, r.raw)
	}
	return r
}

func nested(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

// setup initializes the program, funds two wallets and opens one campaign.
func (s *testServer) setup(t *testing.T) string {
	t.Helper()
	s.expect(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/program/initialize", &authority, nil))
	for _, w := range []domain.Pubkey{alice, bob} {
		s.expect(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/accounts/"+w.String()+"/airdrop", nil, map[string]any{"amount": "10000"}))
	}
	created := s.expect(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/campaigns", &creator, map[string]any{
		"title":             "Community garden",
		"short_description": "Raised beds for the block",
		"category":          "Community",
		"funding_goal":      "1000",
		"duration_days":     30,
	}))
	addr, _ := nested(created.body, "campaign", "address").(string)
	if addr == "" {
		t.Fatalf("campaign address missing: %s", created.raw)
	}
	return addr
}

func TestProgramLifecycle(t *testing.T) {
	s := newTestServer(t, "development")

	got := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/program", nil, nil))
	if got.body["initialized"] != false {
		t.Fatalf("fresh program reported initialized: %s", got.raw)
	}
	s.expect(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/program/initialize", nil, nil))
	s.expect(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/program/initialize", &authority, nil))

	again := s.expect(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/program/initialize", &creator, nil))
	if again.errorCode() != "already_initialized" {
		t.Fatalf("code = %q", again.errorCode())
	}

	got = s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/program", nil, nil))
	if got.body["initialized"] != true || got.body["authority"] != authority.String() {
		t.Fatalf("unexpected program: %s", got.raw)
	}
}

func TestCampaignFundingFlow(t *testing.T) {
	s := newTestServer(t, "development")
	addr := s.setup(t)
	base := "/v1/campaigns/" + addr

	derived := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/addresses/campaign?creator="+creator.String()+"&id=0", nil, nil))
	if derived.body["address"] != addr {
		t.Fatalf("derived %v, created %s", derived.body["address"], addr)
	}

	m := s.expect(t, http.StatusCreated, s.do(t, http.MethodPost, base+"/milestones", &creator, map[string]any{
		"title": "Soil", "target_amount": 500,
	}))
	if nested(m.body, "milestone", "index") != float64(0) {
		t.Fatalf("default index not applied: %s", m.raw)
	}
	dup := s.expect(t, http.StatusConflict, s.do(t, http.MethodPost, base+"/milestones", &creator, map[string]any{
		"index": 0, "title": "Again", "target_amount": 600,
	}))
	if dup.errorCode() != "milestone_out_of_order" {
		t.Fatalf("code = %q", dup.errorCode())
	}

	s.expect(t, http.StatusOK, s.do(t, http.MethodPost, base+"/fund", &alice, map[string]any{"amount": "600"}))
	funded := s.expect(t, http.StatusOK, s.do(t, http.MethodPost, base+"/fund", &bob, map[string]any{"amount": 500}))
	if nested(funded.body, "campaign", "amount_raised") != "1100" || nested(funded.body, "campaign", "backer_count") != float64(2) {
		t.Fatalf("unexpected campaign after funding: %s", funded.raw)
	}

	early := s.expect(t, http.StatusConflict, s.do(t, http.MethodPost, base+"/refund", &bob, nil))
	if early.errorCode() != "campaign_still_active" {
		t.Fatalf("code = %q", early.errorCode())
	}
	stranger := s.expect(t, http.StatusForbidden, s.do(t, http.MethodPost, base+"/withdraw", &alice, nil))
	if stranger.errorCode() != "unauthorized" {
		t.Fatalf("code = %q", stranger.errorCode())
	}

	s.expect(t, http.StatusOK, s.do(t, http.MethodPost, base+"/milestones/0/complete", &creator, nil))
	withdrawn := s.expect(t, http.StatusOK, s.do(t, http.MethodPost, base+"/withdraw", &creator, nil))
	if nested(withdrawn.body, "campaign", "escrow_balance") != "0" || nested(withdrawn.body, "receipt", "amount") != "1100" {
		t.Fatalf("unexpected withdraw: %s", withdrawn.raw)
	}
	bal := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/accounts/"+creator.String()+"/balance", nil, nil))
	if bal.body["balance"] != "1100" {
		t.Fatalf("creator balance = %v", bal.body["balance"])
	}

	list := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, base+"/contributions", nil, nil))
	if items, _ := list.body["items"].([]any); len(items) != 2 {
		t.Fatalf("contributions = %s", list.raw)
	}
	one := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, base+"/contributions/"+alice.String(), nil, nil))
	if one.body["amount"] != "600" {
		t.Fatalf("alice contribution = %s", one.raw)
	}
	s.expect(t, http.StatusNotFound, s.do(t, http.MethodGet, base+"/contributions/"+creator.String(), nil, nil))

	ms := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, base+"/milestones", nil, nil))
	items, _ := ms.body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["is_completed"] != true {
		t.Fatalf("milestones = %s", ms.raw)
	}
}

func TestCampaignValidationErrors(t *testing.T) {
	s := newTestServer(t, "development")
	s.setup(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown category", map[string]any{"title": "x", "category": "sports", "funding_goal": "1", "duration_days": 1}, http.StatusBadRequest, "invalid_category"},
		{"zero goal", map[string]any{"title": "x", "category": "arts", "funding_goal": "0", "duration_days": 1}, http.StatusBadRequest, "invalid_goal"},
		{"fractional goal", map[string]any{"title": "x", "category": "arts", "funding_goal": 1.5, "duration_days": 1}, http.StatusBadRequest, "invalid_amount"},
		{"long duration", map[string]any{"title": "x", "category": "arts", "funding_goal": "1", "duration_days": 91}, http.StatusBadRequest, "invalid_duration"},
		{"unknown field", map[string]any{"title": "x", "category": "arts", "funding_goal": "1", "duration_days": 1, "goal": 3}, http.StatusBadRequest, "bad_request"},
		{"malformed", "{", http.StatusBadRequest, "bad_request"},
		{"missing category", map[string]any{"title": "x", "funding_goal": "1", "duration_days": 1}, http.StatusBadRequest, "invalid_category"},
		{"null category", map[string]any{"title": "x", "category": nil, "funding_goal": "1", "duration_days": 1}, http.StatusBadRequest, "invalid_category"},
		{"second object", `{"title":"x","category":"arts","funding_goal":"1","duration_days":1}{"title":"y"}`, http.StatusBadRequest, "bad_request"},
		{"trailing garbage", `{"title":"x","category":"arts","funding_goal":"1","duration_days":1} xyz`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.expect(t, tc.status, s.do(t, http.MethodPost, "/v1/campaigns", &creator, tc.body))
			if got.errorCode() != tc.code {
				t.Fatalf("code = %q, want %q (%s)", got.errorCode(), tc.code, got.raw)
			}
		})
	}
}

func TestErrorsAreLocalized(t *testing.T) {
	s := newTestServer(t, "development")
	s.setup(t)

	en := s.do(t, http.MethodGet, "/v1/campaigns/"+key(77).String(), nil, nil)
	id := s.do(t, http.MethodGet, "/v1/campaigns/"+key(77).String(), nil, nil, "Accept-Language", "id-ID,id;q=0.9")
	s.expect(t, http.StatusNotFound, en)
	s.expect(t, http.StatusNotFound, id)

	if msg := nested(en.body, "error", "message"); msg != "account not found" {
		t.Fatalf("en message = %v", msg)
	}
	if msg := nested(id.body, "error", "message"); msg != "akun tidak ditemukan" {
		t.Fatalf("id message = %v", msg)
	}
}

func TestCampaignListFiltersAndPages(t *testing.T) {
	s := newTestServer(t, "development")
	s.setup(t)
	for i := 0; i < 2; i++ {
		s.expect(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/campaigns", &alice, map[string]any{
			"title": "Art wall", "category": "arts", "funding_goal": "50", "duration_days": 5,
		}))
	}

	all := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/campaigns", nil, nil))
	if items, _ := all.body["items"].([]any); len(items) != 3 || all.body["next_cursor"] != "" {
		t.Fatalf("all campaigns = %s", all.raw)
	}

	arts := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/campaigns?category=arts", nil, nil))
	if items, _ := arts.body["items"].([]any); len(items) != 2 {
		t.Fatalf("arts campaigns = %s", arts.raw)
	}

	seen := map[string]bool{}
	cursor := ""
	for page := 0; page < 5; page++ {
		got := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/campaigns?limit=1&after="+cursor, nil, nil))
		items, _ := got.body["items"].([]any)
		for _, it := range items {
			seen[it.(map[string]any)["address"].(string)] = true
		}
		cursor, _ = got.body["next_cursor"].(string)
		if cursor == "" {
			break
		}
	}
	if len(seen) != 3 {
		t.Fatalf("paged through %d campaigns, want 3", len(seen))
	}
}

func TestDerivedAddressCannotSign(t *testing.T) {
	s := newTestServer(t, "development")
	camp := s.setup(t)
	vault := domain.MustPubkey(camp)

	forbidden := s.expect(t, http.StatusForbidden, s.do(t, http.MethodPost, "/v1/accounts/"+camp+"/airdrop", nil, map[string]any{"amount": "1"}))
	if forbidden.errorCode() != "unauthorized" {
		t.Fatalf("airdrop code = %q", forbidden.errorCode())
	}
	s.expect(t, http.StatusForbidden, s.do(t, http.MethodPost, "/v1/campaigns/"+camp+"/fund", &vault, map[string]any{"amount": "600"}))

	got := s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/campaigns/"+camp, nil, nil))
	if raised := nested(got.body, "amount_raised"); raised != "0" {
		t.Fatalf("amount_raised = %v after rejected self-funding", raised)
	}
}

func TestDevelopmentRoutesHiddenInProduction(t *testing.T) {
	s := newTestServer(t, "production")
	s.expect(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/accounts/"+alice.String()+"/airdrop", nil, map[string]any{"amount": "1"}))
	s.expect(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/auth/dev-token", nil, map[string]any{"wallet": alice.String()}))
}

func TestDevTokenAuthenticates(t *testing.T) {
	s := newTestServer(t, "development")
	got := s.expect(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/auth/dev-token", nil, map[string]any{"wallet": authority.String()}))
	tok, _ := got.body["token"].(string)

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/v1/program/initialize", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCampaignEventsStream(t *testing.T) {
	s := newTestServer(t, "development")
	addr := s.setup(t)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/campaigns/" + addr + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got := make(chan domain.Event, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			close(got)
			return
		}
		var ev domain.Event
		if json.Unmarshal(msg, &ev) == nil {
			got <- ev
		}
		close(got)
	}()

	// Registration finishes after the handshake, so keep committing until the
	// subscriber sees one.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-got:
			if !ok {
				t.Fatalf("no event received")
			}
			if ev.Op != domain.OpFundCampaign || ev.Campaign.String() != addr || ev.Signer != alice {
				t.Fatalf("unexpected event %#v", ev)
			}
			return
		case <-ticker.C:
			s.expect(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/campaigns/"+addr+"/fund", &alice, map[string]any{"amount": "1"}))
		}
	}
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t, "development")
	s.expect(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/healthz", nil, nil))
	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "escrow_http_requests_total") {
		t.Fatalf("metrics missing request counter")
	}
}
