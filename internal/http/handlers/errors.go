package handlers

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"escrow/internal/domain"
	"escrow/internal/middleware"
)

const codeBadRequest = "bad_request"

var statusByCode = map[string]int{
	"unauthorized":       http.StatusForbidden,
	"invalid_goal":       http.StatusBadRequest,
	"invalid_duration":   http.StatusBadRequest,
	"invalid_amount":     http.StatusBadRequest,
	"invalid_category":   http.StatusBadRequest,
	"invalid_input":      http.StatusBadRequest,
	"insufficient_funds": http.StatusUnprocessableEntity,
	"account_not_found":  http.StatusNotFound,
	codeBadRequest:       http.StatusBadRequest,
	"internal":           http.StatusInternalServerError,
	"rate_limited":       http.StatusTooManyRequests,
	"not_found":          http.StatusNotFound,
	"method_not_allowed": http.StatusMethodNotAllowed,
}

// statusFor returns the HTTP status for a domain error code. Lifecycle
// rejections not listed explicitly are state conflicts.
func statusFor(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusConflict
}

var errorMessages = map[string][2]string{
	"unauthorized":            {"signer is not allowed to perform this action", "penanda tangan tidak berhak melakukan tindakan ini"},
	"not_initialized":         {"program is not initialized", "program belum diinisialisasi"},
	"already_initialized":     {"program is already initialized", "program sudah diinisialisasi"},
	"invalid_goal":            {"funding goal must be greater than zero", "target pendanaan harus lebih dari nol"},
	"invalid_duration":        {"campaign duration must be between %d and %d days", "durasi kampanye harus antara %d dan %d hari"},
	"invalid_amount":          {"amount is invalid", "jumlah tidak valid"},
	"invalid_category":        {"unknown campaign category", "kategori kampanye tidak dikenal"},
	"invalid_input":           {"request contains invalid fields", "permintaan berisi data yang tidak valid"},
	"campaign_inactive":       {"campaign is no longer active", "kampanye sudah tidak aktif"},
	"campaign_ended":          {"campaign deadline has passed", "batas waktu kampanye telah lewat"},
	"already_closed":          {"campaign is already closed", "kampanye sudah ditutup"},
	"milestone_out_of_order":  {"milestones must be added in order", "milestone harus ditambahkan secara berurutan"},
	"milestone_limit_reached": {"campaign already has the maximum number of milestones", "kampanye sudah mencapai jumlah milestone maksimum"},
	"already_completed":       {"milestone is already completed", "milestone sudah selesai"},
	"target_not_reached":      {"milestone target has not been reached", "target milestone belum tercapai"},
	"goal_not_met":            {"funding goal has not been met", "target pendanaan belum tercapai"},
	"nothing_to_withdraw":     {"there are no funds to withdraw", "tidak ada dana untuk ditarik"},
	"campaign_still_active":   {"campaign is still active", "kampanye masih aktif"},
	"goal_was_met":            {"campaign met its goal, refunds are unavailable", "kampanye mencapai target, pengembalian dana tidak tersedia"},
	"already_refunded":        {"refund already claimed", "pengembalian dana sudah diklaim"},
	"insufficient_funds":      {"insufficient funds", "saldo tidak mencukupi"},
	"account_not_found":       {"account not found", "akun tidak ditemukan"},
	"account_exists":          {"account already exists", "akun sudah ada"},
	"internal":                {"internal error", "terjadi kesalahan internal"},
	codeBadRequest:            {"invalid request payload", "format permintaan tidak valid"},
	"not_found":               {"resource not found", "sumber daya tidak ditemukan"},
	"method_not_allowed":      {"method not allowed", "metode tidak diizinkan"},
}

var localeMatcher = language.NewMatcher(middleware.SupportedLocales)

var errorCatalog = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for code, m := range errorMessages {
		_ = b.SetString(language.English, code, m[0])
		_ = b.SetString(language.Indonesian, code, m[1])
	}
	return b
}()

// localize renders the message for code in the closest supported language.
func localize(tag language.Tag, code string) string {
	if _, ok := errorMessages[code]; !ok {
		code = "internal"
	}
	_, idx, _ := localeMatcher.Match(tag)
	p := message.NewPrinter(middleware.SupportedLocales[idx], message.Catalog(errorCatalog))
	if code == "invalid_duration" {
		return p.Sprintf(code, domain.MinCampaignDurationDays, domain.MaxCampaignDurationDays)
	}
	return p.Sprintf(code)
}
