package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"escrow/internal/address"
	"escrow/internal/domain"
	"escrow/internal/infra"
	"escrow/internal/middleware"
)

const (
	testProgram = "8zeHBfNfVkHQcWpJH9HRnR8NoEfrW6zSGqmZvBMWeCkd"
	testWallet  = "SysvarC1ock11111111111111111111111111111111"
)

func testConfig(env string) *infra.Config {
	return &infra.Config{
		AppEnv:      env,
		JWTSecret:   "cli-secret",
		StoreDriver: infra.StoreMemory,
		ProgramID:   domain.MustPubkey(testProgram),
	}
}

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), testConfig("development"), nil, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	err = run(context.Background(), testConfig("development"), []string{"bogus"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for unknown command, got %v", err)
	}
}

func TestTokenVerifies(t *testing.T) {
	cfg := testConfig("development")
	var out bytes.Buffer
	if err := run(context.Background(), cfg, []string{"token", "-wallet", testWallet, "-locale", "id"}, &out); err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := middleware.VerifyToken(cfg.JWTSecret, strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Subject != testWallet || claims.Locale != "id" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRequiresWallet(t *testing.T) {
	err := run(context.Background(), testConfig("development"), []string{"token"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestDeriveCampaignMatchesDeriver(t *testing.T) {
	cfg := testConfig("development")
	var out bytes.Buffer
	if err := run(context.Background(), cfg, []string{"derive", "campaign", "-creator", testWallet, "-id", "7"}, &out); err != nil {
		t.Fatalf("derive: %v", err)
	}
	var got struct {
		Kind    string `json:"kind"`
		Address string `json:"address"`
		Bump    uint8  `json:"bump"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, bump := address.New(cfg.ProgramID).Campaign(domain.MustPubkey(testWallet), 7)
	if got.Kind != "campaign" || got.Address != want.String() || got.Bump != bump {
		t.Fatalf("derive campaign = %+v, want %s/%d", got, want, bump)
	}
}

func TestDeriveRejectsUnknownKind(t *testing.T) {
	err := run(context.Background(), testConfig("development"), []string{"derive", "escrow"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestInitPrintsReceipt(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), testConfig("development"), []string{"init", "-authority", testWallet}, &out); err != nil {
		t.Fatalf("init: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["op"] != string(domain.OpInitialize) {
		t.Fatalf("op = %v", got["op"])
	}
}

func TestAirdropDevelopmentOnly(t *testing.T) {
	err := run(context.Background(), testConfig("production"), []string{"airdrop", "-to", testWallet, "-amount", "5"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "development") {
		t.Fatalf("expected development-only error, got %v", err)
	}
}

func TestAuditEmptyStoreIsClean(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), testConfig("development"), []string{"audit"}, &out); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out.String(), `"violations": []`) {
		t.Fatalf("unexpected report %s", out.String())
	}
}

func TestShowMissingCampaign(t *testing.T) {
	err := run(context.Background(), testConfig("development"), []string{"show", "-campaign", testWallet}, &bytes.Buffer{})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}
