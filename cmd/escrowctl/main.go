package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"escrow/internal/address"
	"escrow/internal/audit"
	"escrow/internal/bootstrap"
	"escrow/internal/domain"
	"escrow/internal/infra"
	"escrow/internal/ledger"
	"escrow/internal/middleware"
)

const usage = `usage: escrowctl <command> [flags]

commands:
  init     -authority <pubkey>                     initialize the campaign counter
  airdrop  -to <pubkey> -amount <lamports>         credit a wallet (development store only)
  token    -wallet <pubkey> [-locale id] [-ttl 24h] sign an API bearer token
  derive   <counter|campaign|milestone|contribution|vault> [flags]
  show     -campaign <pubkey>                      print a campaign with milestones and backers
  audit                                            run the reconciliation audit once
`

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		exitWithError(err)
	}
}

func run(ctx context.Context, cfg *infra.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "token":
		return runToken(cfg, rest, out)
	case "derive":
		return runDerive(address.New(cfg.ProgramID), rest, out)
	case "init", "airdrop", "show", "audit":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	// stdout carries command output.
	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "escrowctl").Logger()
	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	derive := address.New(cfg.ProgramID)
	engine := ledger.NewEngine(backend.Store, derive, ledger.WithLogger(logger))
	query := ledger.NewQuery(backend.Store, derive)

	switch cmd {
	case "init":
		return runInit(ctx, engine, rest, out)
	case "airdrop":
		if !cfg.IsDevelopment() {
			return errors.New("airdrop is only available when APP_ENV=development")
		}
		return runAirdrop(ctx, engine, rest, out)
	case "show":
		return runShow(ctx, query, rest, out)
	default:
		return runAudit(ctx, query, logger, out)
	}
}

func runInit(ctx context.Context, engine *ledger.Engine, args []string, out io.Writer) error {
	fs := newFlagSet("init")
	authority := fs.String("authority", "", "counter authority wallet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := requirePubkey("authority", *authority)
	if err != nil {
		return err
	}
	receipt, err := engine.Initialize(ctx, key)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return printReceipt(out, receipt)
}

func runAirdrop(ctx context.Context, engine *ledger.Engine, args []string, out io.Writer) error {
	fs := newFlagSet("airdrop")
	to := fs.String("to", "", "wallet to credit")
	amount := fs.Uint64("amount", 0, "lamports to credit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := requirePubkey("to", *to)
	if err != nil {
		return err
	}
	receipt, err := engine.Airdrop(ctx, key, *amount)
	if err != nil {
		return fmt.Errorf("airdrop: %w", err)
	}
	return printReceipt(out, receipt)
}

func runToken(cfg *infra.Config, args []string, out io.Writer) error {
	fs := newFlagSet("token")
	wallet := fs.String("wallet", "", "wallet the token signs for")
	locale := fs.String("locale", "", "preferred response language (en, id)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := requirePubkey("wallet", *wallet)
	if err != nil {
		return err
	}
	if *ttl <= 0 {
		return fmt.Errorf("%w: -ttl must be positive", errUsage)
	}
	token, err := middleware.SignToken(cfg.JWTSecret, key, strings.TrimSpace(*locale), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runDerive(derive *address.Deriver, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: derive needs a kind", errUsage)
	}
	kind := args[0]
	fs := newFlagSet("derive " + kind)
	creator := fs.String("creator", "", "campaign creator wallet")
	id := fs.Uint64("id", 0, "campaign id")
	campaign := fs.String("campaign", "", "campaign address")
	index := fs.Uint("index", 0, "milestone index")
	contributor := fs.String("contributor", "", "contributor wallet")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var (
		addr domain.Pubkey
		bump uint8
	)
	switch kind {
	case "counter":
		addr, bump = derive.Counter()
	case "campaign":
		key, err := requirePubkey("creator", *creator)
		if err != nil {
			return err
		}
		addr, bump = derive.Campaign(key, *id)
	case "milestone":
		key, err := requirePubkey("campaign", *campaign)
		if err != nil {
			return err
		}
		if *index > 255 {
			return fmt.Errorf("%w: -index must be below 256", errUsage)
		}
		addr, bump = derive.Milestone(key, uint8(*index))
	case "contribution":
		c, err := requirePubkey("campaign", *campaign)
		if err != nil {
			return err
		}
		w, err := requirePubkey("contributor", *contributor)
		if err != nil {
			return err
		}
		addr, bump = derive.Contribution(c, w)
	case "vault":
		key, err := requirePubkey("campaign", *campaign)
		if err != nil {
			return err
		}
		addr = derive.Vault(key)
	default:
		return fmt.Errorf("%w: unknown address kind %q", errUsage, kind)
	}
	return printJSON(out, map[string]any{"kind": kind, "address": addr, "bump": bump})
}

func runShow(ctx context.Context, query *ledger.Query, args []string, out io.Writer) error {
	fs := newFlagSet("show")
	campaign := fs.String("campaign", "", "campaign address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := requirePubkey("campaign", *campaign)
	if err != nil {
		return err
	}
	c, err := query.RequireCampaign(ctx, key)
	if err != nil {
		return err
	}
	milestones, err := query.Milestones(ctx, key)
	if err != nil {
		return err
	}
	contributions, err := query.Contributions(ctx, key)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{
		"campaign":       c,
		"escrow_balance": c.EscrowBalance(),
		"goal_met":       c.GoalMet(),
		"milestones":     milestones,
		"contributions":  contributions,
	})
}

func runAudit(ctx context.Context, query *ledger.Query, logger zerolog.Logger, out io.Writer) error {
	report, err := audit.New(query, audit.WithLogger(logger)).Run(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(out, report); err != nil {
		return err
	}
	if !report.Clean() {
		return fmt.Errorf("audit found %d violations", len(report.Violations))
	}
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func requirePubkey(name, value string) (domain.Pubkey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Pubkey{}, fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	key, err := domain.ParsePubkey(value)
	if err != nil {
		return domain.Pubkey{}, fmt.Errorf("-%s: %w", name, err)
	}
	return key, nil
}

func printReceipt(out io.Writer, r domain.Receipt) error {
	return printJSON(out, map[string]any{
		"signature": r.Signature,
		"op":        r.Op,
		"campaign":  r.Campaign,
		"amount":    r.Amount,
		"at":        r.At,
	})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
