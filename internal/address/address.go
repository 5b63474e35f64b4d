// Package address derives deterministic account addresses from fixed seeds.
//
// The scheme matches program-derived addresses on Solana: the address is the
// SHA-256 of the seeds, a bump byte, the program id and a fixed marker, taking
// the highest bump whose hash is not a valid ed25519 point. Any client holding
// the program id reproduces the same addresses without a lookup table.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"escrow/internal/domain"
)

const (
	CounterSeed      = "campaign_counter"
	CampaignSeed     = "campaign"
	MilestoneSeed    = "milestone"
	ContributionSeed = "contribution"

	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrSeedTooLong  = errors.New("address: seed exceeds 32 bytes")
	ErrTooManySeeds = errors.New("address: too many seeds")
	ErrOnCurve      = errors.New("address: derived address lies on the ed25519 curve")
	ErrNoViableBump = errors.New("address: no viable bump seed")
)

// Deriver computes addresses owned by one program id.
type Deriver struct {
	program domain.Pubkey
}

func New(program domain.Pubkey) *Deriver {
	return &Deriver{program: program}
}

// Program returns the program id the deriver is bound to.
func (d *Deriver) Program() domain.Pubkey {
	return d.program
}

// CreateProgramAddress hashes seeds with an explicit bump already appended.
func (d *Deriver) CreateProgramAddress(seeds ...[]byte) (domain.Pubkey, error) {
	var out domain.Pubkey
	if len(seeds) > MaxSeeds {
		return out, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return out, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(d.program[:])
	h.Write([]byte(pdaMarker))
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return domain.Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func (d *Deriver) FindProgramAddress(seeds ...[]byte) (domain.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return domain.Pubkey{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := d.CreateProgramAddress(withBump...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return domain.Pubkey{}, 0, err
		}
	}
	return domain.Pubkey{}, 0, ErrNoViableBump
}

// Counter returns the singleton campaign counter address.
func (d *Deriver) Counter() (domain.Pubkey, uint8) {
	return d.must([]byte(CounterSeed))
}

// Campaign binds the creator and the little-endian campaign id.
func (d *Deriver) Campaign(creator domain.Pubkey, campaignID uint64) (domain.Pubkey, uint8) {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], campaignID)
	return d.must([]byte(CampaignSeed), creator[:], id[:])
}

// Milestone uses a single-byte index, so a campaign addresses at most 256 milestones.
func (d *Deriver) Milestone(campaign domain.Pubkey, index uint8) (domain.Pubkey, uint8) {
	return d.must([]byte(MilestoneSeed), campaign[:], []byte{index})
}

// Contribution resolves to the same address for repeated pledges by one contributor.
func (d *Deriver) Contribution(campaign, contributor domain.Pubkey) (domain.Pubkey, uint8) {
	return d.must([]byte(ContributionSeed), campaign[:], contributor[:])
}

// Vault returns the account holding a campaign's escrowed lamports. The
// campaign account doubles as its vault.
func (d *Deriver) Vault(campaign domain.Pubkey) domain.Pubkey {
	return campaign
}

// must panics only when all 256 bumps land on the curve, which does not happen
// for fixed-width seeds in practice.
func (d *Deriver) must(seeds ...[]byte) (domain.Pubkey, uint8) {
	addr, bump, err := d.FindProgramAddress(seeds...)
	if err != nil {
		panic(fmt.Sprintf("address: derive %q: %v", seeds[0], err))
	}
	return addr, bump
}

// IsOnCurve reports whether b decodes to an ed25519 point. Wallet keys always
// do; derived addresses never do, so nothing can sign for them.
func IsOnCurve(b domain.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}
