// Package gacha holds the tier table of the gacha pool: tier names, the
// roll bands that select each tier and the initial supply of every tier.
package gacha

import (
	"errors"
	"fmt"
	"sort"
)

// Tier indexes the ordered gacha rarity levels. Tier 0 is the most common.
type Tier int

// Default tiers, in rarity order.
const (
	TierTrash Tier = iota
	TierCommon
	TierUncommon
	TierRare
	TierSuperRare
	TierUltraRare
	TierSSUltraSecretRare
	Tier1000Chan
)

// Unlimited is the supply sentinel for tiers that never run out.
const Unlimited = -1

var ErrInvalidTable = errors.New("invalid tier table")

// Band maps rolls in [Lower, Upper) to Tier.
type Band struct {
	Lower int
	Upper int
	Tier  Tier
}

// Table is an immutable, validated tier table.
type Table struct {
	names  []string
	supply []int
	bands  []Band
}

// NewTable builds a table from tier definitions given in rarity order.
// Bands must be non-empty, ascending and contiguous.
func NewTable(tiers []TierTuning) (*Table, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}

	t := &Table{
		names:  make([]string, len(tiers)),
		supply: make([]int, len(tiers)),
		bands:  make([]Band, len(tiers)),
	}

	for i, tt := range tiers {
		if tt.Name == "" {
			return nil, fmt.Errorf("%w: tier %d has no name", ErrInvalidTable, i)
		}

		if tt.Lower >= tt.Upper {
			return nil, fmt.Errorf("%w: tier %q band [%d,%d) is empty", ErrInvalidTable, tt.Name, tt.Lower, tt.Upper)
		}

		if i > 0 && tiers[i-1].Upper != tt.Lower {
			return nil, fmt.Errorf("%w: tier %q starts at %d, previous band ends at %d",
				ErrInvalidTable, tt.Name, tt.Lower, tiers[i-1].Upper)
		}

		if tt.Supply < Unlimited {
			return nil, fmt.Errorf("%w: tier %q supply %d", ErrInvalidTable, tt.Name, tt.Supply)
		}

		t.names[i] = tt.Name
		t.supply[i] = tt.Supply
		t.bands[i] = Band{Lower: tt.Lower, Upper: tt.Upper, Tier: Tier(i)}
	}

	return t, nil
}

// Lookup returns the tier whose band contains roll.
func (t *Table) Lookup(roll int) (Tier, bool) {
	i := sort.Search(len(t.bands), func(i int) bool {
		return t.bands[i].Upper > roll
	})
	if i == len(t.bands) || roll < t.bands[i].Lower {
		return 0, false
	}

	return t.bands[i].Tier, true
}

// Len is the number of tiers.
func (t *Table) Len() int { return len(t.names) }

// Top is the rarest tier.
func (t *Table) Top() Tier { return Tier(len(t.names) - 1) }

// Valid reports whether tier is in the table.
func (t *Table) Valid(tier Tier) bool { return tier >= 0 && int(tier) < len(t.names) }

func (t *Table) Name(tier Tier) string {
	if !t.Valid(tier) {
		return fmt.Sprintf("tier-%d", tier)
	}

	return t.names[tier]
}

// Names returns a copy of the tier names.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)

	return out
}

// InitialSupply returns a copy of the starting pool vector.
func (t *Table) InitialSupply() []int {
	out := make([]int, len(t.supply))
	copy(out, t.supply)

	return out
}

// IsUnlimited reports whether tier never runs out.
func (t *Table) IsUnlimited(tier Tier) bool {
	return t.Valid(tier) && t.supply[tier] < 0
}

// MinRoll is the lowest roll that maps to a tier.
func (t *Table) MinRoll() int { return t.bands[0].Lower }

// MaxRoll is the highest roll that maps to a tier.
func (t *Table) MaxRoll() int { return t.bands[len(t.bands)-1].Upper - 1 }
