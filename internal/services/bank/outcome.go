package bank

import "github.com/fastprodman/duxbank/internal/gacha"

// OutcomeKind tags a DrawOutcome.
type OutcomeKind int

const (
	OutcomeUnspecified OutcomeKind = iota
	OutcomeNuke
	OutcomeLoss
	OutcomeAcquire
	OutcomeSteal
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUnspecified:
		return "unspecified"
	case OutcomeNuke:
		return "nuke"
	case OutcomeLoss:
		return "loss"
	case OutcomeAcquire:
		return "acquire"
	case OutcomeSteal:
		return "steal"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DrawOutcome is the result of one draw step.
//
// Tier is meaningful for Acquire, Steal, Exhausted and for a Loss that removed
// something. From is set only for Steal.
type DrawOutcome struct {
	Kind          OutcomeKind
	Roll          int
	Tier          gacha.Tier
	From          UserID
	NothingToLose bool
	Rarest        bool // the lost tier was the rarest one
}

// LostRarest reports a Loss that took the user's top-tier item.
func (o DrawOutcome) LostRarest() bool {
	return o.Kind == OutcomeLoss && !o.NothingToLose && o.Rarest
}

// PullResult is what a Pull batch produced.
type PullResult struct {
	Outcomes []DrawOutcome
	FreeUsed bool
	Charged  int
	Balance  int // balance right after charging
}

// Nuked reports whether the batch ended on a nuke.
func (r PullResult) Nuked() bool {
	n := len(r.Outcomes)
	return n > 0 && r.Outcomes[n-1].Kind == OutcomeNuke
}

type BetResult struct {
	Won     bool
	Detail  string
	Wager   int
	Balance int
}
