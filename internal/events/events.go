// Package events carries notable bank activity (joins, draws, nukes, bets,
// resets) from the engine to observers such as the live feed and the journal.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindJoin       Kind = "join"
	KindDeposit    Kind = "deposit"
	KindWithdraw   Kind = "withdraw"
	KindAcquire    Kind = "acquire"
	KindSteal      Kind = "steal"
	KindLoss       Kind = "loss"
	KindExhausted  Kind = "exhausted"
	KindNuke       Kind = "nuke"
	KindBetWin     Kind = "bet_win"
	KindBetLose    Kind = "bet_lose"
	KindDailyReset Kind = "daily_reset"
	KindRegen      Kind = "regen"
)

// Event is one journal/feed entry. Tier is -1 when the event has no tier.
type Event struct {
	ID     uuid.UUID `json:"id"`
	At     time.Time `json:"at"`
	Kind   Kind      `json:"kind"`
	User   string    `json:"user,omitempty"`
	Tier   int       `json:"tier"`
	From   string    `json:"from,omitempty"`
	Amount int64     `json:"amount,omitempty"`
}

// New stamps a fresh id and time on an event of the given kind.
func New(kind Kind, user string) Event {
	return Event{
		ID:   uuid.New(),
		At:   time.Now().UTC(),
		Kind: kind,
		User: user,
		Tier: -1,
	}
}

func (e Event) WithTier(tier int) Event {
	e.Tier = tier
	return e
}

func (e Event) WithFrom(from string) Event {
	e.From = from
	return e
}

func (e Event) WithAmount(amount int64) Event {
	e.Amount = amount
	return e
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(e Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
