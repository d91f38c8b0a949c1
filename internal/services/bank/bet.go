package bank

import (
	"errors"
	"fmt"
	"math"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/games"
)

// Bet wagers dux on a game. The balance check, the play and the payout
// happen under the account lock, so a bet can never overdraw. A wager whose
// win would overflow the balance is rejected before the game is played.
func (b *Bank) Bet(id UserID, wager int, game games.Game, args []string) (BetResult, error) {
	if wager < 1 {
		return BetResult{}, &OutOfRangeError{Min: 1, Got: wager}
	}

	var res BetResult

	err := b.withAccount(id, func(a *account) error {
		if a.balance < wager {
			return &InsufficientFundsError{Required: wager, Available: a.balance}
		}

		if wager > math.MaxInt-a.balance {
			return &OutOfRangeError{Min: 1, Max: math.MaxInt - a.balance, Got: wager}
		}

		out, err := game.Play(b.roller, args)
		if errors.Is(err, games.ErrBadArgs) {
			return fmt.Errorf("%w (usage: %s)", err, game.Usage())
		}

		if err != nil {
			return fmt.Errorf("play %s: %w", game.Names()[0], err)
		}

		if out.Won {
			a.balance += wager
		} else {
			a.balance -= wager
		}

		res = BetResult{Won: out.Won, Detail: out.Detail, Wager: wager, Balance: a.balance}

		return nil
	})
	if err != nil {
		return BetResult{}, err
	}

	kind := events.KindBetLose
	if res.Won {
		kind = events.KindBetWin
	}

	b.publish(events.New(kind, string(id)).WithAmount(int64(wager)))

	return res, nil
}
