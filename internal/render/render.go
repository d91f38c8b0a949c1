// Package render turns engine results into chat-ready text.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/fastprodman/duxbank/internal/gacha"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

const NukeMessage = "You have set off the nuke! Everyone has returned to the pool\nLet the shaming begin! :duck:"

// Mention formats a user id the way chat clients highlight it.
func Mention(id bank.UserID) string {
	return "<@" + string(id) + ">"
}

// Outcome describes one draw step.
func Outcome(t *gacha.Table, o bank.DrawOutcome) string {
	name := t.Name(o.Tier)

	switch o.Kind {
	case bank.OutcomeNuke:
		return NukeMessage
	case bank.OutcomeLoss:
		switch {
		case o.NothingToLose:
			return "That was a disappointing pull, but you had nothing to lose"
		case o.Rarest:
			return "You have disappointed " + name + ". She returns back to the pool"
		default:
			return "You lost a " + name
		}
	case bank.OutcomeAcquire:
		return "You have received a " + name
	case bank.OutcomeSteal:
		return "You have stolen a " + name + " from " + Mention(o.From)
	case bank.OutcomeExhausted:
		return "There were no more " + name + " available"
	default:
		return "Nothing happened"
	}
}

// Pull describes a whole batch, one line per draw.
func Pull(t *gacha.Table, r bank.PullResult) []string {
	out := make([]string, 0, len(r.Outcomes)+1)

	for i, o := range r.Outcomes {
		line := Outcome(t, o)
		if i == 0 && r.FreeUsed {
			line = "(free) " + line
		}

		out = append(out, line)
	}

	return out
}

// Collection renders a user's holdings as an aligned two-column table.
// Tiers with no items are skipped.
func Collection(t *gacha.Table, counts []int) string {
	rows := make([][2]string, 0, len(counts))

	for i, c := range counts {
		if c == 0 {
			continue
		}

		rows = append(rows, [2]string{t.Name(gacha.Tier(i)), strconv.Itoa(c)})
	}

	if len(rows) == 0 {
		return "Your collection is empty"
	}

	return table([2]string{"Tier", "Count"}, rows)
}

// Pool renders the remaining supply per tier.
func Pool(t *gacha.Table, pool []int) string {
	rows := make([][2]string, 0, len(pool))

	for i, n := range pool {
		left := strconv.Itoa(n)
		if n < 0 {
			left = "unlimited"
		}

		rows = append(rows, [2]string{t.Name(gacha.Tier(i)), left})
	}

	return table([2]string{"Tier", "Remaining"}, rows)
}

// Accounts renders one line per account with balance and total items.
func Accounts(accounts []bank.Account) string {
	rows := make([][2]string, 0, len(accounts))

	for _, a := range accounts {
		items := 0
		for _, c := range a.Collection {
			items += c
		}

		free := ""
		if a.FreePull {
			free = ", free pull"
		}

		rows = append(rows, [2]string{string(a.ID), fmt.Sprintf("%d dux, %d items%s", a.Balance, items, free)})
	}

	return table([2]string{"User", "Holdings"}, rows)
}

func table(header [2]string, rows [][2]string) string {
	width := runewidth.StringWidth(header[0])
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}

	var sb strings.Builder

	line := func(a, b string) {
		sb.WriteString(runewidth.FillRight(a, width))
		sb.WriteString("  ")
		sb.WriteString(b)
		sb.WriteByte('\n')
	}

	line(header[0], header[1])

	for _, r := range rows {
		line(r[0], r[1])
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
