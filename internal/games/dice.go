package games

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	evenRgx = regexp.MustCompile(`^(E(VENS?)?|CHO)$`)
	oddRgx  = regexp.MustCompile(`^(O(DDS?)?|HAN)$`)
)

// Dice is cho-han: two six-sided dice, bet on an even (CHO) or odd (HAN) sum.
type Dice struct{}

func (Dice) Names() []string { return []string{"DICE", "ROLL"} }

func (Dice) Usage() string { return "DICE <CHO|HAN> (even or odd)" }

func (Dice) Play(r Roller, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, fmt.Errorf("%w: call CHO (even) or HAN (odd)", ErrBadArgs)
	}

	call := strings.ToUpper(strings.TrimSpace(args[0]))

	var even bool

	switch {
	case evenRgx.MatchString(call):
		even = true
	case oddRgx.MatchString(call):
		even = false
	default:
		return Result{}, fmt.Errorf("%w: %q is not CHO or HAN", ErrBadArgs, args[0])
	}

	a, b := r.Roll(6), r.Roll(6)
	sum := a + b

	result := "HAN"
	if sum%2 == 0 {
		result = "CHO"
	}

	return Result{
		Won:    (sum%2 == 0) == even,
		Detail: fmt.Sprintf("Rolled %d and %d (%d): %s", a, b, sum, result),
	}, nil
}
