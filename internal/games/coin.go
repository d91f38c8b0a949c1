package games

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headsRgx = regexp.MustCompile(`^H(EADS?)?$`)
	tailsRgx = regexp.MustCompile(`^T(AILS?)?$`)
)

// Coin is a called coin flip.
type Coin struct{}

func (Coin) Names() []string { return []string{"COIN"} }

func (Coin) Usage() string { return "COIN <HEADS|TAILS>" }

func (Coin) Play(r Roller, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, fmt.Errorf("%w: call HEADS or TAILS", ErrBadArgs)
	}

	call := strings.ToUpper(strings.TrimSpace(args[0]))

	var heads bool

	switch {
	case headsRgx.MatchString(call):
		heads = true
	case tailsRgx.MatchString(call):
		heads = false
	default:
		return Result{}, fmt.Errorf("%w: %q is not HEADS or TAILS", ErrBadArgs, args[0])
	}

	landed := "TAILS"
	landedHeads := r.Roll(2) == 1

	if landedHeads {
		landed = "HEADS"
	}

	return Result{
		Won:    landedHeads == heads,
		Detail: "The coin landed on " + landed,
	}, nil
}
