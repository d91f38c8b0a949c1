// Package games implements the wagering games a user can bet dux on.
package games

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrBadArgs     = errors.New("bad game arguments")
)

// Roller supplies uniform rolls in [1, max].
type Roller interface {
	Roll(max int) int
}

type Result struct {
	Won    bool
	Detail string
}

type Game interface {
	// Names lists the command words for the game; the first is canonical.
	Names() []string
	Usage() string
	Play(r Roller, args []string) (Result, error)
}

// Registry maps upper-cased game names to games. Build it once at startup.
type Registry struct {
	byName map[string]Game
	games  []Game
}

func NewRegistry(gs ...Game) (*Registry, error) {
	reg := &Registry{byName: make(map[string]Game)}

	for _, g := range gs {
		names := g.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("register game: no names")
		}

		for _, n := range names {
			key := strings.ToUpper(n)
			if _, dup := reg.byName[key]; dup {
				return nil, fmt.Errorf("register game %q: name already taken", key)
			}

			reg.byName[key] = g
		}

		reg.games = append(reg.games, g)
	}

	return reg, nil
}

// Default registers every built-in game.
func Default() *Registry {
	reg, err := NewRegistry(Coin{}, Dice{})
	if err != nil {
		panic(err)
	}

	return reg
}

func (r *Registry) Lookup(name string) (Game, error) {
	g, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}

	return g, nil
}

// Names returns the canonical name of every game, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g.Names()[0])
	}

	sort.Strings(out)

	return out
}
