package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Lobby categories. Only slots and scratch are played in-house; the rest are
// run by external providers that call back into the wallet.
const (
	KindSlots      = "slots"
	KindScratch    = "scratch"
	KindPoker      = "poker"
	KindBingo      = "bingo"
	KindSportsbook = "sportsbook"
)

var Categories = []string{KindSlots, KindPoker, KindBingo, KindSportsbook, KindScratch}

func ValidCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

type Outcome struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	Symbols    []string        `json:"symbols"`
}

// Payout is bet × multiplier truncated to cents.
func (o Outcome) Payout(bet decimal.Decimal) decimal.Decimal {
	return bet.Mul(o.Multiplier).Truncate(2)
}

func (o Outcome) Won() bool {
	return o.Multiplier.IsPositive()
}

type Game interface {
	Kind() string
	Play(rolls *Rolls) Outcome
	ExpectedRTP() decimal.Decimal
}

var houseGames = map[string]Game{
	KindSlots:   Slots{},
	KindScratch: Scratch{},
}

// ForCategory returns the in-house engine for a lobby category.
func ForCategory(category string) (Game, error) {
	g, ok := houseGames[category]
	if !ok {
		return nil, fmt.Errorf("no house engine for category %q", category)
	}
	return g, nil
}
