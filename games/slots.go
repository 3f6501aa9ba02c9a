package games

import (
	"github.com/shopspring/decimal"
)

type Symbol string

const (
	Cherry  Symbol = "cherry"
	Lemon   Symbol = "lemon"
	Bell    Symbol = "bell"
	Bar     Symbol = "bar"
	Seven   Symbol = "seven"
	Diamond Symbol = "diamond"
)

type weighted struct {
	symbol Symbol
	weight int
}

// every reel uses the same strip
var reelStrip = []weighted{
	{Cherry, 8},
	{Lemon, 8},
	{Bell, 6},
	{Bar, 5},
	{Seven, 3},
	{Diamond, 2},
}

var threeOfAKind = map[Symbol]decimal.Decimal{
	Diamond: decimal.NewFromInt(250),
	Seven:   decimal.NewFromInt(80),
	Bar:     decimal.NewFromInt(30),
	Bell:    decimal.NewFromInt(15),
	Lemon:   decimal.NewFromInt(8),
	Cherry:  decimal.NewFromInt(8),
}

var (
	twoCherries = decimal.NewFromInt(4)
	oneCherry   = decimal.NewFromInt(1)
)

const reelCount = 3

// Slots is a classic three reel machine.
type Slots struct{}

func (Slots) Kind() string { return KindSlots }

func stripWeight() int {
	total := 0
	for _, w := range reelStrip {
		total += w.weight
	}
	return total
}

func pickSymbol(r float64) Symbol {
	target := int(r * float64(stripWeight()))
	acc := 0
	for _, w := range reelStrip {
		acc += w.weight
		if target < acc {
			return w.symbol
		}
	}
	return reelStrip[len(reelStrip)-1].symbol
}

// Multiplier scores a stopped line.
func (Slots) Multiplier(line []Symbol) decimal.Decimal {
	if len(line) != reelCount {
		return decimal.Zero
	}
	if line[0] == line[1] && line[1] == line[2] {
		return threeOfAKind[line[0]]
	}
	if line[0] == Cherry && line[1] == Cherry {
		return twoCherries
	}
	if line[0] == Cherry {
		return oneCherry
	}
	return decimal.Zero
}

func (s Slots) Play(rolls *Rolls) Outcome {
	line := make([]Symbol, reelCount)
	symbols := make([]string, reelCount)
	for i := range line {
		line[i] = pickSymbol(rolls.Next())
		symbols[i] = string(line[i])
	}
	return Outcome{Multiplier: s.Multiplier(line), Symbols: symbols}
}

// ExpectedRTP enumerates every weighted stop combination.
func (s Slots) ExpectedRTP() decimal.Decimal {
	total := decimal.NewFromInt(int64(stripWeight())).Pow(decimal.NewFromInt(reelCount))
	sum := decimal.Zero
	for _, a := range reelStrip {
		for _, b := range reelStrip {
			for _, c := range reelStrip {
				w := decimal.NewFromInt(int64(a.weight * b.weight * c.weight))
				m := s.Multiplier([]Symbol{a.symbol, b.symbol, c.symbol})
				sum = sum.Add(w.Mul(m))
			}
		}
	}
	return sum.Div(total)
}
