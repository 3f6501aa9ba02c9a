package games

import (
	"github.com/shopspring/decimal"
)

type prizeTier struct {
	label      string
	multiplier int64
	odds       int // out of scratchOddsBase
}

const scratchOddsBase = 1_000_000

var scratchTiers = []prizeTier{
	{"1000x", 1000, 30},
	{"100x", 100, 1_000},
	{"20x", 20, 10_000},
	{"5x", 5, 40_000},
	{"2x", 2, 100_000},
	{"1x", 1, 200_000},
}

const scratchCells = 9

// Scratch is an instant-win ticket: three matching prize labels on a 3x3 card.
type Scratch struct{}

func (Scratch) Kind() string { return KindScratch }

func (s Scratch) Play(rolls *Rolls) Outcome {
	target := int(rolls.Next() * scratchOddsBase)
	acc := 0
	won := -1
	for i, t := range scratchTiers {
		acc += t.odds
		if target < acc {
			won = i
			break
		}
	}

	var mult decimal.Decimal
	if won >= 0 {
		mult = decimal.NewFromInt(scratchTiers[won].multiplier)
	}
	return Outcome{Multiplier: mult, Symbols: scratchCard(rolls, won)}
}

// scratchCard lays out the card. A winning card shows its label three times;
// every other label appears at most twice so no false match is shown.
func scratchCard(rolls *Rolls, won int) []string {
	cells := make([]string, 0, scratchCells)
	counts := make(map[int]int)
	if won >= 0 {
		for i := 0; i < 3; i++ {
			cells = append(cells, scratchTiers[won].label)
		}
		counts[won] = 3
	}
	for len(cells) < scratchCells {
		i := int(rolls.Next() * float64(len(scratchTiers)))
		if i >= len(scratchTiers) {
			i = len(scratchTiers) - 1
		}
		if i == won || counts[i] >= 2 {
			continue
		}
		counts[i]++
		cells = append(cells, scratchTiers[i].label)
	}
	// shuffle with the same stream so the layout is reproducible
	for i := len(cells) - 1; i > 0; i-- {
		j := int(rolls.Next() * float64(i+1))
		if j > i {
			j = i
		}
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

func (Scratch) ExpectedRTP() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range scratchTiers {
		sum = sum.Add(decimal.NewFromInt(t.multiplier * int64(t.odds)))
	}
	return sum.Div(decimal.NewFromInt(scratchOddsBase))
}

// WinProbability is the chance any tier hits.
func (Scratch) WinProbability() decimal.Decimal {
	n := 0
	for _, t := range scratchTiers {
		n += t.odds
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(scratchOddsBase))
}
