package games

import "github.com/shopspring/decimal"

// PoolState is the part of a jackpot pool a contribution changes.
type PoolState struct {
	Amount    decimal.Decimal
	Seed      decimal.Decimal
	Rate      decimal.Decimal
	MustHitBy decimal.Decimal
}

// Contribute adds bet × rate to the pool. Once the pool reaches MustHitBy the
// contributing bet wins it: the payout is the pool truncated to cents and the
// pool restarts from Seed.
func Contribute(p PoolState, bet decimal.Decimal) (next decimal.Decimal, payout decimal.Decimal, hit bool) {
	next = p.Amount.Add(bet.Mul(p.Rate)).Round(4)
	if p.MustHitBy.IsPositive() && next.GreaterThanOrEqual(p.MustHitBy) {
		return p.Seed, next.Truncate(2), true
	}
	return next, decimal.Zero, false
}
