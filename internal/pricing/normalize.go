// Package pricing converts raw per-account exchange prices into
// cross-account comparable prices, correcting for funding rate,
// mark-currency ratio and fee rate.
package pricing

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

var one = decimal.NewFromInt(1)

// Normalize adjusts a raw quote so prices from accounts with different
// funding/fee terms become comparable. The adjustment always models a
// cost: buys are rounded up (every correction makes the effective
// price worse), sells are rounded down.
func Normalize(raw, markRatio, fundingRate, feeRate decimal.Decimal, side enum.Side, pricePrecision int32) decimal.Decimal {
	switch side {
	case enum.SideBuy:
		adjusted := raw.Mul(markRatio).Mul(one.Add(fundingRate)).Mul(one.Add(feeRate))
		return adjusted.RoundUp(pricePrecision)
	case enum.SideSell:
		adjusted := raw.Mul(markRatio).Mul(one.Sub(fundingRate)).Mul(one.Sub(feeRate))
		return adjusted.RoundDown(pricePrecision)
	default:
		return raw
	}
}

// BaseSize converts a notional quantity into base-asset size at the
// given price, truncated to the account's size precision. A zero
// result means the precision cannot represent the order; the caller
// must discard the candidate, not treat it as success.
func BaseSize(notional, price decimal.Decimal, sizePrecision int32) decimal.Decimal {
	if !price.IsPositive() || !notional.IsPositive() {
		return decimal.Zero
	}
	return notional.Div(price).RoundDown(sizePrecision)
}

// Tick is the smallest representable price step at the given
// precision.
func Tick(pricePrecision int32) decimal.Decimal {
	return decimal.New(1, -pricePrecision)
}

// Improve offsets a same-side quote by one tick toward the front of
// the queue: up for a resting buy, down for a resting sell.
func Improve(quote decimal.Decimal, side enum.Side, pricePrecision int32) decimal.Decimal {
	switch side {
	case enum.SideBuy:
		return quote.Add(Tick(pricePrecision))
	case enum.SideSell:
		return quote.Sub(Tick(pricePrecision))
	default:
		return quote
	}
}

// RelativeSpread returns |a-b| / b, the staleness measure between the
// current best normalized price and a resting order's normalized
// price. Returns zero when b is not positive.
func RelativeSpread(a, b decimal.Decimal) decimal.Decimal {
	if !b.IsPositive() {
		return decimal.Zero
	}
	return a.Sub(b).Abs().Div(b)
}
