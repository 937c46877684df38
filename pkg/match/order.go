package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pinned decimal scales. The canonical text encoding fed into the
// fingerprint uses exactly these scales; replicas that format the same
// numeric value differently would diverge, so the scales are part of the
// conformance contract, not a formatting choice.
const (
	PriceScale  = 2
	AmountScale = 8
)

// CanonicalPrice returns the pinned text encoding of a price.
func CanonicalPrice(d decimal.Decimal) string { return d.StringFixed(PriceScale) }

// CanonicalAmount returns the pinned text encoding of an amount.
func CanonicalAmount(d decimal.Decimal) string { return d.StringFixed(AmountScale) }

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind identifies what an inbound order asks the engine to do. The set is
// closed: dispatch in Engine.Process is total over it. Only the two limit
// kinds are implemented; the others are rejected explicitly rather than
// silently dropped.
type Kind int32

const (
	KindBuyLimit Kind = iota
	KindSellLimit
	KindBuyMarket
	KindSellMarket
	KindBuyCancel
	KindSellCancel
)

func (k Kind) Side() Side {
	switch k {
	case KindBuyLimit, KindBuyMarket, KindBuyCancel:
		return Buy
	default:
		return Sell
	}
}

func (k Kind) String() string {
	switch k {
	case KindBuyLimit:
		return "buy_limit"
	case KindSellLimit:
		return "sell_limit"
	case KindBuyMarket:
		return "buy_market"
	case KindSellMarket:
		return "sell_market"
	case KindBuyCancel:
		return "buy_cancel"
	case KindSellCancel:
		return "sell_cancel"
	default:
		return "unknown"
	}
}

// Order is a mutable order record owned by the engine: Amount is the
// remaining amount and is decremented in place during matching. ID is
// assigned by the upstream gateway and is strictly increasing in arrival
// order, which is what book tie-breaks rely on. Price and amount are
// validated upstream; the engine assumes Price > 0 and Amount > 0 on
// arrival and performs no bounds checks of its own.
type Order struct {
	ID        uint64
	Kind      Kind
	Price     decimal.Decimal
	Amount    decimal.Decimal
	CreatedAt int64 // unix milliseconds, set at admission
}

// PriceTicks returns the price as an integer number of ticks at the
// pinned price scale. Book levels are keyed by this value.
func (o *Order) PriceTicks() int64 {
	return o.Price.Shift(PriceScale).IntPart()
}

func (o *Order) String() string {
	return fmt.Sprintf("[%d %s %s@%s]", o.ID, o.Kind, CanonicalAmount(o.Amount), CanonicalPrice(o.Price))
}

// tickPrice converts a tick key back to a decimal price.
func tickPrice(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -PriceScale)
}
