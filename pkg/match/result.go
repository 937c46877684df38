package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeRecord is the immutable fact of one fill: who took, who made, and
// at what price and amount the exchange happened.
type TradeRecord struct {
	TakerID uint64
	MakerID uint64
	Price   decimal.Decimal
	Amount  decimal.Decimal
}

func (r TradeRecord) String() string {
	return fmt.Sprintf("[taker:%d maker:%d %s@%s]",
		r.TakerID, r.MakerID, CanonicalAmount(r.Amount), CanonicalPrice(r.Price))
}

// TradeResult collects the fills produced while processing one inbound
// order. Records stays nil until the first fill: a non-crossing limit
// order is the common case and produces no trade at all, so allocation is
// deferred until something actually matches.
type TradeResult struct {
	Records []TradeRecord
}

func (r *TradeResult) Append(rec TradeRecord) {
	r.Records = append(r.Records, rec)
}

func (r *TradeResult) IsEmpty() bool {
	return r.Records == nil
}

// Tick is the public trade print for one fill, timestamped with the
// taker's arrival time.
type Tick struct {
	Time   int64 // unix milliseconds
	Price  decimal.Decimal
	Amount decimal.Decimal
}
