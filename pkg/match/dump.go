package match

import (
	"fmt"
	"io"
)

// Dump writes a human-readable view of the current state for operational
// inspection: sell levels (highest first, so the best ask sits next to
// the market price line), market price, buy levels, order counts, and
// the fingerprint.
func (e *Engine) Dump(w io.Writer) {
	sells := e.sellBook.Levels()
	buys := e.buyBook.Levels()

	fmt.Fprintf(w, "S: %5d orders\n", e.sellBook.Len())
	for i := len(sells) - 1; i >= 0; i-- {
		lv := sells[i]
		fmt.Fprintf(w, "   %s  %s  (%d)\n", CanonicalPrice(lv.Price), CanonicalAmount(lv.Amount), lv.Orders)
	}
	fmt.Fprintf(w, "P: $%s ----------------\n", CanonicalPrice(e.MarketPrice()))
	for _, lv := range buys {
		fmt.Fprintf(w, "   %s  %s  (%d)\n", CanonicalPrice(lv.Price), CanonicalAmount(lv.Amount), lv.Orders)
	}
	fmt.Fprintf(w, "B: %5d orders\n", e.buyBook.Len())
	fmt.Fprintf(w, "%s\n", e.fingerprint.Hex())
}
