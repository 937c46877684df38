package match

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantaex/matchcore/pkg/util"
)

// ErrUnsupportedKind is returned when an order's kind is one of the
// unimplemented kinds (market buy/sell, cancel buy/sell). Rejecting one
// order never aborts the engine: the run loop logs the rejection and
// keeps consuming.
var ErrUnsupportedKind = errors.New("unsupported order kind")

// Engine consumes orders from the inbound channel one at a time, to
// completion, and produces ticks and trade results on its outbound
// channels. All matching state (both books, market price, fingerprint)
// is touched only from the Run goroutine; that strict sequencing is what
// makes a replay of the same input sequence produce the same output
// sequence and the same final fingerprint.
type Engine struct {
	orders  <-chan *Order
	ticks   chan<- Tick
	results chan<- *TradeResult

	buyBook  *Book
	sellBook *Book

	mu          sync.RWMutex
	marketPrice decimal.Decimal

	fingerprint Fingerprint

	clock     util.Clock
	drainPoll time.Duration
	log       *zap.SugaredLogger
}

// NewEngine wires the engine to its three channels. The inbound channel
// delivers admitted orders in sequence; ticks and results preserve the
// engine's emission order as long as each has a single consumer.
// drainPoll bounds each receive during shutdown drain.
func NewEngine(orders <-chan *Order, ticks chan<- Tick, results chan<- *TradeResult,
	drainPoll time.Duration, log *zap.SugaredLogger) *Engine {
	return &Engine{
		orders:      orders,
		ticks:       ticks,
		results:     results,
		buyBook:     NewBook(Buy),
		sellBook:    NewBook(Sell),
		marketPrice: decimal.Zero,
		clock:       util.RealClock{},
		drainPoll:   drainPoll,
		log:         log,
	}
}

// Run blocks processing orders until ctx is cancelled, then drains:
// orders already admitted upstream that arrive within the drain poll
// window are still processed to completion before Run returns. The
// cancellation itself is a control signal, not a fault.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case o := <-e.orders:
			if err := e.Process(o); err != nil {
				e.log.Warnw("order_rejected", "id", o.ID, "kind", o.Kind.String(), "err", err)
			}
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case o := <-e.orders:
			if err := e.Process(o); err != nil {
				e.log.Warnw("order_rejected", "id", o.ID, "kind", o.Kind.String(), "err", err)
			}
		case <-e.clock.After(e.drainPoll):
			return
		}
	}
}

// Process applies one order to the books. Dispatch is total over Kind:
// the unimplemented kinds come back as ErrUnsupportedKind so the caller
// can reject just that input instead of tearing the engine down.
func (e *Engine) Process(o *Order) error {
	switch o.Kind {
	case KindBuyLimit:
		e.processBuyLimit(o)
		return nil
	case KindSellLimit:
		e.processSellLimit(o)
		return nil
	case KindBuyMarket, KindSellMarket, KindBuyCancel, KindSellCancel:
		return ErrUnsupportedKind
	default:
		return ErrUnsupportedKind
	}
}

// processBuyLimit matches a buy taker against the sell book. A buy limit
// only crosses sell orders priced at or below its own price, and every
// fill executes at the maker's price: price improvement goes to the
// taker.
func (e *Engine) processBuyLimit(taker *Order) {
	result := &TradeResult{}
	for {
		maker := e.sellBook.PeekBest()
		if maker == nil {
			// empty counter-book
			break
		}
		if taker.Price.LessThan(maker.Price) {
			break
		}
		price := maker.Price
		amount := decimal.Min(taker.Amount, maker.Amount)
		taker.Amount = taker.Amount.Sub(amount)
		maker.Amount = maker.Amount.Sub(amount)
		e.setMarketPrice(price)
		e.ticks <- Tick{Time: taker.CreatedAt, Price: price, Amount: amount}
		result.Append(TradeRecord{TakerID: taker.ID, MakerID: maker.ID, Price: price, Amount: amount})
		e.fingerprint.Update(taker, maker, price, amount)
		if maker.Amount.IsZero() {
			e.sellBook.Remove(maker)
		}
		if taker.Amount.IsZero() {
			taker = nil
			break
		}
	}
	if taker != nil {
		e.buyBook.Insert(taker)
	}
	if !result.IsEmpty() {
		e.results <- result
	}
}

// processSellLimit is the mirror: makers come from the buy book and the
// sell taker only crosses buy orders priced at or above its own price.
func (e *Engine) processSellLimit(taker *Order) {
	result := &TradeResult{}
	for {
		maker := e.buyBook.PeekBest()
		if maker == nil {
			break
		}
		if taker.Price.GreaterThan(maker.Price) {
			break
		}
		price := maker.Price
		amount := decimal.Min(taker.Amount, maker.Amount)
		taker.Amount = taker.Amount.Sub(amount)
		maker.Amount = maker.Amount.Sub(amount)
		e.setMarketPrice(price)
		e.ticks <- Tick{Time: taker.CreatedAt, Price: price, Amount: amount}
		result.Append(TradeRecord{TakerID: taker.ID, MakerID: maker.ID, Price: price, Amount: amount})
		e.fingerprint.Update(taker, maker, price, amount)
		if maker.Amount.IsZero() {
			e.buyBook.Remove(maker)
		}
		if taker.Amount.IsZero() {
			taker = nil
			break
		}
	}
	if taker != nil {
		e.sellBook.Insert(taker)
	}
	if !result.IsEmpty() {
		e.results <- result
	}
}

func (e *Engine) setMarketPrice(p decimal.Decimal) {
	e.mu.Lock()
	e.marketPrice = p
	e.mu.Unlock()
}

// MarketPrice returns the last executed trade price, zero before the
// first fill. It is never set from an order's posted price.
func (e *Engine) MarketPrice() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.marketPrice
}

// FingerprintSnapshot returns the current state fingerprint. Safe to
// call at any time; reflects exactly the fills processed so far.
func (e *Engine) FingerprintSnapshot() [sha256.Size]byte {
	return e.fingerprint.Snapshot()
}

// FingerprintHex returns the 0x-prefixed hex form of the fingerprint.
func (e *Engine) FingerprintHex() string {
	return e.fingerprint.Hex()
}

// BuyBook exposes the buy side for read-only inspection.
func (e *Engine) BuyBook() *Book { return e.buyBook }

// SellBook exposes the sell side for read-only inspection.
func (e *Engine) SellBook() *Book { return e.sellBook }
