package match

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) (*Engine, chan Tick, chan *TradeResult) {
	t.Helper()
	ticks := make(chan Tick, 1024)
	results := make(chan *TradeResult, 256)
	e := NewEngine(nil, ticks, results, time.Millisecond, zap.NewNop().Sugar())
	return e, ticks, results
}

func mustProcess(t *testing.T, e *Engine, o *Order) {
	t.Helper()
	if err := e.Process(o); err != nil {
		t.Fatalf("Process(%v): %v", o, err)
	}
}

func collectTicks(ch chan Tick) []Tick {
	var out []Tick
	for {
		select {
		case tk := <-ch:
			out = append(out, tk)
		default:
			return out
		}
	}
}

func collectResults(ch chan *TradeResult) []*TradeResult {
	var out []*TradeResult
	for {
		select {
		case r := <-ch:
			out = append(out, r)
		default:
			return out
		}
	}
}

// The worked example: buy id=1 100@5 against resting sells id=2 99@3 and
// id=3 99@4 fills 3 then 2, both at 99, leaving id=3 resting with 2.
func TestEngineWorkedExample(t *testing.T) {
	e, ticks, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 2, KindSellLimit, "99", "3"))
	mustProcess(t, e, limit(t, 3, KindSellLimit, "99", "4"))
	mustProcess(t, e, limit(t, 1, KindBuyLimit, "100", "5"))

	rs := collectResults(results)
	if len(rs) != 1 {
		t.Fatalf("results = %d, want 1", len(rs))
	}
	recs := rs[0].Records
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	want := []struct {
		taker, maker   uint64
		price, amount string
	}{
		{1, 2, "99.00", "3.00000000"},
		{1, 3, "99.00", "2.00000000"},
	}
	for i, w := range want {
		r := recs[i]
		if r.TakerID != w.taker || r.MakerID != w.maker {
			t.Errorf("record %d ids = taker:%d maker:%d, want taker:%d maker:%d", i, r.TakerID, r.MakerID, w.taker, w.maker)
		}
		if CanonicalPrice(r.Price) != w.price {
			t.Errorf("record %d price = %s, want %s", i, CanonicalPrice(r.Price), w.price)
		}
		if CanonicalAmount(r.Amount) != w.amount {
			t.Errorf("record %d amount = %s, want %s", i, CanonicalAmount(r.Amount), w.amount)
		}
	}

	tks := collectTicks(ticks)
	if len(tks) != 2 {
		t.Fatalf("ticks = %d, want 2", len(tks))
	}
	if CanonicalPrice(tks[0].Price) != "99.00" || CanonicalAmount(tks[0].Amount) != "3.00000000" {
		t.Errorf("tick 0 = %s@%s, want 3.00000000@99.00", CanonicalAmount(tks[0].Amount), CanonicalPrice(tks[0].Price))
	}
	if CanonicalPrice(tks[1].Price) != "99.00" || CanonicalAmount(tks[1].Amount) != "2.00000000" {
		t.Errorf("tick 1 = %s@%s, want 2.00000000@99.00", CanonicalAmount(tks[1].Amount), CanonicalPrice(tks[1].Price))
	}

	if CanonicalPrice(e.MarketPrice()) != "99.00" {
		t.Errorf("market price = %s, want 99.00", CanonicalPrice(e.MarketPrice()))
	}
	// Taker fully consumed, never rested; maker id=3 rests with 2.
	if e.BuyBook().Len() != 0 {
		t.Errorf("buy book len = %d, want 0", e.BuyBook().Len())
	}
	if e.SellBook().Len() != 1 {
		t.Fatalf("sell book len = %d, want 1", e.SellBook().Len())
	}
	rest := e.SellBook().PeekBest()
	if rest.ID != 3 || CanonicalAmount(rest.Amount) != "2.00000000" {
		t.Errorf("resting maker = %v, want id 3 with amount 2", rest)
	}
}

func TestEnginePriceTimePriority(t *testing.T) {
	e, _, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "99", "1"))
	mustProcess(t, e, limit(t, 2, KindSellLimit, "99", "1"))
	mustProcess(t, e, limit(t, 3, KindBuyLimit, "99", "1"))

	rs := collectResults(results)
	if len(rs) != 1 || len(rs[0].Records) != 1 {
		t.Fatalf("unexpected results %v", rs)
	}
	if rs[0].Records[0].MakerID != 1 {
		t.Errorf("maker = %d, want earlier-arrived 1", rs[0].Records[0].MakerID)
	}
}

func TestEnginePriceImprovement(t *testing.T) {
	e, _, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "98", "1"))
	mustProcess(t, e, limit(t, 2, KindBuyLimit, "100", "1"))

	rs := collectResults(results)
	if len(rs) != 1 {
		t.Fatalf("results = %d, want 1", len(rs))
	}
	// Fill executes at the maker's price, never the taker's.
	if CanonicalPrice(rs[0].Records[0].Price) != "98.00" {
		t.Errorf("fill price = %s, want maker price 98.00", CanonicalPrice(rs[0].Records[0].Price))
	}
	if CanonicalPrice(e.MarketPrice()) != "98.00" {
		t.Errorf("market price = %s, want 98.00", CanonicalPrice(e.MarketPrice()))
	}
}

func TestEnginePartialFillLeavesMaker(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "99", "5"))
	mustProcess(t, e, limit(t, 2, KindBuyLimit, "99", "2"))

	if e.SellBook().Len() != 1 {
		t.Fatalf("sell book len = %d, want 1", e.SellBook().Len())
	}
	maker := e.SellBook().PeekBest()
	if CanonicalAmount(maker.Amount) != "3.00000000" {
		t.Errorf("maker remaining = %s, want 3", CanonicalAmount(maker.Amount))
	}
	if e.BuyBook().Len() != 0 {
		t.Errorf("taker rested despite full fill")
	}
}

func TestEngineFullFillRemovesMakerAndContinues(t *testing.T) {
	e, _, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "99", "2"))
	mustProcess(t, e, limit(t, 2, KindSellLimit, "100", "2"))
	mustProcess(t, e, limit(t, 3, KindBuyLimit, "100", "3"))

	rs := collectResults(results)
	if len(rs) != 1 || len(rs[0].Records) != 2 {
		t.Fatalf("unexpected results %v", rs)
	}
	if rs[0].Records[0].MakerID != 1 || rs[0].Records[1].MakerID != 2 {
		t.Errorf("makers = %d,%d, want 1,2", rs[0].Records[0].MakerID, rs[0].Records[1].MakerID)
	}
	if e.SellBook().Len() != 1 {
		t.Fatalf("sell book len = %d, want 1", e.SellBook().Len())
	}
	if CanonicalAmount(e.SellBook().PeekBest().Amount) != "1.00000000" {
		t.Errorf("second maker remaining = %s, want 1", CanonicalAmount(e.SellBook().PeekBest().Amount))
	}
}

func TestEngineNoIllegalCrossing(t *testing.T) {
	e, ticks, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "101", "1"))
	mustProcess(t, e, limit(t, 2, KindBuyLimit, "100", "1"))

	if rs := collectResults(results); len(rs) != 0 {
		t.Fatalf("buy at 100 filled against sell at 101: %v", rs)
	}
	if tks := collectTicks(ticks); len(tks) != 0 {
		t.Fatalf("ticks emitted without a fill: %v", tks)
	}
	if e.BuyBook().Len() != 1 || e.SellBook().Len() != 1 {
		t.Errorf("books = %d/%d, want both orders resting", e.BuyBook().Len(), e.SellBook().Len())
	}
	// No fill happened, so the market price stays untouched.
	if !e.MarketPrice().IsZero() {
		t.Errorf("market price = %s, want 0", e.MarketPrice())
	}
}

func TestEngineConservation(t *testing.T) {
	e, _, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "99", "1.5"))
	mustProcess(t, e, limit(t, 2, KindSellLimit, "100", "2"))
	taker := limit(t, 3, KindBuyLimit, "100", "5")
	original := taker.Amount
	mustProcess(t, e, taker)

	rs := collectResults(results)
	if len(rs) != 1 {
		t.Fatalf("results = %d, want 1", len(rs))
	}
	filled := d(t, "0")
	for _, rec := range rs[0].Records {
		filled = filled.Add(rec.Amount)
	}
	// Sum of fills plus final remaining equals the original amount.
	if !filled.Add(taker.Amount).Equal(original) {
		t.Errorf("filled %s + remaining %s != original %s", filled, taker.Amount, original)
	}
	// Remainder rests in the buy book.
	if e.BuyBook().Len() != 1 {
		t.Fatalf("buy book len = %d, want 1", e.BuyBook().Len())
	}
	if rest := e.BuyBook().PeekBest(); rest.ID != 3 {
		t.Errorf("resting taker id = %d, want 3", rest.ID)
	}
}

func TestEngineEmptyCounterBook(t *testing.T) {
	e, ticks, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindBuyLimit, "100", "5"))

	if rs := collectResults(results); len(rs) != 0 {
		t.Fatalf("results against empty book = %v, want none", rs)
	}
	if tks := collectTicks(ticks); len(tks) != 0 {
		t.Fatalf("ticks against empty book = %v, want none", tks)
	}
	if e.BuyBook().Len() != 1 {
		t.Fatalf("buy book len = %d, want 1 (rested in full)", e.BuyBook().Len())
	}
	if CanonicalAmount(e.BuyBook().PeekBest().Amount) != "5.00000000" {
		t.Errorf("rested amount = %s, want 5", CanonicalAmount(e.BuyBook().PeekBest().Amount))
	}
}

func TestEngineSellLimitMirror(t *testing.T) {
	e, _, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindBuyLimit, "101", "2"))
	mustProcess(t, e, limit(t, 2, KindBuyLimit, "100", "2"))
	mustProcess(t, e, limit(t, 3, KindSellLimit, "100", "3"))

	rs := collectResults(results)
	if len(rs) != 1 || len(rs[0].Records) != 2 {
		t.Fatalf("unexpected results %v", rs)
	}
	// Best (highest) bid fills first, at its own price.
	if rs[0].Records[0].MakerID != 1 || CanonicalPrice(rs[0].Records[0].Price) != "101.00" {
		t.Errorf("first fill = maker %d @ %s, want maker 1 @ 101.00",
			rs[0].Records[0].MakerID, CanonicalPrice(rs[0].Records[0].Price))
	}
	if rs[0].Records[1].MakerID != 2 || CanonicalPrice(rs[0].Records[1].Price) != "100.00" {
		t.Errorf("second fill = maker %d @ %s, want maker 2 @ 100.00",
			rs[0].Records[1].MakerID, CanonicalPrice(rs[0].Records[1].Price))
	}
	if e.SellBook().Len() != 0 {
		t.Errorf("fully filled sell taker rested")
	}
	if CanonicalPrice(e.MarketPrice()) != "100.00" {
		t.Errorf("market price = %s, want last fill 100.00", CanonicalPrice(e.MarketPrice()))
	}
}

func TestEngineUnsupportedKinds(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for _, kind := range []Kind{KindBuyMarket, KindSellMarket, KindBuyCancel, KindSellCancel} {
		err := e.Process(limit(t, 1, kind, "100", "1"))
		if !errors.Is(err, ErrUnsupportedKind) {
			t.Errorf("Process(%s) = %v, want ErrUnsupportedKind", kind, err)
		}
	}
	// Rejection left no state behind.
	if e.BuyBook().Len() != 0 || e.SellBook().Len() != 0 {
		t.Errorf("rejected orders mutated the books")
	}
	var zero [32]byte
	if e.FingerprintSnapshot() != zero {
		t.Errorf("rejected orders touched the fingerprint")
	}
}

// Replaying an identical sequence into a fresh engine yields identical
// outputs and an identical final fingerprint.
func TestEngineDeterministicReplay(t *testing.T) {
	sequence := func(t *testing.T) []*Order {
		return []*Order{
			limit(t, 1, KindSellLimit, "99", "3"),
			limit(t, 2, KindSellLimit, "99", "4"),
			limit(t, 3, KindBuyLimit, "100", "5"),
			limit(t, 4, KindBuyLimit, "98.50", "2"),
			limit(t, 5, KindSellLimit, "98.50", "6"),
			limit(t, 6, KindBuyLimit, "99.00", "1.25"),
		}
	}

	run := func(t *testing.T) ([]Tick, []*TradeResult, [32]byte) {
		e, ticks, results := newTestEngine(t)
		for _, o := range sequence(t) {
			mustProcess(t, e, o)
		}
		return collectTicks(ticks), collectResults(results), e.FingerprintSnapshot()
	}

	t1, r1, f1 := run(t)
	t2, r2, f2 := run(t)

	if f1 != f2 {
		t.Fatalf("fingerprints diverged: %x vs %x", f1, f2)
	}
	if len(t1) != len(t2) {
		t.Fatalf("tick counts diverged: %d vs %d", len(t1), len(t2))
	}
	for i := range t1 {
		if !t1[i].Price.Equal(t2[i].Price) || !t1[i].Amount.Equal(t2[i].Amount) || t1[i].Time != t2[i].Time {
			t.Errorf("tick %d diverged: %v vs %v", i, t1[i], t2[i])
		}
	}
	if len(r1) != len(r2) {
		t.Fatalf("result counts diverged: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if len(r1[i].Records) != len(r2[i].Records) {
			t.Fatalf("result %d record counts diverged", i)
		}
		for k := range r1[i].Records {
			a, b := r1[i].Records[k], r2[i].Records[k]
			if a.TakerID != b.TakerID || a.MakerID != b.MakerID ||
				!a.Price.Equal(b.Price) || !a.Amount.Equal(b.Amount) {
				t.Errorf("result %d record %d diverged: %v vs %v", i, k, a, b)
			}
		}
	}
}

func TestEngineTickTimestampIsTakers(t *testing.T) {
	e, ticks, _ := newTestEngine(t)
	maker := limit(t, 1, KindSellLimit, "99", "1")
	maker.CreatedAt = 1111
	taker := limit(t, 2, KindBuyLimit, "99", "1")
	taker.CreatedAt = 2222
	mustProcess(t, e, maker)
	mustProcess(t, e, taker)

	tks := collectTicks(ticks)
	if len(tks) != 1 {
		t.Fatalf("ticks = %d, want 1", len(tks))
	}
	if tks[0].Time != 2222 {
		t.Errorf("tick time = %d, want taker's 2222", tks[0].Time)
	}
}

func TestEngineRunDrainsOnShutdown(t *testing.T) {
	orders := make(chan *Order, 16)
	ticks := make(chan Tick, 64)
	results := make(chan *TradeResult, 16)
	e := NewEngine(orders, ticks, results, 5*time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	// Orders admitted before cancellation must still be processed.
	orders <- limit(t, 1, KindSellLimit, "99", "1")
	orders <- limit(t, 2, KindBuyLimit, "99", "1")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if rs := collectResults(results); len(rs) != 1 {
		t.Fatalf("results after drain = %d, want 1", len(rs))
	}
	var zero [32]byte
	if e.FingerprintSnapshot() == zero {
		t.Error("fingerprint untouched, drain lost the admitted orders")
	}
}

func TestEngineRunRejectsUnsupportedAndContinues(t *testing.T) {
	orders := make(chan *Order, 16)
	ticks := make(chan Tick, 64)
	results := make(chan *TradeResult, 16)
	e := NewEngine(orders, ticks, results, 5*time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	orders <- limit(t, 1, KindSellLimit, "99", "1")
	orders <- limit(t, 2, KindBuyCancel, "99", "1") // rejected, engine keeps going
	orders <- limit(t, 3, KindBuyLimit, "99", "1")
	cancel()
	<-done

	if rs := collectResults(results); len(rs) != 1 || len(rs[0].Records) != 1 {
		t.Fatalf("results = %v, want one fill after the rejected order", rs)
	}
}

func TestEngineDump(t *testing.T) {
	e, ticks, results := newTestEngine(t)
	mustProcess(t, e, limit(t, 1, KindSellLimit, "101", "1"))
	mustProcess(t, e, limit(t, 2, KindBuyLimit, "99", "2"))
	collectTicks(ticks)
	collectResults(results)

	var sb strings.Builder
	e.Dump(&sb)
	out := sb.String()
	for _, want := range []string{"S:     1 orders", "B:     1 orders", "101.00", "99.00", "0x"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
