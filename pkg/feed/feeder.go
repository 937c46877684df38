// Package feed generates synthetic limit orders for local testing. It
// stands in for the upstream admission boundary: ids are assigned
// monotonically and timestamps at submission, the same contract the
// production gateway provides.
package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantaex/matchcore/pkg/match"
	"github.com/quantaex/matchcore/pkg/util"
)

type Config struct {
	Seed      int64
	BatchSize int
	Interval  time.Duration
}

// Generator creates random limit orders around a drifting mid price.
// A fixed seed yields a reproducible order sequence, which makes replay
// comparisons against a second engine instance possible.
type Generator struct {
	rng    *rand.Rand
	nextID uint64
	mid    int64 // mid price in ticks
	clock  util.Clock
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1,
		mid:    10000, // 100.00
		clock:  util.RealClock{},
	}
}

// Next produces one limit order. Prices land within 1% of the current
// mid, which drifts by one tick per order at random.
func (g *Generator) Next() *match.Order {
	kind := match.KindBuyLimit
	if g.rng.Intn(2) == 1 {
		kind = match.KindSellLimit
	}

	spread := g.mid / 100
	ticks := g.mid - spread + int64(g.rng.Intn(int(2*spread+1)))
	amount := int64(g.rng.Intn(500) + 1) // 0.01 .. 5.00

	g.mid += int64(g.rng.Intn(3)) - 1

	o := &match.Order{
		ID:        g.nextID,
		Kind:      kind,
		Price:     decimal.New(ticks, -match.PriceScale),
		Amount:    decimal.New(amount, -2),
		CreatedAt: g.clock.Now().UnixMilli(),
	}
	g.nextID++
	return o
}

// Start feeds batches of generated orders into the inbound channel until
// ctx is cancelled.
func Start(ctx context.Context, orders chan<- *match.Order, cfg Config, log *zap.SugaredLogger) {
	gen := NewGenerator(cfg.Seed)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		start := time.Now()
		total := 0

		log.Infow("feeder_started", "seed", cfg.Seed, "batch", cfg.BatchSize, "interval", cfg.Interval.String())

		for {
			select {
			case <-ctx.Done():
				elapsed := time.Since(start)
				log.Infow("feeder_stopped", "orders", total, "elapsed", elapsed.Round(time.Second).String())
				return

			case <-ticker.C:
				for i := 0; i < cfg.BatchSize; i++ {
					select {
					case orders <- gen.Next():
						total++
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
}
