package match

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// priceHeap is satisfied by both side heaps; which one a Book carries
// decides whether "best" means highest (buy) or lowest (sell) price.
type priceHeap interface {
	heap.Interface
	Peek() int64
	At(i int) int64
}

// PriceLevel aggregates the resting amount at one price, best level
// first in Levels output. Used by the diagnostic dump and the API.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
	Orders int
}

// Book is one side of the order book: price levels keyed by tick with a
// FIFO queue per level, plus a heap tracking the best price. Orders are
// appended in arrival order and ids are monotonic, so FIFO per level
// realizes the price-time tie-break (lower id wins at equal price).
//
// The matching path (Insert, Remove, PeekBest) is only ever driven by the
// engine's single processing goroutine; the mutex exists for concurrent
// readers (Levels, Len) on the API and dump paths.
type Book struct {
	mu sync.RWMutex

	side   Side
	best   priceHeap
	levels map[int64][]*Order
	index  map[uint64]int64 // order id -> price ticks
}

func NewBook(side Side) *Book {
	var best priceHeap
	if side == Buy {
		best = &maxPriceHeap{}
	} else {
		best = &minPriceHeap{}
	}
	heap.Init(best)
	return &Book{
		side:   side,
		best:   best,
		levels: make(map[int64][]*Order),
		index:  make(map[uint64]int64),
	}
}

func (b *Book) Side() Side { return b.side }

// Insert rests an order at its priority position. The caller guarantees
// the order's remaining amount is positive.
func (b *Book) Insert(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := o.PriceTicks()
	if len(b.levels[p]) == 0 {
		heap.Push(b.best, p)
	}
	b.levels[p] = append(b.levels[p], o)
	b.index[o.ID] = p
}

// Remove deletes a resting order by id. It reports whether the order was
// resident; calling it for a non-resident order is a caller bug.
func (b *Book) Remove(o *Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.index[o.ID]
	if !ok {
		return false
	}
	queue := b.levels[p]
	for i, rest := range queue {
		if rest.ID == o.ID {
			b.levels[p] = append(queue[:i], queue[i+1:]...)
			if len(b.levels[p]) == 0 {
				delete(b.levels, p)
				b.dropLevel(p)
			}
			delete(b.index, o.ID)
			return true
		}
	}
	return false
}

// PeekBest returns the highest-priority resting order without removing
// it, or nil when the book is empty.
func (b *Book) PeekBest() *Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.best.Len() == 0 {
		return nil
	}
	return b.levels[b.best.Peek()][0]
}

// Len returns the number of resident orders.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// dropLevel removes an emptied price level from the heap. O(N) over
// levels, but only runs when a whole level clears.
func (b *Book) dropLevel(p int64) {
	for i := 0; i < b.best.Len(); i++ {
		if b.best.At(i) == p {
			heap.Remove(b.best, i)
			return
		}
	}
}

// Levels returns the aggregated price levels, best first: descending
// price for the buy side, ascending for the sell side.
func (b *Book) Levels() []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	levels := make([]PriceLevel, 0, len(b.levels))
	for p, queue := range b.levels {
		if len(queue) == 0 {
			continue
		}
		total := decimal.Zero
		for _, o := range queue {
			total = total.Add(o.Amount)
		}
		levels = append(levels, PriceLevel{Price: tickPrice(p), Amount: total, Orders: len(queue)})
	}

	if b.side == Buy {
		sort.Slice(levels, func(i, j int) bool {
			return levels[i].Price.GreaterThan(levels[j].Price)
		})
	} else {
		sort.Slice(levels, func(i, j int) bool {
			return levels[i].Price.LessThan(levels[j].Price)
		})
	}
	return levels
}
