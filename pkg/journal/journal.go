// Package journal persists the engine's output streams (ticks and trade
// results) to a local pebble database. It is a downstream sink: a single
// writer per stream appends in emission order, so reading a stream back
// yields exactly the order the engine produced.
package journal

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/quantaex/matchcore/pkg/match"
)

// keys: t:<8-byte-seq> for ticks, r:<8-byte-seq> for trade results
func kTick(seq uint64) []byte   { return append([]byte("t:"), seqKey(seq)...) }
func kResult(seq uint64) []byte { return append([]byte("r:"), seqKey(seq)...) }

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

type Journal struct {
	db *pebble.DB

	mu        sync.Mutex
	tickSeq   uint64
	resultSeq uint64
}

// Open opens (or creates) the journal at path and recovers the sequence
// counters from the highest existing key of each stream.
func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}
	j.tickSeq, err = lastSeq(db, 't')
	if err != nil {
		db.Close()
		return nil, err
	}
	j.resultSeq, err = lastSeq(db, 'r')
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// lastSeq returns the next sequence number for a stream prefix: one past
// the highest stored key, or zero for an empty stream.
func lastSeq(db *pebble.DB, prefix byte) (uint64, error) {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefix, ':'},
		UpperBound: []byte{prefix, ';'}, // ';' is ':'+1
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	key := iter.Key()
	if len(key) != 10 {
		return 0, fmt.Errorf("journal: malformed key %q", key)
	}
	return binary.BigEndian.Uint64(key[2:]) + 1, nil
}

// AppendTick appends one tick to the tick stream.
func (j *Journal) AppendTick(t match.Tick) error {
	val, err := encodeGob(t)
	if err != nil {
		return fmt.Errorf("encode tick: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.db.Set(kTick(j.tickSeq), val, pebble.Sync); err != nil {
		return err
	}
	j.tickSeq++
	return nil
}

// AppendResult appends one trade result to the result stream.
func (j *Journal) AppendResult(r *match.TradeResult) error {
	val, err := encodeGob(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.db.Set(kResult(j.resultSeq), val, pebble.Sync); err != nil {
		return err
	}
	j.resultSeq++
	return nil
}

// RecentTicks returns up to n most recent ticks in chronological order.
func (j *Journal) RecentTicks(n int) ([]match.Tick, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("t:"),
		UpperBound: []byte("t;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []match.Tick
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var t match.Tick
		if err := decodeGob(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("decode tick: %w", err)
		}
		out = append(out, t)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// RecentResults returns up to n most recent trade results in
// chronological order.
func (j *Journal) RecentResults(n int) ([]*match.TradeResult, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("r:"),
		UpperBound: []byte("r;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*match.TradeResult
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var r match.TradeResult
		if err := decodeGob(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, &r)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
