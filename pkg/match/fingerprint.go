package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/shopspring/decimal"
)

// Fingerprint is a cumulative digest over the ordered fill stream:
// digest' = sha256(digest || event). Two engines reporting the same
// fingerprint have processed byte-identical fill sequences, which makes
// digest comparison a cheap substitute for full state comparison when
// checking replicas or replay logs against each other.
type Fingerprint struct {
	mu     sync.Mutex
	digest [sha256.Size]byte
}

// Update folds one fill into the digest. The event encoding is fixed:
// big-endian taker id and kind code, big-endian maker id and kind code,
// then the canonical text of the execution price and the fill amount at
// the pinned scales. Any change here is a consensus break across
// replicas.
func (f *Fingerprint) Update(taker, maker *Order, price, amount decimal.Decimal) {
	var ids [24]byte
	binary.BigEndian.PutUint64(ids[0:8], taker.ID)
	binary.BigEndian.PutUint32(ids[8:12], uint32(taker.Kind))
	binary.BigEndian.PutUint64(ids[12:20], maker.ID)
	binary.BigEndian.PutUint32(ids[20:24], uint32(maker.Kind))

	f.mu.Lock()
	defer f.mu.Unlock()

	h := sha256.New()
	h.Write(f.digest[:])
	h.Write(ids[:])
	h.Write([]byte(CanonicalPrice(price)))
	h.Write([]byte(CanonicalAmount(amount)))
	copy(f.digest[:], h.Sum(nil))
}

// Snapshot returns the current digest value without mutating it. Safe to
// call from any goroutine.
func (f *Fingerprint) Snapshot() [sha256.Size]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.digest
}

// Hex returns the 0x-prefixed hex form of the current digest.
func (f *Fingerprint) Hex() string {
	d := f.Snapshot()
	return "0x" + hex.EncodeToString(d[:])
}
