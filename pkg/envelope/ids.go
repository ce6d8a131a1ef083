// Package envelope constructs the time-ordered, correlation-tracked event
// envelope that wraps every fact persisted to the event log.
package envelope

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/blake2b"
)

// idEntropy is a process-wide monotonic entropy source for ULID generation.
// ulid.Monotonic guarantees that two IDs minted within the same millisecond
// in this process still sort strictly increasing, so two events generated
// back to back in the same process always get strictly increasing
// event_ids.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewEventID mints a time-ordered, globally unique event_id.
func NewEventID() string {
	idMu.Lock()
	defer idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), idEntropy)
	if err != nil {
		// Entropy exhaustion within a millisecond; fall back to a fresh
		// random ULID rather than panicking on a hot path.
		id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return id.String()
}

// NewAggregateID mints a fresh 128-bit aggregate identity.
func NewAggregateID() string {
	return uuid.NewString()
}

// NewCorrelationID mints a fresh 128-bit correlation identity, used to tag
// every event produced by one request flow.
func NewCorrelationID() string {
	return uuid.NewString()
}

// DeterministicEventID derives an event_id from the command that produced
// it: the 80 random bits of the ULID are taken from a blake2b hash of
// (commandID, aggregateID, sequence), while the 48-bit timestamp prefix is
// the wall-clock time of the call. Two calls with the same inputs in the
// same millisecond return the same id; calls in different milliseconds
// return ids that differ in their timestamp prefix.
func DeterministicEventID(commandID, aggregateID string, sequence uint64) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // New256 with a nil key never errors
	}
	fmt.Fprintf(h, "%s:%s:%d", commandID, aggregateID, sequence)
	sum := h.Sum(nil)
	id, err := ulid.New(ulid.Timestamp(time.Now()), bytesEntropy(sum))
	if err != nil {
		panic(err)
	}
	return id.String()
}

// bytesEntropy adapts a fixed 32-byte digest into an io.Reader suitable as
// ulid entropy, so the low 80 bits of the ULID are a deterministic function
// of (commandID, aggregateID, sequence) while the timestamp prefix still
// reflects real wall-clock time for sort order.
func bytesEntropy(digest []byte) *fixedReader {
	return &fixedReader{digest: digest}
}

type fixedReader struct{ digest []byte }

func (r *fixedReader) Read(p []byte) (int, error) {
	n := copy(p, r.digest)
	return n, nil
}
