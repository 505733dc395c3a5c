// Package filter implements the membership filter the puller uses to
// classify transaction bodies as relevant. The filter is a probabilistic
// Bloom set over arbitrary byte keys; a positive test is "maybe a member", a
// negative test is certainly not, which is the right trade-off for a
// relevance gate that only ever widens a TODO list, never narrows truth.
package filter

import (
	"bytes"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"laminar/internal/model"
)

// Filter wraps a bloom.BloomFilter behind a mutex so it can be hot-swapped
// by the status server's /filter endpoint while puller goroutines are
// concurrently testing membership against it.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// New builds an empty filter sized for n expected elements at the given
// false-positive rate.
func New(n uint, falsePositiveRate float64) *Filter {
	return &Filter{bf: bloom.NewWithEstimates(n, falsePositiveRate)}
}

// Add inserts a key into the filter.
func (f *Filter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.Add(key)
}

// Test reports whether key may be a member.
func (f *Filter) Test(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

// Replace swaps the underlying bloom set wholesale, for the status server's
// filter-reload route.
func (f *Filter) Replace(bf *bloom.BloomFilter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf = bf
}

// IsOfInterest implements the puller's relevance gate: a transaction is of
// interest iff it succeeded and any of its sender, touched object ids,
// object owner addresses, or event keys are members of the filter.
func (f *Filter) IsOfInterest(tx model.TxResponse) bool {
	if tx.Status != model.ExecutionSuccess {
		return false
	}

	if f.Test(tx.Sender) {
		return true
	}

	for _, obj := range tx.Effects.AllObjects() {
		if f.Test(obj.ObjectID) {
			return true
		}
		if obj.Owner != nil && obj.Owner.Kind == model.OwnerAddress && f.Test(obj.Owner.Address) {
			return true
		}
	}

	for _, ev := range tx.Events {
		if f.Test(ev.PackageID) || f.Test(ev.Sender) {
			return true
		}
		if f.Test(eventTypeKey(ev)) {
			return true
		}
		if ev.Kind == model.EventTransfer || ev.Kind == model.EventNewObject {
			if ev.Recipient != nil && ev.Recipient.Kind == model.OwnerAddress && f.Test(ev.Recipient.Address) {
				return true
			}
		}
	}

	return false
}

// eventTypeKey builds the composite package_id||module||type_name key an
// event is tested against.
func eventTypeKey(ev model.Event) []byte {
	var buf bytes.Buffer
	buf.Write(ev.PackageID)
	buf.WriteString(ev.Module)
	buf.WriteString(ev.TypeName)
	return buf.Bytes()
}
