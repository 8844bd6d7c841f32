// Package store provides the grow-only key sets that back a chain walk's dedup state.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// DefaultExpectedKeys sizes the bloom filter for a typical walk plus a pre-existing queue.
	DefaultExpectedKeys = 4096
	// DefaultFalsePositiveRate is the bloom filter's target false positive rate.
	DefaultFalsePositiveRate = 0.001
)

// KeySet is a thread-safe set of strings that only ever grows. A bloom filter answers most
// negative lookups; the map is authoritative, so the set never reports a false positive.
type KeySet struct {
	keys  map[string]struct{}
	order []string
	bloom *bloom.BloomFilter
	mutex sync.RWMutex
}

// NewKeySet creates a set sized for expectedKeys entries at the given false positive rate.
func NewKeySet(expectedKeys int, falsePositiveRate float64) *KeySet {
	if expectedKeys <= 0 {
		expectedKeys = DefaultExpectedKeys
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}

	return &KeySet{
		keys:  make(map[string]struct{}, expectedKeys),
		bloom: bloom.NewWithEstimates(uint(expectedKeys), falsePositiveRate),
	}
}

// NewDefaultKeySet creates a set with the default sizing.
func NewDefaultKeySet() *KeySet {
	return NewKeySet(DefaultExpectedKeys, DefaultFalsePositiveRate)
}

// Has reports whether key was added. The empty key is never a member.
func (ks *KeySet) Has(key string) bool {
	if key == "" {
		return false
	}

	ks.mutex.RLock()
	defer ks.mutex.RUnlock()

	if !ks.bloom.TestString(key) {
		return false
	}

	_, exists := ks.keys[key]
	return exists
}

// Add inserts key and reports whether it was new. Empty keys are ignored.
func (ks *KeySet) Add(key string) bool {
	if key == "" {
		return false
	}

	ks.mutex.Lock()
	defer ks.mutex.Unlock()

	if _, exists := ks.keys[key]; exists {
		return false
	}

	ks.keys[key] = struct{}{}
	ks.order = append(ks.order, key)
	ks.bloom.AddString(key)
	return true
}

// AddAll inserts every non-empty key and returns how many were new.
func (ks *KeySet) AddAll(keys []string) int {
	added := 0
	for _, key := range keys {
		if ks.Add(key) {
			added++
		}
	}
	return added
}

// Size returns the number of keys in the set.
func (ks *KeySet) Size() int {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()
	return len(ks.keys)
}

// Keys returns the keys in insertion order.
func (ks *KeySet) Keys() []string {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()

	keys := make([]string, len(ks.order))
	copy(keys, ks.order)
	return keys
}
