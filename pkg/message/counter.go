package message

import "sync"

// TxIDCounter hands out transaction ids. Ids are one byte and wrap.
// It is safe for concurrent use.
type TxIDCounter struct {
	value uint8
	mu    sync.Mutex
}

// NewTxIDCounterWithValue creates a counter with a specific next value.
func NewTxIDCounterWithValue(initial uint8) *TxIDCounter {
	return &TxIDCounter{value: initial}
}

// Next returns the next transaction id and advances the counter.
func (c *TxIDCounter) Next() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.value
	c.value++
	return current
}

// Current returns the next id without advancing.
func (c *TxIDCounter) Current() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
