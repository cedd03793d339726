package node

import (
	"fmt"
	"sync"
	"time"
)

const (
	speedRecordCount = 3
	// speedInitValue is the assumed transfer speed of a node nobody has
	// measured yet, in bytes per second.
	speedInitValue = 100 * 1024 * 1024
)

// NodeWeight ranks a node for new requests. Fast nodes that have not been
// asked anything for a while and rarely fail rank first.
type NodeWeight struct {
	mu           sync.Mutex
	speeds       [speedRecordCount]float64
	requestTimes [speedRecordCount]time.Time
	timeouts     int
	errors       int
	now          func() time.Time
}

// NewNodeWeight ...
func NewNodeWeight(now func() time.Time) *NodeWeight {
	if now == nil {
		now = time.Now
	}
	w := &NodeWeight{now: now}
	t := now()
	for i := range w.speeds {
		w.speeds[i] = speedInitValue
		w.requestTimes[i] = t
	}
	return w
}

// AppendSpeed records a transfer speed in bytes per second.
func (w *NodeWeight) AppendSpeed(speed float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.speeds[:], w.speeds[1:])
	w.speeds[speedRecordCount-1] = speed
}

// AppendRequestTime records that a request was just sent to the node.
func (w *NodeWeight) AppendRequestTime() {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.requestTimes[:], w.requestTimes[1:])
	w.requestTimes[speedRecordCount-1] = w.now()
}

// AddTimeout increments and returns the timeout count.
func (w *NodeWeight) AddTimeout() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeouts++
	return w.timeouts
}

// AddError increments and returns the error count.
func (w *NodeWeight) AddError() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors++
	return w.errors
}

// Timeouts ...
func (w *NodeWeight) Timeouts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeouts
}

// Errors ...
func (w *NodeWeight) Errors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errors
}

// Weight is (average speed + average request age in milliseconds) divided
// by (timeouts+1) and (errors+1).
func (w *NodeWeight) Weight() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var speed, age float64
	for i := 0; i < speedRecordCount; i++ {
		speed += w.speeds[i]
		age += float64(now.Sub(w.requestTimes[i])) / float64(time.Millisecond)
	}
	speed /= speedRecordCount
	age /= speedRecordCount

	return (speed + age) / float64(w.timeouts+1) / float64(w.errors+1)
}

func (w *NodeWeight) String() string {
	return fmt.Sprintf("weight=%.0f timeouts=%d errors=%d", w.Weight(), w.Timeouts(), w.Errors())
}
