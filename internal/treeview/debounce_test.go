package treeview

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerTrailingEdge(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { fired.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "a burst collapses to one trailing call")
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load(), "Stop cancels the pending call")

	d.Trigger(func() { fired.Add(1) })
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "the debouncer stays usable after Stop")
}
