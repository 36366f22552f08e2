package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviewDebouncer_CoalescesUpdates(t *testing.T) {
	sink := &recordingSink{}
	d := NewPreviewDebouncer(sink, 20*time.Millisecond)
	defer d.Stop()

	d.Update("a")
	d.Update("ab")
	d.Update("abc")

	assert.Eventually(t, func() bool { return sink.Last() == "abc" }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	assert.Len(t, sink.documents, 1)
	sink.mu.Unlock()
}

func TestPreviewDebouncer_FlushDropsPending(t *testing.T) {
	sink := &recordingSink{}
	d := NewPreviewDebouncer(sink, 20*time.Millisecond)
	defer d.Stop()

	d.Update("partial")
	d.Flush("final")
	time.Sleep(50 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"final"}, sink.documents)
}

func TestPreviewDebouncer_CancelAndStop(t *testing.T) {
	sink := &recordingSink{}
	d := NewPreviewDebouncer(sink, 10*time.Millisecond)

	d.Update("partial")
	d.Cancel()
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sink.Last())

	d.Stop()
	d.Update("late")
	d.Flush("late")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sink.Last())
}

func TestPreviewDebouncer_NilSink(t *testing.T) {
	d := NewPreviewDebouncer(nil, time.Millisecond)
	assert.NotPanics(
		t, func() {
			d.Update("a")
			d.Flush("b")
			d.Cancel()
			d.Stop()
		},
	)
}
