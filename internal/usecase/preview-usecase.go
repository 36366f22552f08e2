package usecase

import (
	"sync"
	"time"
)

type PreviewSink interface {
	Render(document string)
}

type PreviewFunc func(document string)

func (f PreviewFunc) Render(document string) {
	f(document)
}

// PreviewDebouncer coalesces streamed preview updates into at most one render
// per window. Flush renders right away and drops anything pending, so the last
// flushed document is always what the sink ends up showing.
type PreviewDebouncer struct {
	sink   PreviewSink
	window time.Duration

	renderMu sync.Mutex
	mu       sync.Mutex
	timer    *time.Timer
	pending  string
	seq      uint64
	stopped  bool
}

func NewPreviewDebouncer(sink PreviewSink, window time.Duration) *PreviewDebouncer {
	return &PreviewDebouncer{
		sink:   sink,
		window: window,
	}
}

func (d *PreviewDebouncer) Update(document string) {
	if d.sink == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = document
	if d.timer != nil {
		return
	}
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(seq)
	})
}

func (d *PreviewDebouncer) fire(seq uint64) {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	document := d.pending
	d.pending = ""
	d.timer = nil
	d.seq++
	d.mu.Unlock()

	d.sink.Render(document)
}

func (d *PreviewDebouncer) Flush(document string) {
	if d.sink == nil {
		return
	}
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.clearLocked()
	d.mu.Unlock()

	d.sink.Render(document)
}

// Cancel drops a pending update without rendering it.
func (d *PreviewDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

// Stop cancels pending work for good; later calls are ignored.
func (d *PreviewDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
	d.stopped = true
}

func (d *PreviewDebouncer) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = ""
	d.seq++
}
