package packet

// DelayedReader wraps a source Reader and withholds packets until the span
// between the earliest and latest queued packet reaches targetLatency,
// expressed in samples via the source sample rate (§4.2). The transition is
// one-way: once triggered, it transparently forwards Read and never
// re-buffers, even if the queue later drains below the threshold.
//
// It needs visibility into the queue it sits on top of (to measure the
// buffered span without consuming it), so it is constructed directly over a
// *SortedQueue rather than the narrower Reader interface.
type DelayedReader struct {
	queue     *SortedQueue
	threshold uint32 // samples
	triggered bool
}

// NewDelayedReader creates a DelayedReader over queue. targetLatencySamples
// is the buffered span (in source-clock samples) required before the first
// Read is allowed through.
func NewDelayedReader(queue *SortedQueue, targetLatencySamples uint32) *DelayedReader {
	return &DelayedReader{
		queue:     queue,
		threshold: targetLatencySamples,
	}
}

// Read returns nil, nil until the buffering threshold has been reached at
// least once; thereafter it transparently forwards to the underlying queue.
func (r *DelayedReader) Read() (*Packet, error) {
	if !r.triggered {
		if !r.bufferedEnough() {
			return nil, nil
		}
		r.triggered = true
	}
	return r.queue.Read()
}

// bufferedEnough reports whether the timestamp span between the oldest and
// newest queued packet has reached the threshold.
func (r *DelayedReader) bufferedEnough() bool {
	head := r.queue.Head()
	tail := r.queue.Tail()
	if head == nil || tail == nil {
		return false
	}
	span := tail.Timestamp - head.Timestamp
	return span >= r.threshold
}

// Triggered reports whether buffering has completed and packets are now
// being forwarded.
func (r *DelayedReader) Triggered() bool {
	return r.triggered
}
