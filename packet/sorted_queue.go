package packet

import (
	"container/heap"
	"sync"
)

// SortedQueue is a bounded-or-unbounded priority queue of packets ordered by
// RTP sequence number, modularly, duplicate-suppressing (§4.1). It is the
// one shared data structure between the network (producer) and audio
// (consumer) contexts (§5), so Write/Read/Head/Size are all guarded by a
// mutex for single-producer single-consumer safety — the same approach the
// example pack uses for equivalent shard/packet heaps (container/heap plus
// a duplicate-tracking set), rather than a lock-free ring which this
// system's "hundreds of packets" depth does not warrant.
type SortedQueue struct {
	mu      sync.Mutex
	maxSize int // 0 means unbounded
	items   seqHeap
	seen    map[uint64]struct{} // sourceID<<16|seqnum, for exact-duplicate suppression
}

// NewSortedQueue creates a queue. maxSize <= 0 means unbounded.
func NewSortedQueue(maxSize int) *SortedQueue {
	q := &SortedQueue{
		maxSize: maxSize,
		seen:    make(map[uint64]struct{}),
	}
	heap.Init(&q.items)
	return q
}

func dupKey(p *Packet) uint64 {
	return uint64(p.SourceID)<<16 | uint64(p.SeqNum)
}

// Write inserts p in sequence order. Exact duplicates (same seqnum from the
// same source) are silently dropped (§4.1). If the queue is bounded and
// full, the packet is dropped (transient failure, §7).
func (q *SortedQueue) Write(p *Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := dupKey(p)
	if _, dup := q.seen[key]; dup {
		return nil
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return nil
	}

	heap.Push(&q.items, p)
	q.seen[key] = struct{}{}
	return nil
}

// Read removes and returns the packet with the smallest sequence number, or
// nil if the queue is empty.
func (q *SortedQueue) Read() (*Packet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, nil
	}
	p := heap.Pop(&q.items).(*Packet)
	delete(q.seen, dupKey(p))
	return p, nil
}

// Head returns the smallest-sequence packet without removing it, or nil if
// empty.
func (q *SortedQueue) Head() *Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Tail returns the largest-sequence packet without removing it, or nil if
// empty. Used by the latency monitor to measure buffered span (§4.8).
func (q *SortedQueue) Tail() *Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	var max *Packet
	for _, p := range q.items {
		if max == nil || SeqAfter(p.SeqNum, max.SeqNum) {
			max = p
		}
	}
	return max
}

// Size returns the current packet count.
func (q *SortedQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// seqHeap implements container/heap.Interface ordered by modular sequence
// comparison.
type seqHeap []*Packet

func (h seqHeap) Len() int { return len(h) }
func (h seqHeap) Less(i, j int) bool {
	return SeqAfter(h[j].SeqNum, h[i].SeqNum)
}
func (h seqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *seqHeap) Push(x any) {
	*h = append(*h, x.(*Packet))
}

func (h *seqHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
