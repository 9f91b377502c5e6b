package snapshot

// ring is a fixed-capacity FIFO that overwrites its oldest entry.
type ring struct {
	buf   []HistoryEntry
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]HistoryEntry, capacity)}
}

func (r *ring) push(e HistoryEntry) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) items() []HistoryEntry {
	out := make([]HistoryEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) reset() {
	clear(r.buf)
	r.start = 0
	r.size = 0
}
