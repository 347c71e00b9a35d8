package termsync

const (
	// pendingMaxEntries bounds the queue length; on overflow the
	// newest pendingTrimTo entries are kept. Recent output matters
	// more than ancient output once a limit is hit.
	pendingMaxEntries = 1000
	pendingTrimTo     = 500

	// pendingMaxBytes is the hard memory ceiling. Exceeding it aborts
	// the in-progress seed entirely and falls back to the raw stream.
	pendingMaxBytes = 2 << 20
)

// pendingBuffer queues live output that arrives while a snapshot is
// being assembled. It is owned by the session controller and cleared
// atomically whenever a seed starts or completes.
type pendingBuffer struct {
	entries []string
	bytes   int
}

// push appends data and applies the entry-count trim. It reports
// whether the byte ceiling is now exceeded; the caller decides to
// abort the seed, this type only accounts.
func (b *pendingBuffer) push(data string) (overBudget bool) {
	b.entries = append(b.entries, data)
	b.bytes += len(data)
	if len(b.entries) > pendingMaxEntries {
		cut := b.entries[:len(b.entries)-pendingTrimTo]
		for _, e := range cut {
			b.bytes -= len(e)
		}
		b.entries = append([]string(nil), b.entries[len(b.entries)-pendingTrimTo:]...)
	}
	return b.bytes > pendingMaxBytes
}

func (b *pendingBuffer) len() int      { return len(b.entries) }
func (b *pendingBuffer) byteSize() int { return b.bytes }

// drain returns the queued entries in order and empties the buffer.
func (b *pendingBuffer) drain() []string {
	out := b.entries
	b.entries = nil
	b.bytes = 0
	return out
}

func (b *pendingBuffer) clear() {
	b.entries = nil
	b.bytes = 0
}
