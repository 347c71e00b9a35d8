package termsync

import "strings"

// SeedMeta is the snapshot metadata carried on the final chunk of a
// batch. Cols/Rows of zero mean the producer did not declare a size.
type SeedMeta struct {
	Cols       int
	Rows       int
	CursorX    int
	CursorY    int
	HasHistory bool
}

// seedState is one in-progress snapshot assembly. A chunk with index 0
// or a differing declared total replaces the whole state: that chunk
// starts a new, unrelated snapshot (reconnect, remote restart) and the
// old one is discarded, never merged.
type seedState struct {
	total    int
	chunks   []string
	received map[int]bool
	meta     SeedMeta
	hasMeta  bool
}

func newSeedState(total int) *seedState {
	return &seedState{
		total:    total,
		chunks:   make([]string, total),
		received: make(map[int]bool, total),
	}
}

// store records a chunk payload. Malformed indices are clamped into
// range rather than rejected; a hostile or buggy producer should not
// be able to wedge assembly. Returns the index actually used.
func (s *seedState) store(index int, data string) int {
	if index < 0 {
		index = 0
	}
	if index > s.total-1 {
		index = s.total - 1
	}
	s.chunks[index] = data
	s.received[index] = true
	return index
}

func (s *seedState) complete() bool {
	return len(s.received) == s.total
}

// assemble concatenates every received chunk in index order, skipping
// slots that never arrived. For a complete batch this is exactly the
// payloads in order.
func (s *seedState) assemble() string {
	var b strings.Builder
	for i, chunk := range s.chunks {
		if s.received[i] {
			b.WriteString(chunk)
		}
	}
	return b.String()
}

// meetsPartialThreshold reports whether enough of the batch arrived to
// make a partial render worthwhile: at least 80%. A mostly-complete
// screen beats a blank one; a mostly-empty one does not.
func (s *seedState) meetsPartialThreshold() bool {
	return len(s.received)*10 >= s.total*8
}
