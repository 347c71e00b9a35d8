package host

// MaxSeedChunkBytes caps one seed chunk's payload. Large snapshots are
// split so a slow link still delivers early chunks promptly and the
// client can time out on a stalled batch.
const MaxSeedChunkBytes = 32 * 1024

// SplitSeedChunks slices a snapshot into chunks of at most maxBytes,
// cutting only on UTF-8 boundaries. Always returns at least one chunk
// so that an empty snapshot still produces a complete one-chunk batch
// carrying the metadata.
func SplitSeedChunks(content string, maxBytes int) []string {
	if maxBytes <= 0 {
		maxBytes = MaxSeedChunkBytes
	}
	if len(content) <= maxBytes {
		return []string{content}
	}

	var chunks []string
	data := []byte(content)
	for len(data) > 0 {
		if len(data) <= maxBytes {
			chunks = append(chunks, string(data))
			break
		}
		cut := LastUTF8Boundary(data[:maxBytes])
		if cut == 0 {
			// Degenerate input (e.g. maxBytes shorter than one
			// character); cut raw rather than loop forever.
			cut = maxBytes
		}
		chunks = append(chunks, string(data[:cut]))
		data = data[cut:]
	}
	return chunks
}
