package ai

const (
	DefaultChunkSize = 20000
	DefaultMaxChunks = 3

	truncationNote = "\n\n[Note: the document was truncated because of its length.]"
)

// splitChunks cuts text into pieces of at most size runes, keeping at most
// max pieces. A note is appended to the last piece when text was dropped.
func splitChunks(text string, size, max int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	if max > 0 && len(chunks) > max {
		chunks = chunks[:max]
		chunks[max-1] += truncationNote
	}

	return chunks
}
