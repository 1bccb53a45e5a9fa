// Package channel connects chat platforms to the bot service.
package channel

// DefaultChunkLimit is the per-message size we send to chat platforms,
// kept under Discord's 2000-character cap with headroom for formatting.
const DefaultChunkLimit = 1900

// Chunk splits reply into pieces of at most limit bytes, cut at fixed
// offsets. A non-positive limit falls back to DefaultChunkLimit. An empty
// reply yields no chunks.
func Chunk(reply string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	if reply == "" {
		return nil
	}

	chunks := make([]string, 0, (len(reply)+limit-1)/limit)
	for len(reply) > limit {
		chunks = append(chunks, reply[:limit])
		reply = reply[limit:]
	}
	return append(chunks, reply)
}
