// Package speech provides value types for text-to-speech synthesis requests.
package speech

import "github.com/artpar/costgate/domain/money"

// Request describes one synthesis call to the upstream provider.
type Request struct {
	Input  string // text to synthesize (required)
	Voice  string // provider voice name (empty = configured default)
	Model  string // provider model (empty = configured default)
	Format string // audio format, e.g. "mp3" (empty = provider default)
}

// Result is the outcome of a synthesis call.
// Cost is the real incurred cost, not an estimate. It may be non-zero even
// when the call ultimately failed, if the provider charged for partial usage.
type Result struct {
	Audio       []byte
	ContentType string
	Cost        money.Amount
	LatencyMs   int64
}

// ContentTypeFor maps an audio format name to its MIME type.
func ContentTypeFor(format string) string {
	switch format {
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}
