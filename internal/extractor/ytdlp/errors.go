package ytdlp

import "strings"

// The three error types mirror the tool's own exception split so the
// download orchestrator can classify failures without re-parsing
// subprocess output.

// VideoUnavailableError: the remote video is gone, private, or blocked.
type VideoUnavailableError struct {
	Msg string
}

func (e *VideoUnavailableError) Error() string { return "video unavailable: " + e.Msg }

// ExtractorError: the tool could not make sense of the page or URL.
type ExtractorError struct {
	Msg string
}

func (e *ExtractorError) Error() string { return "extractor error: " + e.Msg }

// DownloadError: the transfer itself failed (HTTP errors, network,
// missing formats).
type DownloadError struct {
	Msg string
}

func (e *DownloadError) Error() string { return "download error: " + e.Msg }

// classifyRunError maps the tool's stderr output onto the typed errors
// above. The tool reports everything on stderr as "ERROR: ..." lines;
// substring matching against the lowercased text is the only available
// signal.
func classifyRunError(stderr string, fallback error) error {
	msg := lastErrorLine(stderr)
	if msg == "" {
		return fallback
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "video has been removed"),
		strings.Contains(lower, "no longer available"):
		return &VideoUnavailableError{Msg: msg}
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "members-only"):
		return &ExtractorError{Msg: msg}
	case strings.Contains(lower, "http error"),
		strings.Contains(lower, "unable to download"),
		strings.Contains(lower, "requested format"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "too many requests"):
		return &DownloadError{Msg: msg}
	default:
		return &DownloadError{Msg: msg}
	}
}

// lastErrorLine picks the final "ERROR:" line from stderr, falling back
// to the last non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")
	var lastError, lastNonEmpty string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lastNonEmpty = line
		if strings.HasPrefix(line, "ERROR:") {
			lastError = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if lastError != "" {
		return lastError
	}
	return lastNonEmpty
}
