package switchboard

import "net/http"

// StatusDescription returns the reason phrase for an HTTP status code,
// or "Unknown" when the code has no registered phrase.
func StatusDescription(code int) string {
	if code < 100 || code > 599 {
		return "Unknown"
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
