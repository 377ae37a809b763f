package translator

import "strings"

// NextDelta returns the text to append given the previously emitted text and
// the agent's latest full snapshot. A snapshot that does not extend the
// previous one is emitted whole.
func NextDelta(last, full string) string {
	if strings.HasPrefix(full, last) {
		return full[len(last):]
	}
	return full
}
