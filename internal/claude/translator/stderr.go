package translator

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
)

// RunStderr forwards each non-empty stderr line as claude/stderr. onClose is
// called once the stream ends, which is usually the first sign that the
// process has exited.
func (t *Translator) RunStderr(r io.Reader, onClose func()) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			t.emit(events.ClaudeStderr, map[string]any{
				"message":  trimmed,
				"threadId": t.threadID,
			})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Debug("stderr read ended", zap.Error(err))
			}
			break
		}
	}
	if onClose != nil {
		onClose()
	}
}
