package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
)

// ForkSession copies a session log up to and including the message with
// the given uuid into a new session, rewriting session ids on the way.
// Returns the new session id.
func (r *Reader) ForkSession(workspacePath, threadID, messageID string) (string, error) {
	source := r.ResolveSessionPath(workspacePath, threadID)
	if source == "" {
		return "", apperrors.NotFound("Session file not found")
	}
	dir := r.ProjectDir(workspacePath)
	if dir == "" {
		return "", apperrors.NotFound("Session project directory not found")
	}

	newID := uuid.NewString()
	target := filepath.Join(dir, newID+sessionFileExt)
	found, err := copyUntilMessage(source, target, newID, messageID)
	if err != nil || !found {
		if rmErr := os.Remove(target); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("failed to remove partial fork", zap.String("path", target), zap.Error(rmErr))
		}
	}
	if err != nil {
		return "", apperrors.ProcessIO("failed to fork session", err)
	}
	if !found {
		return "", apperrors.NotFound("Message not found in session")
	}

	r.logger.Info("forked session",
		zap.String("thread_id", threadID),
		zap.String("message_id", messageID),
		zap.String("new_thread_id", newID))
	return newID, nil
}

func copyUntilMessage(source, target, newID, messageID string) (bool, error) {
	in, err := os.Open(source)
	if err != nil {
		return false, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return false, err
	}
	writer := bufio.NewWriter(out)
	found, copyErr := copyLines(bufio.NewReaderSize(in, 64*1024), writer, newID, messageID)
	if copyErr == nil {
		copyErr = writer.Flush()
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	return found, copyErr
}

func copyLines(reader *bufio.Reader, writer *bufio.Writer, newID, messageID string) (bool, error) {
	for {
		data, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
			line, matched, err := rewriteLine(trimmed, newID, messageID)
			if err != nil {
				return false, err
			}
			if _, err := writer.Write(append(line, '\n')); err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return false, nil
			}
			return false, readErr
		}
	}
}

// rewriteLine replaces sessionId/session_id in a JSON object line. Lines
// that are not objects are copied verbatim.
func rewriteLine(data []byte, newID, messageID string) ([]byte, bool, error) {
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil || value == nil {
		return data, false, nil
	}
	for _, key := range []string{"sessionId", "session_id"} {
		if _, ok := value[key]; ok {
			value[key] = newID
		}
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	uuidValue, _ := value["uuid"].(string)
	return out, messageID != "" && uuidValue == messageID, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
