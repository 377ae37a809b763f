package claudecode

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// EncodeUserMessage returns the newline-terminated user message line.
func EncodeUserMessage(content any) ([]byte, error) {
	msg := UserMessage{
		Type:    MessageTypeUser,
		Message: UserMessageBody{Role: RoleUser, Content: content},
	}
	return encodeLine(msg)
}

// EncodeToolResult returns a user message line answering toolUseID.
func EncodeToolResult(toolUseID string, result any) ([]byte, error) {
	block := ToolResultBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: result}
	return EncodeUserMessage([]ToolResultBlock{block})
}

func encodeLine(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return append(data, '\n'), nil
}

// Writer serializes whole lines onto a process's stdin.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
	buf *bufio.Writer
}

// NewWriter wraps w with a buffered line writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{dst: w, buf: bufio.NewWriter(w)}
}

// WriteLine writes one encoded line and flushes it.
func (w *Writer) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	return w.buf.Flush()
}

// SendUserMessage writes a user message.
func (w *Writer) SendUserMessage(content any) error {
	line, err := EncodeUserMessage(content)
	if err != nil {
		return err
	}
	return w.WriteLine(line)
}

// SendToolResult writes a tool_result for toolUseID.
func (w *Writer) SendToolResult(toolUseID string, result any) error {
	line, err := EncodeToolResult(toolUseID, result)
	if err != nil {
		return err
	}
	return w.WriteLine(line)
}

// Flush writes out anything still buffered.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and closes the underlying writer when it is an io.Closer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	flushErr := w.buf.Flush()
	if c, ok := w.dst.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return flushErr
}
