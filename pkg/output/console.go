package output

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Output defines where the processed logs go.
type Output interface {
	WriteBatch(entries [][]byte) error
}

// ConsoleOutput writes one entry per line to a writer (stdout by default).
// Writes are buffered and flushed once per batch.
type ConsoleOutput struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewConsoleOutput() *ConsoleOutput {
	return NewWriterOutput(os.Stdout)
}

// NewWriterOutput writes batches to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: bufio.NewWriter(w)}
}

func (c *ConsoleOutput) WriteBatch(entries [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		if _, err := c.w.Write(entry); err != nil {
			return err
		}
		// Ingested lines usually keep their newline; datagrams do not.
		if len(entry) == 0 || entry[len(entry)-1] != '\n' {
			if err := c.w.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return c.w.Flush()
}
