package ingest

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"

	"keywordgate/pkg/engine"
)

// maxLineSize bounds a single TCP log line.
const maxLineSize = 1 << 20

// TCPIngestor listens for TCP connections and pushes logs to the buffer.
type TCPIngestor struct {
	addr   string
	buffer *engine.RingBuffer
	logger *slog.Logger
}

func NewTCPIngestor(addr string, buffer *engine.RingBuffer) *TCPIngestor {
	return &TCPIngestor{
		addr:   addr,
		buffer: buffer,
		logger: slog.Default().With("ingestor", "tcp"),
	}
}

// Start begins listening on the TCP address. Blocking call.
func (t *TCPIngestor) Start() error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	return t.Serve(listener)
}

// Serve accepts connections on l until it is closed.
func (t *TCPIngestor) Serve(l net.Listener) error {
	t.logger.Info("listening", "addr", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			t.logger.Warn("accept failed", "error", err)
			continue
		}
		go t.handleConnection(conn)
	}
}

func (t *TCPIngestor) handleConnection(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		// Scanner reuses its buffer; the ring keeps entries, so copy.
		line := append([]byte(nil), scanner.Bytes()...)
		// On buffer full, silently drop (tail drop strategy).
		_ = t.buffer.Push(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		t.logger.Debug("read failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}
