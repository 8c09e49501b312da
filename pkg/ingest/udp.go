package ingest

import (
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"keywordgate/pkg/engine"
	"keywordgate/pkg/matcher"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// UDPIngestor listens for UDP packets and pushes logs to the buffer.
//
// With a prefilter engine, datagrams are read straight into the engine's
// scan buffer and matched there; only datagrams that pass are copied out.
// The engine must not be shared with other goroutines.
type UDPIngestor struct {
	addr      string
	buffer    *engine.RingBuffer
	prefilter *matcher.FilterEngine
	bypass    atomic.Bool
	logger    *slog.Logger
}

func NewUDPIngestor(addr string, buffer *engine.RingBuffer) *UDPIngestor {
	return &UDPIngestor{
		addr:   addr,
		buffer: buffer,
		logger: slog.Default().With("ingestor", "udp"),
	}
}

// WithPrefilter keeps only datagrams the engine matches.
func (u *UDPIngestor) WithPrefilter(e *matcher.FilterEngine) *UDPIngestor {
	u.prefilter = e
	return u
}

// DisablePrefilter lets every datagram through from now on. The scan buffer
// keeps serving as the read buffer.
func (u *UDPIngestor) DisablePrefilter() {
	if u.prefilter != nil && !u.bypass.Swap(true) {
		u.logger.Info("prefilter disabled")
	}
}

// Start begins listening on the UDP address. Blocking call.
func (u *UDPIngestor) Start() error {
	conn, err := net.ListenPacket("udp", u.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return u.Serve(conn)
}

// Serve reads datagrams from conn until it is closed.
func (u *UDPIngestor) Serve(conn net.PacketConn) error {
	u.logger.Info("listening", "addr", conn.LocalAddr().String(), "prefilter", u.prefilter != nil)

	buf, err := u.readBuffer()
	if err != nil {
		return err
	}

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			u.logger.Warn("read failed", "error", err)
			continue
		}

		if u.prefilter != nil && !u.bypass.Load() {
			ok, err := u.prefilter.CheckMatchBuffered(n)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		// buf is reused by the next read, so the ring gets its own copy.
		packet := make([]byte, n)
		copy(packet, buf[:n])

		// On buffer full, silently drop (tail drop strategy).
		_ = u.buffer.Push(packet)
	}
}

// readBuffer returns the region datagrams are read into: the prefilter's
// scan buffer when there is one, so matching needs no copy.
func (u *UDPIngestor) readBuffer() ([]byte, error) {
	if u.prefilter == nil {
		return make([]byte, maxDatagram), nil
	}
	if err := u.prefilter.EnsureBufferCapacity(maxDatagram); err != nil {
		return nil, err
	}
	// Capacity is fixed from here on, so this view stays valid.
	return u.prefilter.Buffer(), nil
}
