// Package service implements the compression service: the shared statistics
// state, the per-frame dispatch state machine, and the TCP server that runs
// one worker per accepted connection.
package service

import (
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/strydlabs/stryd/internal/observability"
	"github.com/strydlabs/stryd/internal/protocol"
)

// ErrClientDropped terminates a worker whose client keeps flooding the
// service with oversized frames.
var ErrClientDropped = errors.New("service: dropping client")

// Server owns the listening socket and the single shared State. Every
// accepted connection gets its own goroutine; all of them borrow the State
// under one mutex.
type Server struct {
	Addr string

	mu    sync.Mutex
	state *State

	// Copy of the state observable without the main lock; refreshed at the
	// end of every request cycle so the ops surface never waits behind a
	// worker blocked on a client read.
	snapMu sync.RWMutex
	snap   Snapshot

	connIndex int64 // accessed atomically

	log zerolog.Logger
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		Addr:  addr,
		state: NewState(),
		log:   logger,
	}
}

// Snapshot returns the most recent observable state.
func (srv *Server) Snapshot() Snapshot {
	srv.snapMu.RLock()
	defer srv.snapMu.RUnlock()
	return srv.snap
}

func (srv *Server) publishSnapshot() {
	snap := srv.state.Snapshot()
	srv.snapMu.Lock()
	srv.snap = snap
	srv.snapMu.Unlock()
}

func (srv *Server) getConnIndex() int64 {
	return atomic.AddInt64(&srv.connIndex, 1)
}

func (srv *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve runs the accept loop. Accept failures are logged and retried with a
// capped backoff; only a closed listener ends the loop. A misbehaving
// connection is never fatal for the server.
func (srv *Server) Serve(l net.Listener) error {
	srv.log.Info().Str("addr", l.Addr().String()).Msg("compression service listening")
	defer l.Close()

	var tempDelay time.Duration // how long to sleep on accept failure

	for {
		rw, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			srv.log.Warn().Err(err).Msg("accept failed")
			tempDelay = srv.sleep(tempDelay)
			continue
		}
		tempDelay = 0

		c := srv.newConn(rw)
		go c.serve()
	}
}

func (srv *Server) sleep(tempDelay time.Duration) time.Duration {
	if tempDelay == 0 {
		tempDelay = 5 * time.Millisecond
	} else {
		tempDelay *= 2
	}
	if max := 1 * time.Second; tempDelay > max {
		tempDelay = max
	}
	time.Sleep(tempDelay)
	return tempDelay
}

func (srv *Server) newConn(rwc net.Conn) *conn {
	name := "conn-" + strconv.FormatInt(srv.getConnIndex(), 10)
	return &conn{
		name: name,
		srv:  srv,
		rwc:  rwc,
		log:  srv.log.With().Str("conn", name).Logger(),
	}
}

// conn is one worker: a single accepted connection and its fixed rx/tx
// buffers.
type conn struct {
	name       string
	srv        *Server
	rwc        net.Conn
	remoteAddr string
	log        zerolog.Logger
}

func (c *conn) serve() {
	c.remoteAddr = c.rwc.RemoteAddr().String()
	observability.ConnOpened()

	defer func() {
		observability.ConnClosed()
		_ = c.rwc.Close()
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			c.log.Error().Str("remote", c.remoteAddr).Interface("panic", err).
				Msg("panic serving connection\n" + string(buf))
		}
	}()

	c.log.Debug().Str("remote", c.remoteAddr).Msg("connection accepted")

	rx := make([]byte, protocol.MaxMessagePadded)
	tx := make([]byte, protocol.MaxMessagePadded)

	for {
		// The lock is taken before the blocking read and held through the
		// write: one request cycle at a time touches the shared state, and
		// reads on other connections wait their turn. This reproduces the
		// reference serialization; see DESIGN.md before changing it.
		c.srv.mu.Lock()

		n, err := c.rwc.Read(rx)
		if err != nil && n == 0 {
			c.srv.mu.Unlock()
			if errors.Is(err, io.EOF) {
				c.log.Debug().Msg("connection closed by peer")
			} else {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		if n == 0 {
			// orderly close
			c.srv.mu.Unlock()
			return
		}

		start := time.Now()

		if n > protocol.MaxMessage {
			// Drain one extra read so the error response below re-aligns the
			// stream with frame boundaries. A second large read means the
			// client is flooding; drop it.
			drain := make([]byte, protocol.MaxMessagePadded)
			m, err := c.rwc.Read(drain)
			if err != nil && m == 0 {
				c.srv.mu.Unlock()
				c.log.Warn().Err(err).Msg("drain read failed")
				return
			}
			c.srv.state.UpdateRead(m)
			if m >= protocol.MaxMessage {
				c.srv.publishSnapshot()
				c.srv.mu.Unlock()
				c.log.Warn().Str("remote", c.remoteAddr).Err(ErrClientDropped).
					Msg("oversized flood, dropping connection")
				return
			}
		}
		c.srv.state.UpdateRead(n)

		// Parsing needs at least a header's worth of buffer even when fewer
		// bytes arrived; the validation step still sees the true read count.
		sz := n
		if sz < protocol.HeaderSize {
			sz = protocol.HeaderSize
		}

		connection, ok := NewConnection(rx[:sz], tx, n)
		if !ok {
			// unreachable: both buffers are MaxMessagePadded bytes
			c.srv.mu.Unlock()
			c.log.Error().Msg("buffer too small for header view")
			return
		}
		size, respCode := connection.CreateResponse(c.srv.state)

		if _, err := c.rwc.Write(tx[:size]); err != nil {
			c.srv.publishSnapshot()
			c.srv.mu.Unlock()
			c.log.Warn().Err(err).Msg("write failed")
			return
		}
		c.srv.state.UpdateSent(size)
		c.srv.publishSnapshot()
		c.srv.mu.Unlock()

		observability.RecordFrame(respCode.String(), n, size, time.Since(start))

		if respCode != protocol.Ok {
			c.log.Debug().Str("remote", c.remoteAddr).Stringer("code", respCode).
				Msg("request rejected")
		}
	}
}
