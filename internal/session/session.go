// Package session runs the per-connection protocol state machine.
//
// A session alternates between two parser states. In the command state it
// waits for a newline terminated line and dispatches it; after a valid
// "send <size> <channel>..." it switches to the payload state and waits for
// exactly size bytes, publishes them and switches back. Both states share
// one framing buffer, so a chunk may carry the tail of a command, a whole
// payload and the start of the next command.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/life-stream-dev/life-stream-go-bus/internal/connection"
	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-bus/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-bus/internal/router"
)

// Router is the part of router.Router a session drives.
type Router interface {
	Subscribe(names []string, s router.Subscriber)
	Unsubscribe(names []string, s router.Subscriber)
	Publish(sender router.Subscriber, names []string, data []byte) int
	RemoveSession(s router.Subscriber)
}

type parserMode int

const (
	awaitingCommand parserMode = iota
	awaitingPayload
)

// parserState is the command state when mode is awaitingCommand. In the
// payload state it carries the arguments of the send line being served.
type parserState struct {
	mode     parserMode
	size     int
	channels []string
}

type Session struct {
	id     string
	router Router
	cfg    config.SessionConfig

	// Owned by the goroutine calling Feed.
	framer *protocol.Framer
	state  parserState

	mu            sync.Mutex
	subscriptions map[string]struct{}
	listening     atomic.Bool

	send      chan []byte
	done      chan struct{}
	flush     atomic.Bool // write queued replies before closing
	closeOnce sync.Once
	onClose   func(*Session)
}

// New returns a session in the command state, not listening, with no
// subscriptions. id identifies the peer in logs and in the router.
func New(id string, r Router, cfg config.SessionConfig) *Session {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = config.DefaultSendQueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = config.DefaultReadBufferSize
	}
	return &Session{
		id:            id,
		router:        r,
		cfg:           cfg,
		framer:        protocol.NewFramer(cfg.MaxLineLength),
		subscriptions: make(map[string]struct{}),
		send:          make(chan []byte, cfg.SendQueueSize),
		done:          make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// OnClose registers fn to run once the session has left the router.
func (s *Session) OnClose(fn func(*Session)) {
	s.onClose = fn
}

// Subscriptions returns the channels the session holds in byte order.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.subscriptions))
	for name := range s.subscriptions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Session) Listening() bool {
	return s.listening.Load()
}

// Deliver queues a published payload for the peer. It never blocks: when the
// session is not listening, closed or its queue is full the payload is
// dropped.
func (s *Session) Deliver(data []byte) {
	if !s.listening.Load() {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- protocol.NewRecv(data):
	default:
		metrics.Incr(metrics.DroppedDeliveries, 1)
		logger.WarnF("[%s] Send queue full, dropping %d bytes", s.id, len(data))
	}
}

// Close stops the session. The transport is closed by the writer.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// Feed consumes one chunk of the inbound stream, handling every frame it
// completes. A malformed command is logged and dropped and the parser goes
// back to the command state. The returned error is fatal for the session.
func (s *Session) Feed(data []byte) error {
	s.framer.Write(data)
	for {
		frame, ok, err := s.framer.Next()
		if err != nil {
			s.framer.Reset()
			return fmt.Errorf("unable to read frame: %w", err)
		}
		if !ok {
			return nil
		}
		if err := s.handleFrame(frame); err != nil {
			metrics.Incr(metrics.MalformedCommands, 1)
			logger.WarnF("[%s] Dropping malformed command, details: %v", s.id, err)
			s.reset()
		}
	}
}

func (s *Session) handleFrame(frame []byte) error {
	if s.state.mode == awaitingPayload {
		return s.handlePayload(frame)
	}
	return s.handleCommand(frame)
}

func (s *Session) handleCommand(line []byte) error {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		return err
	}
	logger.DebugF("[%s] Receive %s command", s.id, cmd.Name)

	switch cmd.Verb {
	case protocol.Send:
		size, channels, err := protocol.ParseSend(cmd, s.cfg.MaxPayloadSize)
		if err != nil {
			return err
		}
		s.reply(protocol.NewAck(protocol.Send))
		s.state = parserState{mode: awaitingPayload, size: size, channels: channels}
		s.framer.ExpectBytes(size)
	case protocol.Sub:
		names := protocol.ChannelNames(cmd.Args)
		s.mu.Lock()
		for _, name := range names {
			s.subscriptions[name] = struct{}{}
		}
		s.mu.Unlock()
		s.router.Subscribe(names, s)
		s.reply(protocol.NewAck(protocol.Sub))
	case protocol.Unsub:
		names := protocol.ChannelNames(cmd.Args)
		s.mu.Lock()
		for _, name := range names {
			delete(s.subscriptions, name)
		}
		s.mu.Unlock()
		s.router.Unsubscribe(names, s)
		s.reply(protocol.NewAck(protocol.Unsub))
	case protocol.Ping:
		s.reply(protocol.NewPong())
	case protocol.Listen:
		s.listening.Store(true)
		s.reply(protocol.NewAck(protocol.Listen))
	case protocol.Unlisten:
		s.listening.Store(false)
		s.reply(protocol.NewAck(protocol.Unlisten))
	case protocol.Error:
		logger.WarnF("[%s] Client reported error: %s", s.id, strings.Join(cmd.Args, " "))
	default:
		metrics.Incr(metrics.InvalidCommands, 1)
		logger.WarnF("[%s] Invalid command %q", s.id, cmd.Name)
		s.reply(protocol.NewInvalidCommand(cmd.Name))
	}
	return nil
}

func (s *Session) handlePayload(payload []byte) error {
	n := s.router.Publish(s, s.state.channels, payload)
	logger.DebugF("[%s] Published %d bytes to %v, %d deliveries", s.id, len(payload), s.state.channels, n)
	s.reply(protocol.NewAck(protocol.Send))
	s.reset()
	return nil
}

// reset returns to the command state. Bytes already buffered are kept and
// read as the next command line.
func (s *Session) reset() {
	s.state = parserState{}
	s.framer.ExpectLine()
}

// reply queues a frame answering the peer, waiting for room in the queue.
func (s *Session) reply(frame []byte) {
	select {
	case s.send <- frame:
	case <-s.done:
	}
}

// Serve runs the session over conn until the peer disconnects, a fatal
// error occurs, ctx is done or Close is called. The session then leaves the
// router in whatever state it was in, and conn is closed.
func (s *Session) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(conn)
	}()

	err := s.readLoop(conn)
	_ = s.Close()
	wg.Wait()

	s.router.RemoveSession(s)
	if s.onClose != nil {
		s.onClose(s)
	}
	logger.DebugF("[%s] Session closed", s.id)
	return err
}

func (s *Session) readLoop(conn io.Reader) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			metrics.Mark(metrics.BytesReceived, int64(n))
			if ferr := s.Feed(buf[:n]); ferr != nil {
				logger.ErrorF("[%s] Closing connection, details: %v", s.id, ferr)
				return ferr
			}
		}
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			connection.HandleReadError(s.id, err)
			if errors.Is(err, io.EOF) {
				s.flush.Store(true)
				return nil
			}
			if connection.IsNetClosedError(err) {
				return nil
			}
			return err
		}
	}
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

func (s *Session) writeLoop(conn io.WriteCloser) {
	defer func() {
		if err := conn.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", s.id, err)
		}
	}()

	deadliner, _ := conn.(writeDeadliner)
	timeout := s.cfg.WriteTimeout.Std()

	write := func(frame []byte) bool {
		if deadliner != nil && timeout > 0 {
			_ = deadliner.SetWriteDeadline(time.Now().Add(timeout))
		}
		if err := connection.Send(conn, frame, s.id); err != nil {
			_ = s.Close()
			return false
		}
		return true
	}

	for {
		select {
		case <-s.done:
			if s.flush.Load() {
				s.drain(write)
			}
			return
		case frame := <-s.send:
			if !write(frame) {
				return
			}
		}
	}
}

// drain writes whatever is still queued, stopping at the first failure.
func (s *Session) drain(write func([]byte) bool) {
	for {
		select {
		case frame := <-s.send:
			if !write(frame) {
				return
			}
		default:
			return
		}
	}
}
