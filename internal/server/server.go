// Package server accepts client connections over TCP and, optionally,
// WebSocket, and runs one session per connection against a shared router.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/life-stream-dev/life-stream-go-bus/internal/connection"
	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-bus/internal/router"
	"github.com/life-stream-dev/life-stream-go-bus/internal/session"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *config.Config
	router   *router.Router
	sessions *connection.Manager
	sem      chan struct{}
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, r *router.Router) *Server {
	return &Server{
		cfg:      cfg,
		router:   r,
		sessions: connection.NewManager(),
		sem:      make(chan struct{}, max(cfg.Server.MaxConnections, 1)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.Server.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.Server.WebSocket.WriteBufferSize,
		},
	}
}

// Sessions returns the registry of live sessions.
func (s *Server) Sessions() *connection.Manager {
	return s.sessions
}

// Run serves every configured listener until ctx is done or one of them
// fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.cfg.Server.Address, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ServeListener(ctx, ln)
	})

	if s.cfg.Server.WebSocket.Enabled {
		httpServer := &http.Server{
			Addr:              s.cfg.Server.WebSocket.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		}
		g.Go(func() error {
			logger.InfoF("HTTP server listen on %s", httpServer.Addr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if s.cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Report(ctx, s.cfg.Metrics.Interval.Std())
		})
	}

	err = g.Wait()
	s.sessions.CloseAll()
	return err
}

// ServeListener accepts connections from ln until ctx is done, then closes
// ln and waits for the sessions it started.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	logger.InfoF("Bus server listen on %s", ln.Addr().String())
	stop := context.AfterFunc(ctx, func() {
		if err := ln.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.ErrorF("Server close error: %v", err)
		}
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		logger.DebugF("Accepted new connection from %s", conn.RemoteAddr().String())

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() { <-s.sem }()
			s.serveConn(ctx, c.RemoteAddr().String(), c)
		}(conn)
	}
}

func (s *Server) serveConn(ctx context.Context, id string, conn io.ReadWriteCloser) {
	sess := session.New(id, s.router, s.cfg.Session)
	sess.OnClose(func(sess *session.Session) {
		s.sessions.Remove(sess.ID())
	})
	s.sessions.Add(sess)

	if err := sess.Serve(ctx, conn); err != nil {
		logger.WarnF("[%s] Session ended with error: %v", id, err)
	}
}
