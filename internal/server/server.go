// Package server pushes the device status table to every connected TCP viewer.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"shreddy/internal/config"
	"shreddy/internal/device"
	"shreddy/internal/logging"
)

const (
	defaultInterval = 5 * time.Second
	defaultHistory  = 10
	defaultTimeout  = 10 * time.Second

	// пауза между повторами Accept, как в net/http
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Lister is the read side of the device registry.
type Lister interface {
	Recent(n int) []device.Snapshot
}

// Server сервис статуса. Клиенту только пишем, входящие данные не читаются.
type Server struct {
	addr         string
	lister       Lister
	interval     time.Duration
	history      int
	writeTimeout time.Duration
	renderer     *Renderer
	logger       *logging.Logger

	wg sync.WaitGroup
}

// NewServer creates a status server from the server config section.
func NewServer(cfg *config.Config, lister Lister, logger *logging.Logger) *Server {
	s := &Server{
		addr:         cfg.Address(),
		lister:       lister,
		interval:     cfg.RefreshInterval(),
		history:      cfg.Server.History,
		writeTimeout: cfg.WriteTimeout(),
		renderer:     NewRenderer(),
		logger:       logger,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.history <= 0 {
		s.history = defaultHistory
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultTimeout
	}
	return s
}

// ListenAndServe слушает адрес из конфигурации до отмены ctx.
// Пустой адрес (порт 0) отключает сервис.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.addr == "" {
		s.logger.Log("INFO", "Status server disabled")
		<-ctx.Done()
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("не удалось открыть порт %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts viewers on ln until ctx is cancelled or Accept fails for
// good. Temporary accept errors are retried with backoff. On return ln is
// closed and every viewer goroutine has exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Log("INFO", "Status server listening", "addr", ln.Addr().String())

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		_ = ln.Close()
		s.wg.Wait()
	}()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if isTemporary(err) {
				delay = nextAcceptDelay(delay)
				s.logger.Log("WARN", "Accept failed, retrying", "error", err, "delay", delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				continue
			}
			s.logger.Log("ERROR", "Accept failed", "error", err)
			return fmt.Errorf("accept: %w", err)
		}
		delay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// isTemporary reports EMFILE, ECONNABORTED and similar transient accept failures.
func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	delay *= 2
	if delay > maxAcceptDelay {
		delay = maxAcceptDelay
	}
	return delay
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.logger.Log("DEBUG", "Viewer connected", "remote", remote)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		page := s.renderer.Page(s.lister.Recent(s.history))
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if _, err := io.WriteString(conn, page); err != nil {
			s.logger.Log("DEBUG", "Viewer disconnected", "remote", remote, "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
