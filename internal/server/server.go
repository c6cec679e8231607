// Package server implements the TCP listener: an accept loop that
// spawns one connection task per client, grounded on
// steveyegge-beads/internal/rpc/server.go's listener lifecycle.
package server

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/handlers"
)

// Server accepts TCP connections and serves the Open Protocol wire
// dialect on each.
type Server struct {
	bindAddr string
	registry *handlers.Registry
	hctx     *handlers.Context
	sim      *faultsim.Simulator

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	stopOnce sync.Once

	readyChan chan struct{}
}

// New returns a Server bound to addr (host:port), dispatching through
// hctx/registry and wrapping outbound sends with sim.
func New(bindAddr string, registry *handlers.Registry, hctx *handlers.Context, sim *faultsim.Simulator) *Server {
	return &Server{
		bindAddr:  bindAddr,
		registry:  registry,
		hctx:      hctx,
		sim:       sim,
		readyChan: make(chan struct{}),
	}
}

// WaitReady returns a channel closed once the listener is accepting.
func (s *Server) WaitReady() <-chan struct{} { return s.readyChan }

// Start blocks, accepting connections until Stop is called. Each
// accepted connection runs in its own goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.bindAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.bindAddr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.readyChan)

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		go func(c net.Conn) {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "server: connection panic from %s: %v\n", c.RemoteAddr(), r)
				}
			}()
			serveConnection(c, s.registry, s.hctx, s.sim)
		}(conn)
	}
}

// Stop closes the listener, causing Start to return. Already-accepted
// connections are not closed by Stop; each keeps serving until its own
// read or write fails.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.shutdown = true
		listener := s.listener
		s.mu.Unlock()
		if listener != nil {
			err = listener.Close()
		}
	})
	return err
}
