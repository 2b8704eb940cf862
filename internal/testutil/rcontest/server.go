// Package rcontest runs an in-process RCON server on loopback for tests.
package rcontest

import (
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/danmuck/rconctl/internal/protocol/frame"
)

// Handler answers one command. Each returned chunk is sent as its own response
// frame carrying the request id. ok=false sends nothing.
type Handler func(command string) (chunks []string, ok bool)

// Echo answers every command with its own text.
func Echo(command string) ([]string, bool) {
	return []string{command}, true
}

type Options struct {
	// Addr is the listen address; empty picks a free loopback port.
	Addr     string
	Password string
	Handler  Handler
	TLS      *tls.Config
}

type Server struct {
	t        testing.TB
	ln       net.Listener
	password string
	handler  Handler

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	accepted int
	logins   int
	commands []string
	wg       sync.WaitGroup
}

func Start(t testing.TB, opts Options) *Server {
	t.Helper()
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if opts.TLS != nil {
		ln = tls.NewListener(ln, opts.TLS)
	}
	handler := opts.Handler
	if handler == nil {
		handler = Echo
	}
	s := &Server{
		t:        t,
		ln:       ln,
		password: opts.Password,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Accepted is the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// DropConnections closes every live connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// SendUnsolicited writes a server-initiated frame (request id -1) to every
// live connection.
func (s *Server) SendUnsolicited(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = frame.WriteFrame(conn, frame.Response, payload, frame.InvalidRequestID)
	}
}

func (s *Server) Close() {
	_ = s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	authed := s.password == ""
	for {
		f, err := frame.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.t.Logf("rcontest: read: %v", err)
			}
			return
		}
		switch f.Type {
		case frame.Login:
			s.mu.Lock()
			s.logins++
			s.mu.Unlock()
			// Minecraft answers logins with a command-typed frame; -1 means rejected.
			id := f.RequestID
			if string(f.Payload) != s.password {
				id = frame.InvalidRequestID
			} else {
				authed = true
			}
			if err := frame.WriteFrame(conn, frame.Command, "", id); err != nil {
				return
			}
		case frame.Command:
			if !authed {
				if err := frame.WriteFrame(conn, frame.Response, "", frame.InvalidRequestID); err != nil {
					return
				}
				continue
			}
			cmd := string(f.Payload)
			s.mu.Lock()
			s.commands = append(s.commands, cmd)
			s.mu.Unlock()
			chunks, ok := s.handler(cmd)
			if !ok {
				continue
			}
			for _, chunk := range chunks {
				if err := frame.WriteFrame(conn, frame.Response, chunk, f.RequestID); err != nil {
					return
				}
			}
		}
	}
}
