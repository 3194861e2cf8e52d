package rsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vortex-riscv/vxdbg/pkg/engine"
	"github.com/vortex-riscv/vxdbg/pkg/logflags"
)

// Config bounds the RSP server's behavior.
type Config struct {
	// Port is the TCP port ServeForever listens on.
	Port int
	// ContinueTimeout bounds how long a "c" (continue) command waits for
	// the selected warp to halt again. 0 waits indefinitely.
	ContinueTimeout time.Duration
	// AllowReconnect keeps the server listening for a new client after
	// one disconnects, mirroring original_source/src/gdbstub.cpp's
	// serve_forever(port, allow_reconnect) loop.
	AllowReconnect bool
}

// DefaultConfig returns reasonable defaults for interactive use.
func DefaultConfig() Config {
	return Config{Port: 3333, ContinueTimeout: 0, AllowReconnect: true}
}

// Server is the GDB RSP stub. It accepts exactly one client connection at
// a time (spec.md §5: "no multi-client arbitration") and drives
// pkg/engine in response to each command.
type Server struct {
	eng             *engine.Engine
	threads         *threadTable
	dispatch        *dispatcher
	continueTimeout time.Duration
	allowReconnect  bool
	port            int
	log             *logrus.Entry

	// threadInfoCursor tracks progress through a qfThreadInfo/qsThreadInfo
	// enumeration. Safe unguarded because only one client is ever served
	// at a time and commands are processed to completion serially.
	threadInfoCursor int
}

// NewServer builds an RSP server over an already-Initialize()'d engine, so
// the thread-id table can be built from the platform descriptor up front.
func NewServer(eng *engine.Engine, cfg Config) *Server {
	d := newDispatcher()
	registerCommands(d)
	return &Server{
		eng:             eng,
		threads:         newThreadTable(eng.Platform()),
		dispatch:        d,
		continueTimeout: cfg.ContinueTimeout,
		allowReconnect:  cfg.AllowReconnect,
		port:            cfg.Port,
		log:             logflags.RSPLogger(),
	}
}

// ServeForever listens on cfg.Port and serves GDB clients one at a time
// until listening fails or the caller's context-free loop is told to
// stop (AllowReconnect=false serves exactly one client then returns).
func (s *Server) ServeForever() error {
	return s.Serve(context.Background())
}

// Serve is ServeForever with a cancellation hook: closing ctx makes a
// blocked Accept return promptly so a caller coordinating shutdown via
// errgroup isn't left waiting for a GDB client that may never connect.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("rsp: listen on port %d: %w", s.port, err)
	}
	defer ln.Close()
	s.log.Infof("GDB RSP stub listening on port %d", s.port)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		s.log.Info("waiting for GDB connection...")
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("exiting GDB RSP stub: shutdown requested")
				return nil
			}
			return fmt.Errorf("rsp: accept: %w", err)
		}
		s.handleConn(conn)
		if !s.allowReconnect {
			s.log.Info("exiting GDB RSP stub")
			return nil
		}
		s.log.Info("GDB client disconnected, waiting for new connection...")
	}
}

// handleConn drives one client's command loop to completion: read a
// packet, ack it, dispatch it, send the reply. The session ends when reading
// from the client fails; an engine error, a debug-transport error included,
// is answered with an Exx reply and the session continues.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		cmd, err := recvPacket(r)
		if err != nil {
			if errors.Is(err, errInterrupt) {
				s.sendAck(conn)
				s.sendReply(conn, cmdHalted(s, ""))
				continue
			}
			s.log.Debugf("rsp: connection ended: %v", err)
			return
		}

		s.sendAck(conn)

		handler, ok := s.dispatch.lookup(cmd)
		if !ok {
			s.log.Warnf("unknown command %q, ignoring", cmd)
			s.sendReply(conn, "")
			continue
		}
		s.log.Debugf("cmd: %s", cmd)
		reply := handler(s, cmd)
		s.sendReply(conn, reply)
	}
}

func (s *Server) sendAck(conn net.Conn) {
	if _, err := conn.Write([]byte{'+'}); err != nil {
		s.log.Debugf("rsp: send ack: %v", err)
	}
}

func (s *Server) sendReply(conn net.Conn, payload string) {
	if _, err := conn.Write(packetize(payload)); err != nil {
		s.log.Debugf("rsp: send reply: %v", err)
	}
}
