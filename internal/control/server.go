package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pitools/updaterd/internal/logging"
)

var log = logging.L("control")

// Daemon is the surface the control server drives. The daemon wires its
// checker, scheduler and launcher behind this.
type Daemon interface {
	// TriggerCheck starts a check now. started is false when a check is
	// already running or the network is down.
	TriggerCheck() (started bool, reason string)
	// Status reports the current update set and scheduler state.
	Status() StatusResponse
	// LaunchInstall spawns the privileged installer.
	LaunchInstall() error
}

// Server accepts control connections on a unix socket.
type Server struct {
	path     string
	daemon   Daemon
	listener net.Listener
	wg       sync.WaitGroup
	closed   chan struct{}
	once     sync.Once
}

func NewServer(socketPath string, daemon Daemon) *Server {
	return &Server{
		path:   socketPath,
		daemon: daemon,
		closed: make(chan struct{}),
	}
}

// Start binds the socket and begins accepting connections. A stale
// socket left by an unclean shutdown is removed first.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("control: create socket dir: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", s.path, err)
	}
	// Any desktop user may query status or trigger a check. Installs
	// still go through sudo.
	if err := os.Chmod(s.path, 0o666); err != nil {
		ln.Close()
		return fmt.Errorf("control: chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Info("control socket listening", "path", s.path)
	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop(ctx context.Context) error {
	s.once.Do(func() {
		close(s.closed)
		if s.listener != nil {
			s.listener.Close()
		}
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		os.Remove(s.path)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(raw net.Conn) {
	defer s.wg.Done()
	conn := NewConn(raw)
	defer conn.Close()

	for {
		conn.SetDeadline(time.Now().Add(30 * time.Second))
		env, err := conn.Recv()
		if err != nil {
			return
		}
		if err := s.dispatch(conn, env); err != nil {
			log.Warn("request failed", "type", env.Type, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(conn *Conn, env *Envelope) error {
	switch env.Type {
	case TypePing:
		return conn.SendTyped(env.ID, TypePong, struct{}{})

	case TypeCheck:
		started, reason := s.daemon.TriggerCheck()
		return conn.SendTyped(env.ID, TypeCheckResult, CheckResponse{
			Started: started,
			Reason:  reason,
		})

	case TypeStatus:
		return conn.SendTyped(env.ID, TypeStatusResult, s.daemon.Status())

	case TypeInstall:
		resp := InstallResponse{Launched: true}
		if err := s.daemon.LaunchInstall(); err != nil {
			resp.Launched = false
			resp.Reason = err.Error()
		}
		return conn.SendTyped(env.ID, TypeInstallResult, resp)

	default:
		return conn.SendError(env.ID, env.Type, fmt.Sprintf("unknown request type %q", env.Type))
	}
}
