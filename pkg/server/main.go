package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/downfa11-org/duraq/pkg/config"
	"github.com/downfa11-org/duraq/pkg/controller"
	"github.com/downfa11-org/duraq/pkg/metrics"
	"github.com/downfa11-org/duraq/pkg/protocol"
	"github.com/downfa11-org/duraq/pkg/queue"
	"github.com/downfa11-org/duraq/util"
)

// job is one storage-touching command, handed from a connection loop to
// the worker pool. reply is buffered so a worker never blocks on a
// connection that went away; the outcome is simply discarded then.
type job struct {
	cmd   protocol.Command
	reply chan controller.Outcome
}

// Server accepts client connections and drives one read/respond loop
// per connection. Parsing happens on the connection goroutine; queue
// work runs on a bounded worker pool so a slow disk operation never
// stalls the accept loop or an unrelated connection's reads.
type Server struct {
	cfg     *config.Config
	handler *controller.CommandHandler

	ln   net.Listener
	jobs chan job
	done chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	connWg   sync.WaitGroup
	workerWg sync.WaitGroup
	stopOnce sync.Once
}

func NewServer(cfg *config.Config, q *queue.Queue) *Server {
	return &Server{
		cfg:     cfg,
		handler: controller.NewCommandHandler(q),
		jobs:    make(chan job, cfg.JobQueueSize),
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Run listens on the configured address and serves until Stop is
// called. It returns after the listener is closed.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for i := 0; i < s.cfg.WorkerPoolSize; i++ {
		s.workerWg.Add(1)
		go s.worker()
	}

	util.Info("broker listening on %s (workers=%d)", ln.Addr(), s.cfg.WorkerPoolSize)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			util.Warn("accept error: %v", err)
			continue
		}

		if !s.track(conn) {
			continue
		}
		go func() {
			defer s.connWg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Addr returns the bound listener address, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop shuts the server down: stop accepting, terminate connection
// loops, then let in-flight worker jobs finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.ln != nil {
			if err := s.ln.Close(); err != nil {
				util.Error("close listener: %v", err)
			}
		}
		for conn := range s.conns {
			if err := conn.Close(); err != nil {
				util.Debug("close connection: %v", err)
			}
		}
		s.mu.Unlock()

		s.connWg.Wait()
		close(s.jobs)
		s.workerWg.Wait()
		util.Info("broker stopped")
	})
}

func (s *Server) worker() {
	defer s.workerWg.Done()
	for j := range s.jobs {
		j.reply <- s.handler.Handle(j.cmd)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	addr := conn.RemoteAddr()
	util.Debug("client connected: %s", addr)
	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	readTimeout := time.Duration(s.cfg.ConnReadTimeoutMS) * time.Millisecond
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				select {
				case <-s.done:
				default:
					util.Debug("read from %s failed: %v", addr, err)
				}
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			// Protocol errors never reach storage.
			if werr := s.writeResponse(conn, protocol.FormatError(err.Error())); werr != nil {
				return
			}
			continue
		}

		outcome, ok := s.dispatch(cmd)
		if !ok {
			return
		}
		if err := s.writeResponse(conn, outcome.Format()); err != nil {
			util.Debug("write to %s failed: %v", addr, err)
			return
		}
	}
}

// dispatch submits cmd to the worker pool and awaits its outcome. ok is
// false when the server is stopping; a job already submitted still runs
// to completion and its result is dropped.
func (s *Server) dispatch(cmd protocol.Command) (controller.Outcome, bool) {
	j := job{cmd: cmd, reply: make(chan controller.Outcome, 1)}

	select {
	case s.jobs <- j:
	case <-s.done:
		return controller.Outcome{}, false
	}

	select {
	case outcome := <-j.reply:
		return outcome, true
	case <-s.done:
		return controller.Outcome{}, false
	}
}

func (s *Server) writeResponse(conn net.Conn, response string) error {
	_, err := conn.Write([]byte(response))
	return err
}

// track registers a connection for shutdown. A connection that races
// with Stop is closed and refused.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		conn.Close()
		return false
	default:
	}

	s.connWg.Add(1)
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
