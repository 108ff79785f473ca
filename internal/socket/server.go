package socket

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"poolstats/internal/domain"
	"poolstats/internal/kstat"
)

// Engine is what the transport needs from the stats host. Record has no
// error return: recording is diagnostic-only and must never fail the
// caller.
type Engine interface {
	Record(ctx context.Context, pool string, ev domain.ReadEvent, task domain.Task)
	ReadSource(ctx context.Context, name string, w io.Writer) (kstat.Stat, error)
	ClearSource(ctx context.Context, name string) (kstat.Stat, error)
	Sources(ctx context.Context) []string
	ClosePool(ctx context.Context, name string) bool
	Health(ctx context.Context) (bool, string)
}

type Config struct {
	Network        string
	Address        string
	UnixSocketPath string
	AuthToken      string
	MaxInflight    int
	QueueLimit     int
	Workers        int
	TLSConfig      *tls.Config
}

type Server struct {
	cfg    Config
	engine Engine
	log    zerolog.Logger
	ln     net.Listener
	addr   atomic.Value
	workQ  chan queuedRequest
	quit   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

type queuedRequest struct {
	ctx     context.Context
	req     *SocketRequest
	conn    *connection
	release func()
}

type connection struct {
	c        net.Conn
	writerQ  chan *SocketResponse
	inflight chan struct{}
	mu       sync.Mutex
	closed   bool
}

// close marks the connection dead and releases the write loop. Responses
// still in flight from a worker are dropped by send; closing the channel
// without the flag would let such a late send panic.
func (c *connection) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.writerQ)
}

func NewServer(cfg Config, engine Engine, log zerolog.Logger) *Server {
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 64
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Server{
		cfg:    cfg,
		engine: engine,
		log:    log,
		workQ:  make(chan queuedRequest, cfg.QueueLimit),
		quit:   make(chan struct{}),
	}
}

func (s *Server) Addr() string {
	if v := s.addr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Address
	if s.cfg.Network == "unix" {
		addr = s.cfg.UnixSocketPath
	}
	ln, err := net.Listen(s.cfg.Network, addr)
	if err != nil {
		return err
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}
	s.ln = ln
	s.addr.Store(ln.Addr().String())
	s.log.Info().Str("network", s.cfg.Network).Str("addr", ln.Addr().String()).Msg("stats socket listening")

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.runWorker()
	}
	go func() { <-ctx.Done(); _ = s.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		s.handleConn(ctx, conn)
	}
}

func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	close(s.quit)
	s.wg.Wait()
	return nil
}

func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	conn := &connection{
		c:        raw,
		writerQ:  make(chan *SocketResponse, 256),
		inflight: make(chan struct{}, s.cfg.MaxInflight),
	}
	s.wg.Add(2)
	go func() { defer s.wg.Done(); s.writeLoop(conn) }()
	go func() { defer s.wg.Done(); defer raw.Close(); defer conn.close(); s.readLoop(ctx, conn) }()
}

func (s *Server) writeLoop(conn *connection) {
	w := bufio.NewWriter(conn.c)
	for res := range conn.writerQ {
		payload, err := MarshalMessage(res)
		if err != nil {
			continue
		}
		if err := WriteFrame(w, payload); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *connection) {
	r := bufio.NewReader(conn.c)
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			return
		}
		req, err := UnmarshalRequest(payload)
		if err != nil {
			s.send(conn, &SocketResponse{ErrorCode: int32(ErrorCodeBadRequest), ErrorMessage: err.Error()})
			continue
		}
		if err := ValidateRequest(req); err != nil {
			s.send(conn, errRes(req, ErrorCodeBadRequest, err.Error()))
			continue
		}
		if s.cfg.AuthToken != "" && req.AuthToken != s.cfg.AuthToken {
			s.send(conn, errRes(req, ErrorCodeUnauthenticated, "invalid auth token"))
			continue
		}

		select {
		case conn.inflight <- struct{}{}:
		default:
			s.send(conn, errRes(req, ErrorCodeOverloaded, "connection inflight limit exceeded"))
			continue
		}
		qr := queuedRequest{ctx: ctx, req: req, conn: conn, release: func() { <-conn.inflight }}
		select {
		case s.workQ <- qr:
		default:
			qr.release()
			s.send(conn, errRes(req, ErrorCodeOverloaded, "server queue overloaded"))
		}
	}
}

func (s *Server) runWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case qr := <-s.workQ:
			res := s.handleRequest(qr.ctx, qr.req)
			qr.release()
			s.send(qr.conn, res)
		}
	}
}

func (s *Server) send(conn *connection, res *SocketResponse) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return
	}
	select {
	case conn.writerQ <- res:
	default:
	}
}

func errRes(req *SocketRequest, code ErrorCode, msg string) *SocketResponse {
	return &SocketResponse{RequestId: req.RequestId, ErrorCode: int32(code), ErrorMessage: msg}
}

func (s *Server) handleRequest(ctx context.Context, req *SocketRequest) *SocketResponse {
	res := &SocketResponse{RequestId: req.RequestId, ErrorCode: int32(ErrorCodeOK)}
	switch Operation(req.Operation) {
	case OperationPing:
		res.Pong = &PongResponse{UnixTimeNs: time.Now().UTC().UnixNano()}
	case OperationHealth:
		ok, msg := s.engine.Health(ctx)
		res.Health = &HealthResponse{Ok: ok, Message: msg}
	case OperationRecord:
		if req.Record == nil || req.Record.Read == nil || req.Record.Read.Pool == "" {
			return errRes(req, ErrorCodeBadRequest, "record read with pool required")
		}
		s.record(ctx, req.Record.Read)
		res.Record = &RecordResponse{Accepted: true, Recorded: 1}
	case OperationRecordBatch:
		if req.RecordBatch == nil || len(req.RecordBatch.Reads) == 0 {
			return errRes(req, ErrorCodeBadRequest, "record_batch reads required")
		}
		var n uint32
		for _, rd := range req.RecordBatch.Reads {
			if rd == nil || rd.Pool == "" {
				continue
			}
			s.record(ctx, rd)
			n++
		}
		res.Record = &RecordResponse{Accepted: true, Recorded: n}
	case OperationReadStats:
		if req.ReadStats == nil || req.ReadStats.Source == "" {
			return errRes(req, ErrorCodeBadRequest, "read_stats source required")
		}
		var buf bytes.Buffer
		st, err := s.engine.ReadSource(ctx, req.ReadStats.Source, &buf)
		if err != nil {
			return errRes(req, ErrorCodeNotFound, err.Error())
		}
		res.Stats = &StatsResponse{Found: true, Rows: st.Rows, SizeBytes: st.Bytes, Text: buf.Bytes()}
	case OperationClearStats:
		if req.ClearStats == nil || req.ClearStats.Source == "" {
			return errRes(req, ErrorCodeBadRequest, "clear_stats source required")
		}
		st, err := s.engine.ClearSource(ctx, req.ClearStats.Source)
		if err != nil {
			return errRes(req, ErrorCodeNotFound, err.Error())
		}
		res.Stats = &StatsResponse{Found: true, Rows: st.Rows, SizeBytes: st.Bytes}
	case OperationListSources:
		res.Sources = &SourcesResponse{Names: s.engine.Sources(ctx)}
	case OperationClosePool:
		if req.ClosePool == nil || req.ClosePool.Pool == "" {
			return errRes(req, ErrorCodeBadRequest, "close_pool pool required")
		}
		res.Closed = &ClosePoolResponse{Found: s.engine.ClosePool(ctx, req.ClosePool.Pool)}
	default:
		return errRes(req, ErrorCodeBadRequest, "unknown operation")
	}
	return res
}

func (s *Server) record(ctx context.Context, rd *Read) {
	ev := domain.ReadEvent{
		Objset: rd.Objset,
		Object: rd.Object,
		Level:  rd.Level,
		Blkid:  rd.Blkid,
		Origin: rd.Origin,
		Flags:  rd.Aflags,
	}
	s.engine.Record(ctx, rd.Pool, ev, domain.Task{PID: int(rd.Pid), Comm: rd.Comm})
}

// DialAndRequest performs one request/response exchange over a fresh
// connection. Callers that need pipelining keep their own connection.
func DialAndRequest(ctx context.Context, network, address string, req *SocketRequest) (*SocketResponse, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	payload, err := MarshalMessage(req)
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, payload); err != nil {
		return nil, err
	}
	frame, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(frame)
}
