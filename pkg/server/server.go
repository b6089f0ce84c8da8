// Package server streams live plan evaluations to a viewer over a websocket.
//
// A client sends {"type":"evaluate","id":7,"source":"(wall ...)"} on /stream
// and receives {"type":"result","id":7,"result":{...}}. When several
// evaluate requests arrive while one is running, only the newest is
// evaluated next and stale results are never sent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chazu/wallforge/pkg/engine"
)

// Evaluator turns plan source into an encoded evaluation result.
type Evaluator interface {
	EvaluateJSON(ctx context.Context, source string) ([]byte, error)
}

// Message types.
const (
	TypeEvaluate = "evaluate"
	TypePing     = "ping"
	TypeResult   = "result"
	TypePong     = "pong"
	TypeError    = "error"
)

// Request is a client message.
type Request struct {
	Type   string `json:"type"`
	ID     uint64 `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

// Response is a server message.
type Response struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	OriginPatterns []string // allowed cross-origin hosts; nil allows same-origin only
	ReadLimit      int64    // largest accepted message in bytes
	WriteTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	return o
}

// Server serves /stream and /healthz.
type Server struct {
	eval   Evaluator
	opts   Options
	mux    *http.ServeMux
	evalMu sync.Mutex // one evaluation at a time across connections
}

// New returns a server evaluating with e.
func New(e Evaluator, opts Options) *Server {
	s := &Server{eval: e, opts: opts.withDefaults(), mux: http.NewServeMux()}
	s.mux.HandleFunc("/stream", s.handleStream)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- hs.ListenAndServe()
	}()
	s.opts.Logger.Info("preview server listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// job is one accepted evaluate request.
type job struct {
	seq    uint64
	id     uint64
	source string
}

// session is the state of one websocket connection.
type session struct {
	s       *Server
	conn    *websocket.Conn
	log     *slog.Logger
	latest  atomic.Uint64
	pending chan job
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		s.opts.Logger.Warn("websocket accept", slog.Any("err", err))
		return
	}
	conn.SetReadLimit(s.opts.ReadLimit)

	ss := &session{
		s:       s,
		conn:    conn,
		log:     s.opts.Logger.With(slog.String("remote", r.RemoteAddr)),
		pending: make(chan job, 1),
	}
	ss.log.Debug("stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ss.work(ctx)
	}()

	err = ss.read(ctx)
	cancel()
	wg.Wait()

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		ss.log.Debug("stream closed")
		_ = conn.Close(websocket.StatusNormalClosure, "")
	default:
		if !errors.Is(err, context.Canceled) {
			ss.log.Warn("stream read", slog.Any("err", err))
		}
		_ = conn.Close(websocket.StatusInternalError, "read failed")
	}
}

// read dispatches client messages until the connection fails.
func (ss *session) read(ctx context.Context) error {
	var seq uint64
	for {
		// wsjson.Read closes the connection on bad JSON; decode here instead.
		_, data, err := ss.conn.Read(ctx)
		if err != nil {
			return err
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			ss.reply(ctx, Response{Type: TypeError, Message: "malformed message: " + err.Error()})
			continue
		}

		switch req.Type {
		case TypeEvaluate:
			seq++
			ss.latest.Store(seq)
			ss.enqueue(job{seq: seq, id: req.ID, source: req.Source})
		case TypePing:
			ss.reply(ctx, Response{Type: TypePong, ID: req.ID})
		default:
			ss.reply(ctx, Response{Type: TypeError, ID: req.ID, Message: "unknown message type " + req.Type})
		}
	}
}

// enqueue replaces any request still waiting with j.
func (ss *session) enqueue(j job) {
	for {
		select {
		case ss.pending <- j:
			return
		default:
		}
		select {
		case old := <-ss.pending:
			ss.log.Debug("request superseded", slog.Uint64("id", old.id))
		default:
		}
	}
}

// work evaluates queued requests one at a time.
func (ss *session) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-ss.pending:
			ss.evaluate(ctx, j)
		}
	}
}

func (ss *session) evaluate(ctx context.Context, j job) {
	ss.s.evalMu.Lock()
	data, err := ss.s.eval.EvaluateJSON(ctx, j.source)
	ss.s.evalMu.Unlock()

	if errors.Is(err, engine.ErrSuperseded) || ss.latest.Load() != j.seq {
		ss.log.Debug("dropping stale result", slog.Uint64("id", j.id))
		return
	}
	if err != nil {
		ss.reply(ctx, Response{Type: TypeError, ID: j.id, Message: err.Error()})
		return
	}
	ss.reply(ctx, Response{Type: TypeResult, ID: j.id, Result: data})
}

func (ss *session) reply(ctx context.Context, resp Response) {
	ctx, cancel := context.WithTimeout(ctx, ss.s.opts.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ss.conn, resp); err != nil {
		ss.log.Debug("write failed", slog.String("type", resp.Type), slog.Any("err", err))
	}
}
