package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
)

var wsRegex = regexp.MustCompile(`\s`)

// Server implements the small TCP control API of the bridge.
//
// Request framing: `<path>[ SP <payload>] \x00`. Plain routes answer with one
// JSON line and close the connection; stream routes take the connection over.
type Server struct {
	addr   string
	ln     net.Listener
	logger *slog.Logger
	router *Router
	config ServerConfig

	ready chan struct{}
	wg    sync.WaitGroup
}

// New creates a new API server listening on addr once started.
func New(addr string, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		config: config,
		router: NewRouter(),
		ready:  make(chan struct{}),
	}
}

// Router returns the router used by the API server so callers can register handlers.
func (a *Server) Router() *Router { return a.router }

// Config returns the server configuration.
func (a *Server) Config() ServerConfig { return a.config }

// Addr returns the bound listen address, or the configured one before Start.
func (a *Server) Addr() string {
	if a.ln != nil {
		return a.ln.Addr().String()
	}
	return a.addr
}

// Ready is closed once the listener is bound.
func (a *Server) Ready() <-chan struct{} { return a.ready }

// Start listens on the configured address and serves incoming API commands.
func (a *Server) Start() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.ln = ln
	a.logger.Info("API listening", "addr", ln.Addr().String())
	close(a.ready)
	go a.serve()
	return nil
}

// Close stops accepting connections and waits for plain requests to finish.
// Stream connections are closed by their handlers.
func (a *Server) Close() {
	if a.ln != nil {
		_ = a.ln.Close()
	}
	a.wg.Wait()
}

func (a *Server) serve() {
	for {
		c, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.logger.Info("API server stopped")
				return
			}
			a.logger.Info("API accept error", "error", err)
			return
		}
		go a.handleConn(c)
	}
}

func (a *Server) writeError(w io.Writer, err error) {
	apiErr := WrapError(err)
	problemJSON, _ := json.Marshal(apiErr)
	fmt.Fprintf(w, "%s\n", string(problemJSON))
}

func (a *Server) writeOK(w io.Writer, rest string) {
	if rest == "" {
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "%s\n", rest)
	}
}

func (a *Server) handleConn(conn net.Conn) {
	connLogger := a.logger.With("remote", conn.RemoteAddr().String())

	if a.config.ConnectionTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(a.config.ConnectionTimeout))
	}
	r := bufio.NewReader(conn)

	// Read until null terminator
	reqData, err := r.ReadString('\x00')
	if err != nil {
		if err == io.EOF {
			connLogger.Error("api incomplete request (no null terminator)")
		} else {
			connLogger.Error("read api data", "error", err)
		}
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	reqData = strings.TrimSuffix(reqData, "\x00")

	path, payload := splitRequest(reqData)
	if path == "" {
		connLogger.Error("api empty path")
		a.writeError(conn, ErrBadRequest("empty request"))
		_ = conn.Close()
		return
	}
	path = strings.ToLower(path)

	if h, params := a.router.Match(path); h != nil {
		a.wg.Add(1)
		defer a.wg.Done()
		defer conn.Close()

		connLogger.Debug("api cmd", "path", path)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req := &Request{Ctx: ctx, Params: params, Payload: payload}
		res := &Response{}
		if err := h(req, res, connLogger); err != nil {
			connLogger.Error("api handler error", "path", path, "error", err)
			a.writeError(conn, err)
			return
		}
		a.writeOK(conn, res.JSON)
		return
	}

	if sh, params := a.router.MatchStream(path); sh != nil {
		connLogger.Info("api stream begin", "path", path)
		// Bytes already buffered past the terminator belong to the stream.
		sc := &bufferedConn{Conn: conn, r: r}
		if err := sh(sc, params, connLogger); err != nil {
			connLogger.Error("api stream handler error", "path", path, "error", err)
		}
		_ = conn.Close()
		connLogger.Info("api stream end", "path", path)
		return
	}

	connLogger.Error("api unknown path", "path", path)
	a.writeError(conn, ErrNotFound(fmt.Sprintf("unknown path: %s", path)))
	_ = conn.Close()
}

// splitRequest splits on the first whitespace character.
func splitRequest(reqData string) (path, payload string) {
	loc := wsRegex.FindStringIndex(reqData)
	if loc == nil {
		return reqData, ""
	}
	return reqData[:loc[0]], reqData[loc[1]:]
}

// bufferedConn reads through the request reader so no stream bytes are lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
