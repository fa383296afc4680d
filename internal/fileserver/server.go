// Package fileserver serves a single local file over HTTP so OpenNebula can
// fetch it during an upload.
//
// Each Serve call binds its own listener and exposes exactly one file at
// /<basename>. The returned handle must be closed by the caller; Close is
// safe to call more than once and from any goroutine.
//
// Error Handling:
//
// Failure to bind the port wraps image.ErrResourceUnavailable and is never
// retried.
//
// Context Support:
//
// The server shuts down when the context passed to Serve is cancelled,
// even if the caller never calls Close.
package fileserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jbweber/oneimage/internal/image"
	"github.com/jbweber/oneimage/internal/naming"
)

const (
	// DefaultPort is used when neither the image nor the config sets one.
	DefaultPort = 8066

	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Host is the address OpenNebula reaches this machine at.
	// Defaults to the hostname.
	Host string

	// BindAddr is the local address to listen on. Empty binds every interface.
	BindAddr string

	// Port is used when Serve is called with port 0. Defaults to DefaultPort.
	Port int

	Logger *slog.Logger
}

// Server starts per-upload HTTP servers. It satisfies image.FileServer.
type Server struct {
	host string
	bind string
	port int
	log  *slog.Logger
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	host := opts.Host
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine advertised host: %w", err)
		}
		host = h
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{host: host, bind: opts.BindAddr, port: port, log: log}, nil
}

func (s *Server) resolvePort(port int) (int, error) {
	if port == 0 {
		port = s.port
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d", port)
	}
	return port, nil
}

// URLFor returns the URL path would be served at on port.
func (s *Server) URLFor(path string, port int) (string, error) {
	p, err := s.resolvePort(port)
	if err != nil {
		return "", err
	}
	return naming.ServedURL(s.host, p, path), nil
}

// Serve starts serving path on port and returns once the listener is bound.
func (s *Server) Serve(ctx context.Context, path string, port int) (image.ServedFile, error) {
	p, err := s.resolvePort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", image.ErrResourceUnavailable, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	addr := net.JoinHostPort(s.bind, strconv.Itoa(p))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %v", image.ErrResourceUnavailable, addr, err)
	}

	f := &servedFile{
		url:  naming.ServedURL(s.host, p, path),
		done: make(chan struct{}),
		log:  s.log.With("path", path, "addr", ln.Addr().String()),
	}
	f.srv = &http.Server{
		Handler:           singleFile(path),
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		defer close(f.done)
		if err := f.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.log.Error("file_server_failed", "error", err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-f.done:
		}
	}()

	f.log.Debug("file_server_listening", "url", f.url)
	return f, nil
}

// singleFile serves path at /<basename> and nothing else.
func singleFile(path string) http.Handler {
	route := "/" + filepath.Base(path)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != route {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		http.ServeFile(w, r, path)
	})
}

type servedFile struct {
	url  string
	srv  *http.Server
	done chan struct{}
	log  *slog.Logger

	once     sync.Once
	closeErr error
}

func (f *servedFile) URL() string {
	return f.url
}

// Close shuts the server down and waits for it to stop. Only the first
// call does any work; later calls return the same error.
func (f *servedFile) Close() error {
	f.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := f.srv.Shutdown(ctx); err != nil {
			f.closeErr = fmt.Errorf("failed to stop file server: %w", err)
			_ = f.srv.Close()
		}
		<-f.done
		f.log.Debug("file_server_stopped")
	})
	return f.closeErr
}
