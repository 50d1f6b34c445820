package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = time.Second

type Option func(*Server) error

func H1Address(address string) Option {
	return func(s *Server) error {
		s.h1Addr = address
		return nil
	}
}

// H3Address enables HTTP/3 on address. It requires a certificate.
func H3Address(address string) Option {
	return func(s *Server) error {
		s.h3Addr = address
		return nil
	}
}

func Handle(handler http.Handler) Option {
	return func(s *Server) error {
		s.handler = handler
		return nil
	}
}

func Logger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

func RequestLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.requestLogger = logger
		return nil
	}
}

func Certificate(cert tls.Certificate) Option {
	return func(s *Server) error {
		s.tlsConfig.Certificates = []tls.Certificate{cert}
		return nil
	}
}

func CertificateFile(file string) Option {
	return func(s *Server) error {
		s.certFile = file
		return nil
	}
}

func CertificateKeyFile(file string) Option {
	return func(s *Server) error {
		s.keyFile = file
		return nil
	}
}

// Server serves a handler over cleartext HTTP/1.1 and, if configured, over
// HTTP/3. HTTP/1.1 responses advertise the HTTP/3 endpoint in Alt-Svc.
type Server struct {
	certFile string
	keyFile  string
	h1Addr   string
	h3Addr   string

	logger        *slog.Logger
	requestLogger *slog.Logger

	handler http.Handler

	tlsConfig *tls.Config
	h1        *http.Server
	h3        *http3.Server

	h1Listener net.Listener
	h3Conn     net.PacketConn
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		h1Addr:        "127.0.0.1:8080",
		logger:        slog.Default(),
		requestLogger: nil,
		handler:       http.DefaultServeMux,
		tlsConfig:     &tls.Config{NextProtos: []string{http3.NextProtoH3}},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.h3Addr != "" && s.tlsConfig.Certificates == nil {
		if s.certFile == "" || s.keyFile == "" {
			return nil, errors.New("HTTP/3 requires a TLS certificate and key")
		}
		cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read TLS certificate or key: %w", err)
		}
		s.tlsConfig.Certificates = []tls.Certificate{cert}
	}

	handler := s.handler
	if s.requestLogger != nil {
		handler = s.logRequest(handler)
	}
	s.h1 = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.h3Addr != "" {
		s.h1.Handler = s.setAltSvcHeader(handler)
		s.h3 = &http3.Server{
			Handler:    handler,
			TLSConfig:  s.tlsConfig,
			QUICConfig: &quic.Config{},
		}
	}
	return s, nil
}

// Listen binds the configured addresses. After Listen, Addr and H3Addr
// report the bound addresses, which differ from the configured ones when
// port 0 was used.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.h1Addr)
	if err != nil {
		return err
	}
	s.h1Listener = ln
	if s.h3 == nil {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.h3Addr)
	if err != nil {
		ln.Close()
		return err
	}
	s.h3Conn = conn
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.h1Listener == nil {
		return nil
	}
	return s.h1Listener.Addr()
}

func (s *Server) H3Addr() net.Addr {
	if s.h3Conn == nil {
		return nil
	}
	return s.h3Conn.LocalAddr()
}

// Serve serves on the bound addresses until ctx is done or one of the
// servers fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.h1Listener == nil {
		return errors.New("server is not listening")
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Info("serving HTTP/1.1", "address", s.h1Listener.Addr())
		return ignoreClosed(s.h1.Serve(s.h1Listener))
	})
	if s.h3 != nil {
		eg.Go(func() error {
			s.logger.Info("serving HTTP/3", "address", s.h3Conn.LocalAddr())
			return ignoreClosed(s.h3.Serve(s.h3Conn))
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := ignoreClosed(s.h1.Shutdown(shutdownCtx))
		if s.h3 != nil {
			err = errors.Join(err, ignoreClosed(s.h3.Shutdown(shutdownCtx)), ignoreClosed(s.h3Conn.Close()))
		}
		return err
	})
	return eg.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, quic.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Middleware

func (s *Server) setAltSvcHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor < 3 && s.h3Conn != nil {
			if addr, ok := s.h3Conn.LocalAddr().(*net.UDPAddr); ok {
				w.Header().Set("Alt-Svc", fmt.Sprintf(`%s=":%d"; ma=2592000`, http3.NextProtoH3, addr.Port))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.requestLogger.Info("handled request", "method", r.Method, "path", r.URL.Path, "proto", r.Proto, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
