package telemetry

import (
	"net"
	"net/http"
	"strconv"

	"github.com/frostml/frost/srcs/go/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the metrics of a gatherer on /metrics.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// StartServer listens on all interfaces at port, 0 picks a free port.
func StartServer(port int, g prometheus.Gatherer) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return Serve(ln, g), nil
}

func Serve(ln net.Listener, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	s := &Server{
		srv: &http.Server{Handler: mux},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("monitoring server stopped: %v", err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", ln.Addr())
	return s
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) Stop() error {
	return s.srv.Close()
}
