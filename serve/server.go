package serve

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"beecam/video/sink"
)

// Server bundles the HTTP endpoints of a running station.
type Server struct {
	Status   *StatusServer
	Events   *EventStream
	Preview  *sink.MJPEGServer
	Gatherer prometheus.Gatherer
}

// Handler returns the request-logged mux.
//
//	/status   current run counters (JSON)
//	/events   websocket, one message per written motion frame
//	/mjpeg    live preview of written frames, ?name=motion
//	/metrics  prometheus
//	/debug/pprof/
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.Status != nil {
		mux.Handle("/status", s.Status)
	}
	if s.Events != nil {
		mux.Handle("/events", s.Events)
	}
	if s.Preview != nil {
		mux.Handle("/mjpeg", s.Preview)
	}
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), mux)
}
