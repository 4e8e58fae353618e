package serve

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"beecam/video"
)

// RunInfo describes the pipeline run currently in progress.
type RunInfo struct {
	ID        string
	Input     string
	Output    string
	StartedAt time.Time
}

type StatusResponse struct {
	ID        string
	Input     string
	Output    string
	StartedAt int64
	UptimeSec int64

	Grabbed         uint64
	Dropped         uint64
	Motion          uint64
	Written         uint64
	WriteFailures   uint64
	OverlayFailures uint64

	RawQueue    int
	MotionQueue int

	PreviewViewers int
}

// StatusServer reports the counters of the current run as JSON.
type StatusServer struct {
	// Viewers, if set, reports the number of connected preview clients.
	Viewers func() int

	info  RunInfo
	stats func() video.Stats
	l     sync.Mutex
}

// SetRun points the server at a new run. A nil stats func clears it.
func (s *StatusServer) SetRun(info RunInfo, stats func() video.Stats) {
	s.l.Lock()
	defer s.l.Unlock()
	s.info = info
	s.stats = stats
}

func (s *StatusServer) BuildResponse() *StatusResponse {
	s.l.Lock()
	info, stats := s.info, s.stats
	s.l.Unlock()
	if stats == nil {
		return nil
	}

	st := stats()
	resp := &StatusResponse{
		ID:              info.ID,
		Input:           info.Input,
		Output:          info.Output,
		StartedAt:       info.StartedAt.Unix(),
		UptimeSec:       int64(time.Since(info.StartedAt).Seconds()),
		Grabbed:         st.Grabbed,
		Dropped:         st.Dropped,
		Motion:          st.Motion,
		Written:         st.Written,
		WriteFailures:   st.WriteFailures,
		OverlayFailures: st.OverlayFailures,
		RawQueue:        st.RawQueue,
		MotionQueue:     st.MotionQueue,
	}
	if s.Viewers != nil {
		resp.PreviewViewers = s.Viewers()
	}
	return resp
}

func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := s.BuildResponse()
	if resp == nil {
		http.Error(w, "no pipeline running", http.StatusServiceUnavailable)
		return
	}
	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
