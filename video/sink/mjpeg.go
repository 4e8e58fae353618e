package sink

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"beecam/video/source"
)

// MJPEG multi-streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: %d.%06d\r\n" +
	"\r\n"

// MJPEGServer serves named live previews over HTTP.
type MJPEGServer struct {
	m map[string]*MJPEGStream

	lock sync.Mutex
}

func NewMJPEGServer() *MJPEGServer {
	return &MJPEGServer{
		m: make(map[string]*MJPEGStream),
	}
}

func (s *MJPEGServer) NewStream(name string) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.m[name]; ok {
		log.Panicf("A stream for %v already exists", name)
	}

	ms := &MJPEGStream{
		name:   name,
		m:      make(map[chan []byte]bool),
		parent: s,
	}

	s.m[name] = ms
	return ms
}

func (s *MJPEGServer) getStream(name string) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.m[name]
}

// ServeHTTP implements http.Handler interface, serving MJPEG.
func (s *MJPEGServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := r.Form.Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	stream := s.getStream(name)
	if stream == nil {
		http.Error(w, "unknown stream", http.StatusNotFound)
		return
	}

	log.WithField("addr", r.RemoteAddr).Infof("MJPEG stream connected to %v", name)
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte, 1)
	stream.lock.Lock()
	stream.m[c] = true
	stream.lock.Unlock()

loop:
	for {
		select {
		case <-r.Context().Done():
			break loop
		case b := <-c:
			if _, err := w.Write(b); err != nil {
				break loop
			}
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	}

	stream.lock.Lock()
	delete(stream.m, c)
	stream.lock.Unlock()
	log.WithField("addr", r.RemoteAddr).Infof("MJPEG stream disconnected from %v", name)
}

// MJPEGStream is one named preview. Frames are only encoded while somebody is
// watching.
type MJPEGStream struct {
	name string
	m    map[chan []byte]bool

	parent *MJPEGServer
	lock   sync.Mutex
}

func (s *MJPEGStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m) == 0
}

// Listeners returns the number of connected clients.
func (s *MJPEGStream) Listeners() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m)
}

// MotionFrame publishes a written frame to connected clients.
func (s *MJPEGStream) MotionFrame(f source.Frame) {
	if s.empty() {
		// Nobody is listening; don't bother encoding.
		return
	}

	jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		log.Errorf("Error encoding to JPG for MJPEG stream %v: %v", s.name, err)
		return
	}
	defer jpeg.Close()

	header := fmt.Sprintf(headerf, jpeg.Len(), f.Time.Unix(), f.Time.Nanosecond()/1000)
	frame := make([]byte, len(header)+jpeg.Len())
	copy(frame, header)
	copy(frame[len(header):], jpeg.GetBytes())

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		select {
		case c <- frame:
		default:
			// Skip listeners not ready for next frame.
		}
	}
}

func (s *MJPEGStream) Close() {
	s.parent.lock.Lock()
	defer s.parent.lock.Unlock()
	delete(s.parent.m, s.name)
}
