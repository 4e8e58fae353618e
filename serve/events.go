package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"beecam/video/source"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// MotionEvent is pushed to websocket clients for each written frame.
type MotionEvent struct {
	Seq       uint64
	Timestamp int64 // Unix milliseconds of the frame's capture time.
	Time      string
}

// EventStream broadcasts motion events to websocket clients. It implements
// video.MotionListener.
type EventStream struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	notify   chan []byte

	seq uint64
}

func NewEventStream() *EventStream {
	m := &EventStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan []byte]bool),
		addc:   make(chan chan []byte),
		delc:   make(chan chan []byte),
		notify: make(chan []byte, 16),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case b := <-m.notify:
				for k := range m.cs {
					select {
					case k <- b:
					default:
						// Slow client; it misses this event.
					}
				}
			}
		}
	}()
	return m
}

// MotionFrame is called from the sink goroutine and never blocks it.
func (m *EventStream) MotionFrame(f source.Frame) {
	m.seq++
	b, err := json.Marshal(&MotionEvent{
		Seq:       m.seq,
		Timestamp: f.Time.UnixMilli(),
		Time:      f.Time.Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Errorf("Failed to encode motion event: %v", err)
		return
	}
	select {
	case m.notify <- b:
	default:
		log.Debugf("Motion event %d dropped, event stream busy", m.seq)
	}
}

func (m *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for event stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *EventStream) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to motion event socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from motion event socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan []byte, 16)
	m.addc <- notifyc
	defer func() { m.delc <- notifyc }()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	gone := make(chan bool)
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case b := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
