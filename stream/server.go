// Package stream serves the annotated video and sign results over HTTP.
// Frames are pushed as an MJPEG stream viewable in a browser, results as a
// JSON snapshot and as websocket events sent for every processed frame.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/logging"
	"github.com/roadsight/signtrack/pipeline"
	"github.com/roadsight/signtrack/render"
	"github.com/roadsight/signtrack/store"
	"github.com/roadsight/signtrack/tracker"
)

const (
	// DefaultJPEGQuality is the quality frames are encoded at
	DefaultJPEGQuality = 80

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is the result summary published for each processed frame
type Event struct {
	Session    string             `json:"session"`
	Frame      int                `json:"frame"`
	Results    []string           `json:"results"`
	Progress   []string           `json:"progress"`
	Signs      []tracker.Snapshot `json:"signs"`
	Detections int                `json:"detections"`
	ElapsedMS  float64            `json:"elapsed_ms"`
	AverageMS  float64            `json:"average_ms"`
	Timestamp  int64              `json:"timestamp"`
}

// History supplies previously finalized signs for the /history endpoint
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
}

// Options are the parameters used to construct a Server
type Options struct {
	// Session identifies the run in events, a random UUID when empty
	Session string
	// Trail keeps sign movement history drawn on streamed frames, optional
	Trail *tracker.Trail
	// Budget is the processing time above which the status text is shown
	// in the warning color
	Budget time.Duration
	// Quality is the JPEG quality of streamed frames
	Quality int
	// History serves /history when set
	History History
	Logger  *slog.Logger
}

// Server is a pipeline Sink publishing processed frames to HTTP clients
type Server struct {
	session string
	trail   *tracker.Trail
	budget  time.Duration
	quality int
	history History
	log     *slog.Logger

	frames *Hub[[]byte]
	events *Hub[Event]

	mu     sync.RWMutex
	latest Event

	// annotated is only touched by the frame loop goroutine
	annotated gocv.Mat
	upgrader  websocket.Upgrader
}

// NewServer returns a new Server
func NewServer(opts Options) *Server {

	logger := opts.Logger

	if logger == nil {
		logger = logging.Discard()
	}

	session := opts.Session

	if session == "" {
		session = uuid.NewString()
	}

	quality := opts.Quality

	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	return &Server{
		session:   session,
		trail:     opts.Trail,
		budget:    opts.Budget,
		quality:   quality,
		history:   opts.History,
		log:       logger.With("component", "stream", "session", session),
		frames:    NewHub[[]byte](2),
		events:    NewHub[Event](16),
		latest:    Event{Session: session},
		annotated: gocv.NewMat(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Session returns the session ID sent in events
func (s *Server) Session() string {
	return s.session
}

// Render publishes the frame result to connected clients.  The frame is only
// annotated and encoded when an MJPEG client is connected.
func (s *Server) Render(res pipeline.FrameResult) error {

	if s.trail != nil {
		s.trail.Update(res.Active)
	}

	event := Event{
		Session:    s.session,
		Frame:      res.Index,
		Results:    res.Results,
		Progress:   res.Progress,
		Signs:      res.Active,
		Detections: len(res.Detections),
		ElapsedMS:  float64(res.Elapsed) / float64(time.Millisecond),
		AverageMS:  float64(res.Stats.Average) / float64(time.Millisecond),
		Timestamp:  time.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.latest = event
	s.mu.Unlock()

	s.events.Publish(event)

	if s.frames.Len() == 0 || res.Image.Empty() {
		return nil
	}

	res.Image.CopyTo(&s.annotated)
	render.Annotate(&s.annotated, res, s.trail, s.budget)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.annotated,
		[]int{gocv.IMWriteJpegQuality, s.quality})

	if err != nil {
		s.log.Warn("jpeg encode failed", "frame", res.Index, "error", err)
		return nil
	}

	// copy out of the native buffer so it can be released at once
	jpeg := bytes.Clone(buf.GetBytes())
	buf.Close()

	s.frames.Publish(jpeg)

	return nil
}

// Latest returns the most recent event
func (s *Server) Latest() Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Close disconnects all clients and frees the annotation buffer
func (s *Server) Close() error {
	s.frames.Close()
	s.events.Close()
	return s.annotated.Close()
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.Stream)
	mux.HandleFunc("/results", s.handleResults)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// ListenAndServe serves the routes on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)

	case <-ctx.Done():
		// streams never finish on their own so end them before shutdown
		s.frames.Close()
		s.events.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	}
}

// Stream is the HTTP handler function used to stream video frames to browser
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {

	s.log.Info("stream client connected", "remote", r.RemoteAddr)

	frames, cancel := s.frames.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)

	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.log.Info("stream client disconnected", "remote", r.RemoteAddr)
			return

		case buf, ok := <-frames:
			if !ok {
				return
			}

			// Write the image to the response writer
			_, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(buf))

			if err == nil {
				_, err = w.Write(buf)
			}

			if err == nil {
				_, err = w.Write([]byte("\r\n"))
			}

			if err != nil {
				s.log.Debug("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}

			// Flush the buffer
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, s.Latest())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {

	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}

	limit := 50

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}

		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)

	if err != nil {
		s.log.Warn("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}

	if entries == nil {
		entries = []store.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {

	conn, err := s.upgrader.Upgrade(w, r, nil)

	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	defer conn.Close()

	events, cancel := s.events.Subscribe()
	defer cancel()

	s.log.Info("websocket client connected", "remote", r.RemoteAddr)

	// reader ends when the client goes away
	done := make(chan struct{})

	go func() {
		defer close(done)

		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket read failed", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// send the current state before any frame events
	conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := conn.WriteJSON(s.Latest()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			s.log.Info("websocket client disconnected", "remote", r.RemoteAddr)
			return

		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
				return
			}

			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>signtrack</title></head>
<body style="background:#282828;color:#e6e6e6;font-family:sans-serif">
<img src="/stream" alt="stream">
<h3>Results</h3>
<ul id="results"></ul>
<p id="progress"></p>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (msg) => {
  const ev = JSON.parse(msg.data);
  const list = document.getElementById("results");
  list.innerHTML = "";
  (ev.results || []).forEach((r) => {
    const li = document.createElement("li");
    li.textContent = r;
    list.appendChild(li);
  });
  document.getElementById("progress").textContent =
    "Voting: " + (ev.progress || []).join(", ") + "  (" + ev.elapsed_ms.toFixed(0) + "ms)";
};
</script>
</body>
</html>
`
