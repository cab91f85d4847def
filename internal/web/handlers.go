package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/logic/burst"
	"github.com/cjeanneret/CamGo/internal/logic/coordinator"
	"github.com/cjeanneret/CamGo/internal/logic/geometry"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/session"
)

const (
	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20
	// captureTimeout bounds how long POST /capture waits for the photo.
	captureTimeout = 30 * time.Second
	// previewWriteWait bounds one websocket frame write.
	previewWriteWait = 2 * time.Second
	// maxTimerDelay bounds POST /timer.
	maxTimerDelay = time.Minute
)

// Controller is what the handlers drive. *coordinator.Coordinator
// implements it.
type Controller interface {
	Status() coordinator.Status
	SetField(name, value string) error
	ApplyScene(name string) bool
	Reset()
	SetViewport(view geometry.Size)
	TapToFocus(x, y float64) (params.Point, error)
	BeginPinch()
	Pinch(scale float64) (float64, error)
	EndPinch()
	CycleFlash() (params.FlashMode, error)
	ViewAppeared() error
	ViewDisappeared() error
	Shutter(ctx context.Context) (session.Result, error)
	Burst(ctx context.Context, p burst.Params) ([]session.Result, error)
	Timer(ctx context.Context, delay time.Duration) (session.Result, error)
}

// FrameSource delivers encoded preview frames. *session.Preview
// implements it.
type FrameSource interface {
	Subscribe() (<-chan []byte, func())
}

// FieldRequest is the body of POST /config.
type FieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SceneRequest is the body of POST /scene.
type SceneRequest struct {
	Name string `json:"name"`
}

// FocusRequest is the body of POST /focus. With a view size the point is
// in view coordinates; without one it is already normalized.
type FocusRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ViewWidth  float64 `json:"view_width,omitempty"`
	ViewHeight float64 `json:"view_height,omitempty"`
}

// ZoomRequest is the body of POST /zoom: one pinch gesture phase.
type ZoomRequest struct {
	Phase string  `json:"phase"` // "begin", "change" or "end"
	Scale float64 `json:"scale"`
}

// BurstRequest is the body of POST /burst.
type BurstRequest struct {
	Count      int `json:"count"`
	IntervalMs int `json:"interval_ms"`
}

// TimerRequest is the body of POST /timer.
type TimerRequest struct {
	DelaySeconds float64 `json:"delay_s"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Camera      Controller
	Preview     FrameSource

	upgrader websocket.Upgrader

	runningMu sync.Mutex
	running   bool
	runCtx    context.Context
}

// NewHandlers creates handlers with the given dependencies. ctx bounds
// background sequences started by POST /burst and POST /timer. If camera
// is nil, control endpoints return 503 Service Unavailable.
func NewHandlers(ctx context.Context, broadcaster *StatusBroadcaster, camera Controller, preview FrameSource) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Camera:      camera,
		Preview:     preview,
		runCtx:      ctx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStatus returns the session state and current parameters as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.Camera.Status())
}

// HandleConfig returns the current parameter set as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.Camera.Status().Params)
}

// HandleSetField handles POST /config: one field write in text form.
func (h *Handlers) HandleSetField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Camera.SetField(req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Camera.Status().Params)
}

// HandleScene handles POST /scene. Unknown names reset to defaults and
// report applied=false.
func (h *Handlers) HandleScene(w http.ResponseWriter, r *http.Request) {
	var req SceneRequest
	if !h.decode(w, r, &req) {
		return
	}
	applied := h.Camera.ApplyScene(req.Name)
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "params": h.Camera.Status().Params})
}

// HandleReset handles POST /reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.Camera.Reset()
	writeJSON(w, http.StatusOK, h.Camera.Status().Params)
}

// HandleFocus handles POST /focus (tap to focus).
func (h *Handlers) HandleFocus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !finite(req.X, req.Y, req.ViewWidth, req.ViewHeight) {
		http.Error(w, "coordinates must be finite numbers", http.StatusBadRequest)
		return
	}
	if req.ViewWidth > 0 && req.ViewHeight > 0 {
		h.Camera.SetViewport(geometry.Size{Width: req.ViewWidth, Height: req.ViewHeight})
	}
	pt, err := h.Camera.TapToFocus(req.X, req.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

// HandleZoom handles POST /zoom: pinch gesture phases.
func (h *Handlers) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !h.decode(w, r, &req) {
		return
	}
	switch req.Phase {
	case "begin":
		h.Camera.BeginPinch()
	case "end":
		h.Camera.EndPinch()
	case "change", "":
		if !finite(req.Scale) || req.Scale <= 0 {
			http.Error(w, "scale must be a positive number", http.StatusBadRequest)
			return
		}
		z, err := h.Camera.Pinch(req.Scale)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"zoom_factor": z})
		return
	default:
		http.Error(w, fmt.Sprintf("unknown phase %q", req.Phase), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFlash handles POST /flash: cycles auto -> on -> off.
func (h *Handlers) HandleFlash(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	mode, err := h.Camera.CycleFlash()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]params.FlashMode{"flash_mode": mode})
}

// HandleStart handles POST /session/start. Start is asynchronous; the
// resulting state arrives on the status stream.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Camera.ViewAppeared(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
}

// HandleStop handles POST /session/stop.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Camera.ViewDisappeared(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// HandleCapture handles POST /capture: takes one photo and returns it as
// image/jpeg.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), captureTimeout)
	defer cancel()

	res, err := h.Camera.Shutter(ctx)
	if err != nil {
		http.Error(w, "capture: "+err.Error(), http.StatusGatewayTimeout)
		return
	}
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Capture-ID", res.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Photo)
}

// HandleBurst handles POST /burst. The burst runs in the background;
// photos and errors arrive on the status stream.
func (h *Handlers) HandleBurst(w http.ResponseWriter, r *http.Request) {
	var req BurstRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := burst.Params{Count: req.Count, Interval: time.Duration(req.IntervalMs) * time.Millisecond}
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.runBackground(w, "Burst", func(ctx context.Context) (int, int, error) {
		results, err := h.Camera.Burst(ctx, p)
		return countOK(results), len(results), err
	})
}

// HandleTimer handles POST /timer: a delayed single capture.
func (h *Handlers) HandleTimer(w http.ResponseWriter, r *http.Request) {
	var req TimerRequest
	if !h.decode(w, r, &req) {
		return
	}
	delay := time.Duration(req.DelaySeconds * float64(time.Second))
	if !finite(req.DelaySeconds) || delay <= 0 || delay > maxTimerDelay {
		http.Error(w, fmt.Sprintf("delay_s must be between 0 and %v", maxTimerDelay.Seconds()), http.StatusBadRequest)
		return
	}
	h.runBackground(w, "Timer", func(ctx context.Context) (int, int, error) {
		res, err := h.Camera.Timer(ctx, delay)
		if err != nil {
			return 0, 0, err
		}
		return countOK([]session.Result{res}), 1, nil
	})
}

// runBackground runs one sequence at a time and reports its outcome on
// the status stream.
func (h *Handlers) runBackground(w http.ResponseWriter, name string, run func(ctx context.Context) (ok, total int, err error)) {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "capture sequence already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	ctx := h.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ok, total, err := run(ctx)
		if err != nil {
			h.Broadcaster.Broadcast("error", name+" failed: "+err.Error())
			log.Printf("%s failed: %v", name, err)
			return
		}
		h.Broadcaster.Broadcast("info", fmt.Sprintf("%s complete: %d/%d photos", name, ok, total))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandlePreview handles GET /preview: upgrades to a websocket and streams
// each preview frame as one binary JPEG message.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if h.Preview == nil {
		http.Error(w, "preview not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("preview: websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	frames, unsub := h.Preview.Subscribe()
	defer unsub()

	// The client sends nothing; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "preview closed"),
					time.Now().Add(previewWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// ready reports whether a controller is wired, answering 503 if not.
func (h *Handlers) ready(w http.ResponseWriter) bool {
	if h.Camera == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// decode reads a bounded JSON body into v.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !h.ready(w) {
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error's kind to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := camerr.KindOf(err)
	switch kind {
	case camerr.KindValidation:
		status = http.StatusBadRequest
	case camerr.KindCaptureUnavailable:
		status = http.StatusConflict
	case camerr.KindLifecycle, camerr.KindDeviceUnavailable:
		status = http.StatusServiceUnavailable
	}
	resp := errorResponse{Error: err.Error()}
	var ce *camerr.Error
	if errors.As(err, &ce) {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func countOK(results []session.Result) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}
