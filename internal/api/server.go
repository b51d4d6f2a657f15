package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/muurk/easycontrols/internal/logging"
	"github.com/muurk/easycontrols/internal/protocol"
	"github.com/muurk/easycontrols/internal/version"
	"go.uber.org/zap"
)

// Device is the part of kwl.Client served over HTTP
type Device interface {
	Host() string
	Refresh(ctx context.Context) error
	State() (snap protocol.Snapshot, ok bool, available bool)
	LastUpdate() time.Time
	LastError() error
	SwitchMode(ctx context.Context, mode protocol.OperatingMode) error
	StartIntensive(ctx context.Context, minutes float64) error
	SetFanSpeed(ctx context.Context, percent float64, mode protocol.OperatingMode) error
	SetIntensiveDuration(ctx context.Context, minutes float64) error
	SetPower(ctx context.Context, on bool) error
}

// Server serves device state and commands. Routes without a /devices/:device
// prefix act on the default device.
type Server struct {
	devices       map[string]Device
	defaultDevice string
	router        *httprouter.Router
}

type stateResponse struct {
	Device     string             `json:"device"`
	Host       string             `json:"host"`
	Available  bool               `json:"available"`
	LastUpdate *time.Time         `json:"last_update,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	Snapshot   *protocol.Snapshot `json:"snapshot,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type deviceEntry struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Default bool   `json:"default"`
}

// New builds a server for the named devices
func New(devices map[string]Device, defaultDevice string) *Server {
	s := &Server{
		devices:       devices,
		defaultDevice: defaultDevice,
		router:        httprouter.New(),
	}

	s.router.GET("/version", s.version)
	s.router.GET("/devices", s.list)

	routes := []struct {
		method, path string
		handle       func(http.ResponseWriter, *http.Request, string, Device, httprouter.Params)
	}{
		{http.MethodGet, "/state", s.state},
		{http.MethodPut, "/mode/:mode", s.mode},
		{http.MethodPut, "/fan/:mode/:percent", s.fan},
		{http.MethodPut, "/intensive-duration/:minutes", s.duration},
		{http.MethodPut, "/power/:state", s.power},
	}
	for _, route := range routes {
		s.router.Handle(route.method, route.path, s.withDevice(route.handle))
		s.router.Handle(route.method, "/devices/:device"+route.path, s.withDevice(route.handle))
	}

	return s
}

// ServeHTTP implements http.Handler and logs every request
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)

	logging.Debug("HTTP request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withDevice(h func(http.ResponseWriter, *http.Request, string, Device, httprouter.Params)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("device")
		if name == "" {
			name = s.defaultDevice
		}
		d, ok := s.devices[name]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown device %q", name))
			return
		}
		h(w, r, name, d, ps)
	}
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	entries := make([]deviceEntry, 0, len(s.devices))
	for name, d := range s.devices {
		entries = append(entries, deviceEntry{Name: name, Host: d.Host(), Default: name == s.defaultDevice})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request, name string, d Device, _ httprouter.Params) {
	if err := d.Refresh(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeState(w, name, d)
}

func (s *Server) mode(w http.ResponseWriter, r *http.Request, name string, d Device, ps httprouter.Params) {
	mode, err := protocol.ParseMode(ps.ByName("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if raw := r.URL.Query().Get("duration"); raw != "" {
		if mode != protocol.ModeIntensive {
			writeError(w, http.StatusBadRequest, fmt.Errorf("a duration only applies to intensive mode"))
			return
		}
		minutes, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid duration %q", raw))
			return
		}
		s.run(w, r, name, d, func(ctx context.Context) error { return d.StartIntensive(ctx, minutes) })
		return
	}

	s.run(w, r, name, d, func(ctx context.Context) error { return d.SwitchMode(ctx, mode) })
}

func (s *Server) fan(w http.ResponseWriter, r *http.Request, name string, d Device, ps httprouter.Params) {
	mode, err := protocol.ParseMode(ps.ByName("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	percent, err := strconv.ParseFloat(ps.ByName("percent"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid fan speed %q", ps.ByName("percent")))
		return
	}
	s.run(w, r, name, d, func(ctx context.Context) error { return d.SetFanSpeed(ctx, percent, mode) })
}

func (s *Server) duration(w http.ResponseWriter, r *http.Request, name string, d Device, ps httprouter.Params) {
	minutes, err := strconv.ParseFloat(ps.ByName("minutes"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid duration %q", ps.ByName("minutes")))
		return
	}
	s.run(w, r, name, d, func(ctx context.Context) error { return d.SetIntensiveDuration(ctx, minutes) })
}

func (s *Server) power(w http.ResponseWriter, r *http.Request, name string, d Device, ps httprouter.Params) {
	var on bool
	switch strings.ToLower(ps.ByName("state")) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid power state %q (expected on or off)", ps.ByName("state")))
		return
	}
	s.run(w, r, name, d, func(ctx context.Context) error { return d.SetPower(ctx, on) })
}

// run executes a command, then answers with the state read back from the unit
func (s *Server) run(w http.ResponseWriter, r *http.Request, name string, d Device, cmd func(context.Context) error) {
	if err := cmd(r.Context()); err != nil {
		logging.Warn("Command failed",
			zap.String("device", name),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, statusFor(err), err)
		return
	}
	if err := d.Refresh(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeState(w, name, d)
}

func writeState(w http.ResponseWriter, name string, d Device) {
	snap, ok, available := d.State()
	resp := stateResponse{
		Device:    name,
		Host:      d.Host(),
		Available: available,
	}
	if err := d.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	if !ok {
		// Nothing read yet
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	last := d.LastUpdate()
	resp.LastUpdate = &last
	resp.Snapshot = &snap
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a client error to an HTTP status
func statusFor(err error) int {
	switch {
	case protocol.IsModeError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	marshaled, err := json.Marshal(v)
	if err != nil {
		logging.Error("Failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", version.UserAgent())
	w.WriteHeader(status)
	if _, err := w.Write(marshaled); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
