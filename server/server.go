// Package server is the HTTP control API for a running performance
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"pas-de-deux/cadence"
	"pas-de-deux/config"
	"pas-de-deux/debug"
	"pas-de-deux/performance"
	"pas-de-deux/pulse"
)

// Largest request body accepted
const maxBody = 1 << 20

// Server exposes one session over HTTP
type Server struct {
	session *performance.Session
	cfg     *config.Config

	// Live-code edits arrive per keystroke from editors; only the last one
	// within the window is applied
	debounced func(f func())
	applied   chan error // test hook, receives every debounced apply result
}

// New creates a server for session
func New(session *performance.Session, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	wait := time.Duration(cfg.Server.DebounceMS) * time.Millisecond
	s := &Server{session: session, cfg: cfg}
	if wait > 0 {
		s.debounced = debounce.New(wait)
	} else {
		s.debounced = func(f func()) { f() }
	}
	return s
}

// Handler returns the routed, CORS-wrapped API
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/state", s.handleState).Methods("GET")
	router.HandleFunc("/config", s.handleConfig).Methods("GET")
	router.HandleFunc("/take", s.handleTake).Methods("GET")

	router.HandleFunc("/patterns", s.handleGetPatterns).Methods("GET")
	router.HandleFunc("/patterns", s.handlePutPatterns).Methods("PUT", "POST")
	router.HandleFunc("/patterns", s.handleStopPatterns).Methods("DELETE")

	router.HandleFunc("/rhythm/start", s.handleStartBass).Methods("POST")
	router.HandleFunc("/rhythm/stop", s.handleStopBass).Methods("POST")
	router.HandleFunc("/rhythm/next", s.handleNextPreset).Methods("POST")
	router.HandleFunc("/rhythm/bpm", s.handleSetBPM).Methods("PUT")
	router.HandleFunc("/rhythm/preset", s.handleSelectPreset).Methods("PUT")

	router.HandleFunc("/streams/{side}/key", s.handleKey).Methods("POST")
	router.HandleFunc("/streams/{side}/hold", s.handleHold).Methods("POST")

	origins := s.cfg.Server.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	debug.Log("server", "listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Take())
}

func (s *Server) handleGetPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot().Pulse)
}

// handlePutPatterns validates live code at once and applies it debounced
func (s *Server) handlePutPatterns(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	text := string(body)
	if _, err := pulse.Parse(text); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.debounced(func() {
		err := s.session.UpdatePatterns(text)
		if err != nil {
			debug.Warn("server", "live update: %v", err)
		}
		if s.applied != nil {
			s.applied <- err
		}
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopPatterns(w http.ResponseWriter, r *http.Request) {
	s.session.StopPatterns()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartBass(w http.ResponseWriter, r *http.Request) {
	s.session.StartBass()
	writeJSON(w, http.StatusOK, s.session.Snapshot().Rhythm)
}

func (s *Server) handleStopBass(w http.ResponseWriter, r *http.Request) {
	s.session.StopBass()
	writeJSON(w, http.StatusOK, s.session.Snapshot().Rhythm)
}

type presetBody struct {
	Name string `json:"name"`
}

func (s *Server) handleNextPreset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presetBody{Name: s.session.NextPreset()})
}

func (s *Server) handleSelectPreset(w http.ResponseWriter, r *http.Request) {
	var in presetBody
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, presetBody{Name: s.session.SelectPreset(in.Name)})
}

type bpmBody struct {
	BPM float64 `json:"bpm"`
}

func (s *Server) handleSetBPM(w http.ResponseWriter, r *http.Request) {
	var in bpmBody
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.session.SetBPM(in.BPM)
	writeJSON(w, http.StatusOK, s.session.Snapshot().Rhythm)
}

func streamParam(r *http.Request) (cadence.StreamID, bool) {
	switch cadence.StreamID(mux.Vars(r)["side"]) {
	case cadence.Left:
		return cadence.Left, true
	case cadence.Right:
		return cadence.Right, true
	}
	return "", false
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	id, ok := streamParam(r)
	if !ok {
		http.Error(w, "side must be left or right", http.StatusNotFound)
		return
	}
	s.session.Keystroke(id)
	w.WriteHeader(http.StatusNoContent)
}

type holdBody struct {
	MS float64 `json:"ms"`
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	id, ok := streamParam(r)
	if !ok {
		http.Error(w, "side must be left or right", http.StatusNotFound)
		return
	}
	var in holdBody
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if in.MS <= 0 {
		http.Error(w, "ms must be positive", http.StatusBadRequest)
		return
	}
	s.session.Hold(id, in.MS)
	w.WriteHeader(http.StatusNoContent)
}
