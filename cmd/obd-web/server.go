package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/obdkit/obdkit-go/pkg/interest"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
)

// Server exposes a telemetry engine over a JSON API.
type Server struct {
	engine *telemetry.Engine
}

// NewServer creates a server for the given engine.
func NewServer(engine *telemetry.Engine) *Server {
	return &Server{engine: engine}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)

		r.Post("/tokens", s.handleCreateToken)
		r.Put("/tokens/{token}", s.handleReplaceInterest)
		r.Delete("/tokens/{token}", s.handleClearInterest)
		r.Get("/interest", s.handleInterest)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/{pid}", s.handleStatByPID)
		r.Post("/stats/reset", s.handleReset)

		r.Get("/codes", s.handleCodes)
		r.Get("/params", s.handleParams)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Session:    s.engine.SessionID(),
		State:      st.State.String(),
		FailReason: st.FailReason,
		Interested: pidStrings(s.engine.InterestedSet()),
		Tokens:     s.engine.TokenCount(),
		Samples:    s.engine.TotalSamples(),
		Restarts:   s.engine.Restarts(),
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.engine.Connect(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.engine.Status().State.String()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.engine.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"state": s.engine.Status().State.String()})
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"token": string(s.engine.MakeToken())})
}

func (s *Server) handleReplaceInterest(w http.ResponseWriter, r *http.Request) {
	token := interest.Token(chi.URLParam(r, "token"))

	var req struct {
		PIDs       []string `json:"pids"`
		TTLSeconds int      `json:"ttl_seconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	set := pid.NewSet()
	for _, raw := range req.PIDs {
		id, err := parsePID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		set.Add(id)
	}

	resp := map[string]interface{}{}
	if req.TTLSeconds > 0 {
		ttl := time.Duration(req.TTLSeconds) * time.Second
		if err := s.engine.ReplaceFor(set, token, ttl); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if expiresAt, ok := s.engine.InterestExpiry(token); ok {
			resp["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
		}
	} else {
		s.engine.Replace(set, token)
	}

	resp["interested"] = pidStrings(s.engine.InterestedSet())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearInterest(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear(interest.Token(chi.URLParam(r, "token")))
	s.engine.Sync()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interested": pidStrings(s.engine.InterestedSet()),
	})
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interested": pidStrings(s.engine.InterestedSet()),
		"tokens":     s.engine.TokenCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	all := s.engine.Statistics()

	out := make([]statResponse, 0, len(all))
	for id, st := range all {
		out = append(out, toStatResponse(id, st.Latest.Value, st.Latest.Unit.String(), st.Min, st.Max, st.SampleCount))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": out})
}

func (s *Server) handleStatByPID(w http.ResponseWriter, r *http.Request) {
	id, err := parsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, ok := s.engine.ParameterStatistics(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no samples for "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, toStatResponse(id, st.Latest.Value, st.Latest.Unit.String(), st.Min, st.Max, st.SampleCount))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PID string `json:"pid"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.PID == "" || req.PID == "all" {
		s.engine.ResetAllStats()
		writeJSON(w, http.StatusOK, map[string]string{"reset": "all"})
		return
	}

	id, err := parsePID(req.PID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.ResetStats(id)
	writeJSON(w, http.StatusOK, map[string]string{"reset": id.Hex()})
}

func (s *Server) handleCodes(w http.ResponseWriter, r *http.Request) {
	codes := s.engine.Codes()

	out := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		out = append(out, codeResponse{
			Code:    c.String(),
			System:  c.System.String(),
			Generic: c.IsGeneric(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"codes": out})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	out := make([]paramResponse, 0)
	for _, id := range pid.Known() {
		info, _ := pid.Lookup(id)
		out = append(out, paramResponse{
			PID:  id.Hex(),
			Name: info.Name,
			Kind: info.Kind.String(),
			Unit: info.Unit.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"params": out})
}

type statusResponse struct {
	Session    string   `json:"session"`
	State      string   `json:"state"`
	FailReason string   `json:"fail_reason,omitempty"`
	Interested []string `json:"interested"`
	Tokens     int      `json:"tokens"`
	Samples    uint64   `json:"samples"`
	Restarts   uint64   `json:"restarts"`
}

type statResponse struct {
	PID     string  `json:"pid"`
	Name    string  `json:"name,omitempty"`
	Latest  float64 `json:"latest"`
	Unit    string  `json:"unit,omitempty"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples uint64  `json:"samples"`
}

type codeResponse struct {
	Code    string `json:"code"`
	System  string `json:"system"`
	Generic bool   `json:"generic"`
}

type paramResponse struct {
	PID  string `json:"pid"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Unit string `json:"unit"`
}

func toStatResponse(id pid.ID, latest float64, unit string, min, max float64, n uint64) statResponse {
	name := ""
	if info, ok := pid.Lookup(id); ok {
		name = info.Name
	}
	return statResponse{
		PID:     id.Hex(),
		Name:    name,
		Latest:  latest,
		Unit:    unit,
		Min:     min,
		Max:     max,
		Samples: n,
	}
}

func pidStrings(set pid.Set) []string {
	out := make([]string, 0, len(set))
	for _, id := range set.Sorted() {
		out = append(out, id.Hex())
	}
	return out
}

// parsePID accepts a hex PID with or without the 0x prefix.
func parsePID(s string) (pid.ID, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, errBadPID(s)
	}
	return pid.ID(n), nil
}

type errBadPID string

func (e errBadPID) Error() string {
	return `invalid pid "` + string(e) + `"`
}

func decodeJSON(r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
