package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
)

// FeatureLookup finds the feature row of one match, nil when unknown
type FeatureLookup interface {
	FeatureRow(ctx context.Context, matchID int64) (*oracle.FeatureRow, error)
}

// SnapshotLookup finds a team's latest snapshot, nil when unknown
type SnapshotLookup interface {
	Snapshot(ctx context.Context, teamID int) (*oracle.TeamSnapshot, error)
}

// HistoryLookup returns a team's rating trajectory
type HistoryLookup interface {
	TeamRatingHistory(ctx context.Context, teamID int) ([]*oracle.RatingPoint, error)
}

// Server is the read-only HTTP API over the derived data and the staking calculator
type Server struct {
	cfg      *oracle.Config
	features []FeatureLookup // asked in order, the cache first
	teams    SnapshotLookup
	history  HistoryLookup
}

// New creates a server. teams and history may be nil, their routes then answer 404.
func New(cfg *oracle.Config, teams SnapshotLookup, history HistoryLookup, features ...FeatureLookup) *Server {
	return &Server{cfg: cfg, features: features, teams: teams, history: history}
}

// Routes configures the HTTP routes
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/features/{matchID:[0-9]+}", s.handleFeatures).Methods("GET")
	r.HandleFunc("/teams/{teamID:[0-9]+}", s.handleTeam).Methods("GET")
	r.HandleFunc("/teams/{teamID:[0-9]+}/history", s.handleHistory).Methods("GET")
	r.HandleFunc("/value", s.handleValue).Methods("POST")
	return r
}

// Start serves on addr until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening on", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigChan:
		logger.Info("Received signal:", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["matchID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	for _, f := range s.features {
		row, err := f.FeatureRow(r.Context(), id)
		if err != nil {
			// a failing cache should not hide the database
			logger.Warn("Feature lookup failed", id, err)
			continue
		}
		if row != nil {
			writeJSON(w, http.StatusOK, row)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("no features for match %d", id))
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if s.teams == nil {
		writeError(w, http.StatusNotFound, "team snapshots are not available")
		return
	}
	snap, err := s.teams.Snapshot(r.Context(), id)
	if err != nil {
		logger.Error("Snapshot lookup failed", id, err)
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no snapshot for team %d", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "rating history is not available")
		return
	}
	points, err := s.history.TeamRatingHistory(r.Context(), id)
	if err != nil {
		logger.Error("Rating history lookup failed", id, err)
		writeError(w, http.StatusInternalServerError, "rating history lookup failed")
		return
	}
	if len(points) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no rating history for team %d", id))
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// ValueRequest is the body of POST /value
type ValueRequest struct {
	Probabilities   oracle.Probabilities `json:"probabilities"`
	Odds            oracle.Odds          `json:"odds"`
	Bankroll        float64              `json:"bankroll"`
	KellyMultiplier float64              `json:"kelly_multiplier,omitempty"` // 0 uses the configured multiplier
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cfg := *s.cfg
	if req.KellyMultiplier != 0 {
		cfg.KellyMultiplier = req.KellyMultiplier
	}
	rec, err := oracle.Recommend(req.Probabilities, req.Odds, req.Bankroll, &cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
