package chainsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
)

// PushConfig configures the HTTP push source.
type PushConfig struct {
	Addr      string
	JWTSecret []byte
}

// PushSource exposes a POST /ingest endpoint that accepts AnchoredEvents
// from an external process reading the same chain. The manager does not own
// the upstream connection here, only the HTTP listener; arrival is simply
// logged and handed to sink.
type PushSource struct {
	cfg    PushConfig
	logger *slog.Logger
	server *http.Server
}

// NewPushSource builds a PushSource.
func NewPushSource(cfg PushConfig, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSource{cfg: cfg, logger: logger}
}

func (s *PushSource) Name() string { return "push" }

func (s *PushSource) Start(ctx context.Context, sink func(ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", s.handleIngest(sink))

	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: mux,
	}

	s.logger.Info("chainsource.push_listening", "addr", s.cfg.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *PushSource) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type pushResponse struct {
	Status      string `json:"status"`
	ContentHash string `json:"contentHash,omitempty"`
	Error       string `json:"error,omitempty"`
}

// outcomeHTTPStatus maps the processor's status vocabulary onto an HTTP
// status code for the push endpoint's response. duplicate is not an error
// (200); not_found may clear on a retry (404); invalid_signature and
// unauthorized_key are fatal for the anchor as submitted (422); error covers
// everything else the processor rejected a well-formed, authenticated
// submission for (500).
var outcomeHTTPStatus = map[string]int{
	"processed":         http.StatusOK,
	"duplicate":         http.StatusOK,
	"not_found":         http.StatusNotFound,
	"invalid_signature": http.StatusUnprocessableEntity,
	"unauthorized_key":  http.StatusUnprocessableEntity,
	"error":             http.StatusInternalServerError,
}

// handleIngest authenticates the caller, hands a well-formed AnchoredEvent
// to sink, and waits for sink to return the processor's outcome so the HTTP
// response can echo the same status vocabulary the processor uses
// internally.
func (s *PushSource) handleIngest(sink func(ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, pushResponse{Status: "error", Error: "method not allowed"})
			return
		}

		if err := s.authenticate(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, pushResponse{Status: "error", Error: err.Error()})
			return
		}

		var event ingestmodel.AnchoredEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, pushResponse{Status: "error", Error: fmt.Sprintf("malformed body: %v", err)})
			return
		}
		if event.ContentHash == "" {
			writeJSON(w, http.StatusBadRequest, pushResponse{Status: "error", Error: "content_hash is required"})
			return
		}
		event.Source = s.Name()
		s.logger.Info("chainsource.push_received", "content_hash", event.ContentHash, "block_num", event.BlockNum)

		outcome := sink(event)
		code, ok := outcomeHTTPStatus[outcome.Status]
		if !ok {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, pushResponse{Status: outcome.Status, ContentHash: outcome.ContentHash, Error: outcome.Error})
	}
}

func (s *PushSource) authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return fmt.Errorf("expected 'Bearer <token>' Authorization header")
	}

	if len(s.cfg.JWTSecret) == 0 {
		return fmt.Errorf("push endpoint authentication not configured")
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body pushResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
