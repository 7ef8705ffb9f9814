package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// StreamPathPrefix is where operations are served, followed by the operation name.
	StreamPathPrefix = "/api/stream/"
	// WebsocketPathPrefix is the websocket variant of StreamPathPrefix.
	WebsocketPathPrefix = "/ws/stream/"
	// OperationsPath lists the registered operations and their input schemas.
	OperationsPath = "/api/operations"

	maxInputBytes = 4 << 20
)

// Handler serves the operations of a Registry over HTTP.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Register mounts the stream, websocket and operations endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+StreamPathPrefix+"{name}", h.ServeStream)
	mux.HandleFunc("GET "+WebsocketPathPrefix+"{name}", h.ServeWebsocket)
	mux.HandleFunc("GET "+OperationsPath, h.ServeOperations)
}

func (h *Handler) ServeOperations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.registry.Describe()); err != nil {
		log.Warn().Err(err).Msg("failed to write operations")
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (Operation, bool) {
	name := r.PathValue("name")
	op, err := h.registry.Lookup(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return op, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Operation+": "+strings.Join(verr.Errors, "\n"), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// ServeStream runs one operation and streams its partial text, the sentinel
// and the final payload as a chunked text response.
//
// Failures before anything was written are reported with a status code. A
// failure after partial output ends the response without the sentinel.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	op, ok := h.lookup(w, r)
	if !ok {
		return
	}

	input, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes))
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return
	}
	if err := op.Validate(input); err != nil {
		writeValidationError(w, err)
		return
	}

	logger := log.With().Str("operation", op.Name()).Str("remote", r.RemoteAddr).Logger()
	flusher, _ := w.(http.Flusher)
	written := false

	start := func() {
		if written {
			return
		}
		written = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
	}
	write := func(s string) error {
		start()
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	logger.Debug().Msg("stream started")
	payload, err := op.Invoke(r.Context(), input, write)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || r.Context().Err() != nil:
			logger.Debug().Msg("stream aborted by client")
		case written:
			logger.Error().Err(err).Msg("stream failed after partial output")
		default:
			var verr *ValidationError
			if errors.As(err, &verr) {
				writeValidationError(w, err)
				return
			}
			logger.Error().Err(err).Msg("stream failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	if err := write(Sentinel); err != nil {
		logger.Warn().Err(err).Msg("could not write sentinel")
		return
	}
	if err := write(string(payload)); err != nil {
		logger.Warn().Err(err).Msg("could not write payload")
		return
	}
	logger.Debug().Int("payload_bytes", len(payload)).Msg("stream finished")
}
