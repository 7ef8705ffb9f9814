package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/store"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const HistoryPath = "/api/history"

// SaveHistoryRequest is the body of POST /api/history.
type SaveHistoryRequest struct {
	History []string             `json:"history"`
	Agents  []conversation.Agent `json:"agents"`
	Summary *string              `json:"summary"`
}

type SaveHistoryResponse struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req SaveHistoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.store.Save(r.Context(), conversation.Snapshot{
		History: req.History,
		Agents:  req.Agents,
		Summary: req.Summary,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not save snapshot")
		http.Error(w, "could not save snapshot", http.StatusInternalServerError)
		return
	}
	log.Debug().Str("id", id).Int("history", len(req.History)).Msg("saved snapshot")
	writeJSON(w, http.StatusOK, SaveHistoryResponse{ID: id})
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("could not load snapshot")
		http.Error(w, "could not load snapshot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HistoryClient talks to the history endpoints of a server.
type HistoryClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: http.DefaultClient}
}

func (c *HistoryClient) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &stream.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HistoryClient) Save(ctx context.Context, req SaveHistoryRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+HistoryPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp SaveHistoryResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", errors.Wrap(err, "could not save history")
	}
	return resp.ID, nil
}

func (c *HistoryClient) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+HistoryPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var snap conversation.Snapshot
	if err := c.do(httpReq, &snap); err != nil {
		return nil, errors.Wrapf(err, "could not load history %s", id)
	}
	return &snap, nil
}
