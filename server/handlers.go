package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/flowpad/flowpad/graph"
	"github.com/flowpad/flowpad/store"
)

// flowchartRequest is the body of create and update. Absent fields decode
// to nil so updates can tell "not sent" from "sent empty".
type flowchartRequest struct {
	Title *string     `json:"title"`
	Data  *graph.Data `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, "list flowcharts", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req flowchartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title == nil {
		writeJSON(w, http.StatusBadRequest, &graph.ValidationError{
			Message:  "Invalid flowchart.",
			Problems: []string{"title: this field is required."},
		})
		return
	}
	if verr := validateTitle(*req.Title); verr != nil {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}

	f := graph.Flowchart{
		ID:        s.newID(),
		Title:     *req.Title,
		CreatedAt: s.now().UTC(),
	}
	if req.Data != nil {
		f.Data = normalize(*req.Data)
		if err := f.Data.Validate(); err != nil {
			writeValidation(w, err)
			return
		}
	}

	if err := s.store.Create(r.Context(), f); err != nil {
		s.internalError(w, "create flowchart", err)
		return
	}
	s.log.Info().Str("id", f.ID).Str("title", f.Title).Msg("flowchart created")
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	f, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleUpdate serves PUT and PATCH alike: fields left out of the body keep
// their stored values, so a title-only body renames without touching the
// graph.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req flowchartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title != nil {
		if verr := validateTitle(*req.Title); verr != nil {
			writeJSON(w, http.StatusBadRequest, verr)
			return
		}
	}
	if req.Data != nil {
		d := normalize(*req.Data)
		if err := d.Validate(); err != nil {
			writeValidation(w, err)
			return
		}
		req.Data = &d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.load(w, r)
	if !ok {
		return
	}
	if req.Title != nil {
		f.Title = *req.Title
	}
	if req.Data != nil {
		f.Data = *req.Data
	}

	if err := s.store.Update(r.Context(), *f); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found."})
			return
		}
		s.internalError(w, "update flowchart", err)
		return
	}
	s.log.Debug().
		Str("id", f.ID).
		Int("nodes", len(f.Data.Nodes)).
		Int("edges", len(f.Data.Edges)).
		Msg("flowchart updated")
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found."})
			return
		}
		s.internalError(w, "delete flowchart", err)
		return
	}
	s.log.Info().Str("id", id).Msg("flowchart deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateGraph(w http.ResponseWriter, r *http.Request) {
	f, ok := s.load(w, r)
	if !ok {
		return
	}
	if err := f.Data.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Graph is valid."})
}

func (s *Server) handleOutgoingEdges(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := requireNodeID(w, r)
	if !ok {
		return
	}
	f, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Data.OutgoingEdges(nodeID))
}

func (s *Server) handleConnectedNodes(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := requireNodeID(w, r)
	if !ok {
		return
	}
	f, ok := s.load(w, r)
	if !ok {
		return
	}
	nodes, err := f.Data.ConnectedNodes(nodeID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Node not found."})
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// load fetches the flowchart named by the {id} path value, writing the error
// response itself when it fails.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*graph.Flowchart, bool) {
	f, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found."})
			return nil, false
		}
		s.internalError(w, "get flowchart", err)
		return nil, false
	}
	return f, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error().Err(err).Str("op", op).Msg("store failure")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: fmt.Sprintf("failed to %s", op)})
}

func requireNodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "node_id query parameter is required."})
		return "", false
	}
	return nodeID, true
}

func validateTitle(title string) *graph.ValidationError {
	switch {
	case strings.TrimSpace(title) == "":
		return &graph.ValidationError{
			Message:  "Invalid flowchart.",
			Problems: []string{"title: this field may not be blank."},
		}
	case utf8.RuneCountInString(title) > graph.MaxTitleLength:
		return &graph.ValidationError{
			Message:  "Invalid flowchart.",
			Problems: []string{fmt.Sprintf("title: ensure this field has no more than %d characters.", graph.MaxTitleLength)},
		}
	}
	return nil
}

// normalize fills in the default node type and replaces nil slices.
func normalize(d graph.Data) graph.Data {
	d = d.Clone()
	for i := range d.Nodes {
		d.Nodes[i].Type = d.Nodes[i].Type.Normalize()
	}
	return d
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, err error) {
	var verr *graph.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
