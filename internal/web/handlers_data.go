package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/logging"
	"github.com/JonMunkholm/dataview/internal/metrics"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// handleData serves GET /api/data?skip=&limit=.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	skip := parseIntParam(r, "skip", 0, 0)
	limit := parseIntParam(r, "limit", s.cfg.Upload.InitialRows, 1)

	res, err := s.service.Page(requestContext(r), skip, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObservePage()
	}
	writeJSON(w, r, res)
}

// updateTypesRequest is the body of POST /api/update_column_types/.
type updateTypesRequest struct {
	ColumnTypes map[string]string `json:"column_types"`
}

// updateTypesResponse reports the schema after the change.
type updateTypesResponse struct {
	InferredTypes schema.Raw `json:"inferred_types"`
}

// handleUpdateColumnTypes converts columns to the display types named in the
// body. Labels that are not display types are skipped.
func (s *Server) handleUpdateColumnTypes(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)

	var req updateTypesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observeTypeUpdate(core.ErrBadRequest)
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrBadRequest, err))
		return
	}

	types := make(map[string]schema.DisplayType, len(req.ColumnTypes))
	for col, label := range req.ColumnTypes {
		t, err := schema.ParseDisplayType(label)
		if err != nil {
			logging.FromContext(ctx).Warn("skipping unknown column type", "column", col, "type", label)
			continue
		}
		types[col] = t
	}

	raw, err := s.service.UpdateColumnTypes(ctx, types)
	s.observeTypeUpdate(err)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, updateTypesResponse{InferredTypes: raw})
}

func (s *Server) observeTypeUpdate(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.ObserveTypeUpdate(metrics.OutcomeOK)
	case statusFor(err) < http.StatusInternalServerError:
		s.metrics.ObserveTypeUpdate(metrics.OutcomeRejected)
	default:
		s.metrics.ObserveTypeUpdate(metrics.OutcomeError)
	}
}
