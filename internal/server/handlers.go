package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/geo"
	"github.com/MeKo-Tech/mvgeo/internal/version"
	"github.com/MeKo-Tech/mvgeo/internal/visualize"
)

const (
	formatText    = "text"
	formatYAML    = "yaml"
	formatOverlay = "overlay"

	defaultMaxBodyKB = 4096
	textPrecision    = 6
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// infoHandler describes the estimation pipeline.
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "", "estimation pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	relations := make([]string, 0, len(estimate.Kinds()))
	for _, k := range estimate.Kinds() {
		relations = append(relations, string(k))
	}
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Version:   version.Version,
		GitCommit: version.GitCommit,
		Relations: relations,
		Pipeline:  s.pipeline.Info(),
	})
}

// estimateHandler returns the handler for one relation. An empty kind takes
// the relation from the request body or infers it from the data.
func (s *Server) estimateHandler(kind estimate.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		requestID := requestIDFrom(r.Context())

		if s.pipeline == nil {
			s.writeErrorResponse(w, requestID, "estimation pipeline not initialized", http.StatusServiceUnavailable)
			return
		}

		limitKB := s.maxBodyKB
		if limitKB <= 0 {
			limitKB = defaultMaxBodyKB
		}
		r.Body = http.MaxBytesReader(w, r.Body, limitKB*1024)
		if r.ContentLength > 0 {
			requestBodyBytes.Observe(float64(r.ContentLength))
		}

		var corr dataio.Correspondences
		if err := json.NewDecoder(r.Body).Decode(&corr); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeErrorResponse(w, requestID, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			s.writeErrorResponse(w, requestID, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
			return
		}

		req, err := corr.Request(kind)
		if err != nil {
			s.writeErrorResponse(w, requestID, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		if s.timeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
			defer cancel()
		}

		res, err := s.runEstimation(ctx, "http", req)
		if err != nil {
			s.writeErrorResponse(w, requestID, err.Error(), statusForError(err))
			return
		}
		res.ID = requestID

		switch r.URL.Query().Get("format") {
		case formatText:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(dataio.RenderText(res, textPrecision)))
		case formatYAML:
			w.Header().Set("Content-Type", "application/yaml")
			if err := dataio.WriteResult(w, res, dataio.FormatYAML, textPrecision); err != nil {
				s.log().Error("Error encoding YAML response", "error", err, "request_id", requestID)
			}
		case formatOverlay:
			s.handleOverlayOutput(w, r, res, req.Pairs)
		default:
			s.writeJSON(w, http.StatusOK, EstimateResponse{Success: true, RequestID: requestID, Result: res})
		}
	}
}

// runEstimation runs req and records metrics. source labels the log line.
func (s *Server) runEstimation(ctx context.Context, source string, req estimate.Request) (*estimate.Result, error) {
	start := time.Now()
	res, err := s.pipeline.Run(ctx, req)
	duration := time.Since(start)

	kind := string(req.Kind)
	if err != nil {
		estimationsTotal.WithLabelValues(kind, "error").Inc()
		s.log().Warn("Estimation failed", "source", source, "kind", kind, "error", err)
		return nil, err
	}

	estimationsTotal.WithLabelValues(kind, "success").Inc()
	estimationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	estimationRank.WithLabelValues(kind).Observe(float64(res.Rank))
	estimationCorrespondences.WithLabelValues(kind).Observe(float64(res.Correspondences))
	return res, nil
}

// handleOverlayOutput renders the epipolar overlay of a two-view result.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, r *http.Request, res *estimate.Result, pairs []geo.AssociatedPair) {
	if res.Kind != estimate.KindFundamental && res.Kind != estimate.KindEssential {
		s.writeErrorResponse(w, res.ID, "overlay output needs a fundamental or essential matrix", http.StatusBadRequest)
		return
	}

	opts := visualize.DefaultOverlayOptions()
	if c := parseHexColor(r.URL.Query().Get("point")); c != nil {
		opts.PointColor = c
	}
	if c := parseHexColor(r.URL.Query().Get("line")); c != nil {
		opts.LineColor = c
	}
	opts.Label = fmt.Sprintf("%s rank %d", res.Kind, res.Rank)

	img, err := visualize.EpipolarOverlay(res.Dense(), pairs, opts)
	if err != nil {
		s.writeErrorResponse(w, res.ID, fmt.Sprintf("overlay failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, img)
}

// statusForError maps estimation errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, geo.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, geo.ErrNotConverged):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func parseHexColor(s string) color.Color {
	if s == "" {
		return nil
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return nil
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return nil
	}
	return color.NRGBA{uint8(rv), uint8(gv), uint8(bv), 255} //nolint:gosec // G115: two hex digits fit in uint8
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, requestID, message string, statusCode int) {
	s.writeJSON(w, statusCode, EstimateResponse{
		Success:   false,
		RequestID: requestID,
		Error:     message,
	})
}
