package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketEstimateRequest is one estimation job sent over a WebSocket.
// Kind may be empty, in which case it is taken from Data.
type WebSocketEstimateRequest struct {
	ID   string                 `json:"id,omitempty"`
	Kind string                 `json:"kind,omitempty"`
	Data dataio.Correspondences `json:"data"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketEstimateResponse is sent for every state change of a job.
type WebSocketEstimateResponse struct {
	Type      string           `json:"type"`
	Status    string           `json:"status"` // "processing", "completed", "error"
	Progress  float64          `json:"progress,omitempty"`
	Result    *estimate.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// estimateWebSocketHandler handles WebSocket connections for streaming
// estimation.
func (s *Server) estimateWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, http.Header{RequestIDHeader: []string{requestID}})
	if err != nil {
		s.log().Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.log().Info("WebSocket connection established",
		"remote_addr", r.RemoteAddr,
		"request_id", requestID)

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log().Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage runs one estimation request and streams its state.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketEstimateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	s.sendWebSocketResponse(conn, WebSocketEstimateResponse{
		Type:      "estimate_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	if s.pipeline == nil {
		s.sendWebSocketError(conn, requestID, "unavailable", "estimation pipeline not initialized")
		return
	}

	kind := estimate.Kind("")
	if req.Kind != "" {
		k, err := estimate.ParseKind(req.Kind)
		if err != nil {
			s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
			return
		}
		kind = k
	}
	estReq, err := req.Data.Request(kind)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketEstimateResponse{
		Type:      "estimate_response",
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	res, err := s.runEstimation(ctx, "websocket", estReq)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error())
		return
	}
	res.ID = requestID

	s.sendWebSocketResponse(conn, WebSocketEstimateResponse{
		Type:      "estimate_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketEstimateResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.log().Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log().Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketEstimateResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
