package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/betterclaw/betterclaw/internal/errors"
	"github.com/betterclaw/betterclaw/internal/logging"
	"github.com/betterclaw/betterclaw/internal/models"
)

// JSON-RPC 2.0 error codes used by the host surface.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeParseError     = -32700
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type eventParams struct {
	SubscriptionID string             `json:"subscriptionId"`
	Source         string             `json:"source"`
	Data           map[string]float64 `json:"data"`
	Metadata       map[string]string  `json:"metadata"`
	FiredAt        *float64           `json:"firedAt"`
}

// handleRPC dispatches the host's JSON-RPC methods. Events are acknowledged
// synchronously and processed on the pipeline lane.
func (r *Router) handleRPC(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, requestID := logging.WithRequestID(req.Context(), req.Header.Get("X-Request-ID"))

	var rpcReq rpcRequest
	if err := json.NewDecoder(req.Body).Decode(&rpcReq); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "PARSE_ERROR", Data: err.Error()},
		})
		return
	}

	logger := log.With().Str("requestId", requestID).Str("method", rpcReq.Method).Logger()

	switch rpcReq.Method {
	case "betterclaw.ping":
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      rpcReq.ID,
			Result: map[string]interface{}{
				"ok":          true,
				"version":     r.version,
				"initialized": r.pipeline.Initialized(),
			},
		})

	case "betterclaw.event":
		r.handleEvent(w, rpcReq, logger)

	default:
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      rpcReq.ID,
			Error:   &rpcError{Code: codeMethodNotFound, Message: "METHOD_NOT_FOUND", Data: rpcReq.Method},
		})
	}
}

func (r *Router) handleEvent(w http.ResponseWriter, rpcReq rpcRequest, logger zerolog.Logger) {
	var params eventParams
	if err := json.Unmarshal(rpcReq.Params, &params); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      rpcReq.ID,
			Error:   &rpcError{Code: codeInvalidParams, Message: "INVALID_PARAMS", Data: err.Error()},
		})
		return
	}

	if err := validateEvent(params); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      rpcReq.ID,
			Error:   &rpcError{Code: codeInvalidParams, Message: "INVALID_PARAMS", Data: err.Error()},
		})
		return
	}

	event := models.DeviceEvent{
		SubscriptionID: params.SubscriptionID,
		Source:         params.Source,
		Data:           params.Data,
		Metadata:       params.Metadata,
	}
	if params.FiredAt != nil {
		event.FiredAt = *params.FiredAt
	} else {
		event.FiredAt = float64(time.Now().Unix())
	}

	// Acknowledge first; triage runs on the serialization lane.
	if err := r.pipeline.Enqueue(event); err != nil {
		logger.Error().Err(err).Str("subscription", event.SubscriptionID).Msg("Failed to enqueue event")
	} else {
		logger.Debug().Str("subscription", event.SubscriptionID).Msg("Event accepted")
	}

	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      rpcReq.ID,
		Result:  map[string]interface{}{"accepted": true},
	})
}

func validateEvent(params eventParams) error {
	if strings.TrimSpace(params.SubscriptionID) == "" {
		return apperrors.WrapValidation("event_intake", fmt.Errorf("subscriptionId is required"))
	}
	if strings.TrimSpace(params.Source) == "" {
		return apperrors.WrapValidation("event_intake", fmt.Errorf("source is required"))
	}
	return nil
}
