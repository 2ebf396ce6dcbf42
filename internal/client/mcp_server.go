package client

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeServerError    = -32000
)

// MCPHandler serves a MailSource over JSON-RPC for MCPSource clients.
type MCPHandler struct {
	source MailSource
	apiKey string
	log    zerolog.Logger
}

func NewMCPHandler(source MailSource, apiKey string, log zerolog.Logger) *MCPHandler {
	return &MCPHandler{source: source, apiKey: apiKey, log: log}
}

func (h *MCPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, req.ID, codeParseError, "Parse error")
		return
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodListMessages:
		var params ListParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.MaxResults <= 0 {
			h.sendError(w, req.ID, codeInvalidParams, "Invalid params")
			return
		}
		result, err = h.source.ListMessageIDs(r.Context(), params.Query, params.MaxResults)
	case MethodGetMessage:
		var params GetParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
			h.sendError(w, req.ID, codeInvalidParams, "Invalid params")
			return
		}
		result, err = h.source.GetMessage(r.Context(), params.ID)
	default:
		h.sendError(w, req.ID, codeMethodNotFound, "Method not found")
		return
	}

	if err != nil {
		h.log.Warn().Err(err).Str("method", req.Method).Msg("mcp call failed")
		code := codeServerError
		if errors.Is(err, ErrInvalidMessageID) {
			code = codeInvalidParams
		}
		h.sendError(w, req.ID, code, err.Error())
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		h.sendError(w, req.ID, codeServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(MCPResponse{Jsonrpc: "2.0", ID: req.ID, Result: raw})
}

func (h *MCPHandler) sendError(w http.ResponseWriter, id string, code int, message string) {
	_ = json.NewEncoder(w).Encode(MCPResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	})
}
