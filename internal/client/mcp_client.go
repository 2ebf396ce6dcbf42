package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/YKarmar/JobMail/internal/types"
)

const (
	MethodListMessages = "messages.list"
	MethodGetMessage   = "messages.get"
)

type MCPRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

type ListParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type GetParams struct {
	ID string `json:"id"`
}

type MCPConfig struct {
	Endpoint string
	APIKey   string
}

// MCPSource reads a mailbox through a JSON-RPC mail bridge.
type MCPSource struct {
	config     MCPConfig
	httpClient *http.Client
}

func NewMCPSource(config MCPConfig) *MCPSource {
	return &MCPSource{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *MCPSource) ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	var ids []string
	if err := c.call(ctx, MethodListMessages, ListParams{Query: query, MaxResults: maxResults}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *MCPSource) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	var msg types.Message
	if err := c.call(ctx, MethodGetMessage, GetParams{ID: id}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *MCPSource) call(ctx context.Context, method string, params, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	reqBody, err := json.Marshal(MCPRequest{
		Jsonrpc: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("marshal MCP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MCP server error (%d): %s", resp.StatusCode, string(body))
	}

	var mcpResp MCPResponse
	if err := json.NewDecoder(resp.Body).Decode(&mcpResp); err != nil {
		return fmt.Errorf("decode MCP response: %w", err)
	}
	if mcpResp.Error != nil {
		return mcpResp.Error
	}

	if err := json.Unmarshal(mcpResp.Result, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}
