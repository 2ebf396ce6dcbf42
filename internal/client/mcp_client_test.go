package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YKarmar/JobMail/internal/types"
)

type fakeSource struct {
	ids       []string
	messages  map[string]*types.Message
	lastQuery string
	lastMax   int
}

func (f *fakeSource) ListMessageIDs(_ context.Context, query string, maxResults int) ([]string, error) {
	f.lastQuery = query
	f.lastMax = maxResults
	if len(f.ids) > maxResults {
		return f.ids[:maxResults], nil
	}
	return f.ids, nil
}

func (f *fakeSource) GetMessage(_ context.Context, id string) (*types.Message, error) {
	if id == "bad" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageID, id)
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func newMCPPair(t *testing.T, src MailSource, serverKey, clientKey string) *MCPSource {
	t.Helper()
	server := httptest.NewServer(NewMCPHandler(src, serverKey, zerolog.Nop()))
	t.Cleanup(server.Close)
	return NewMCPSource(MCPConfig{Endpoint: server.URL, APIKey: clientKey})
}

func TestMCPRoundTrip(t *testing.T) {
	src := &fakeSource{
		ids: []string{"INBOX:3", "INBOX:2", "INBOX:1"},
		messages: map[string]*types.Message{
			"INBOX:3": {
				ID:           "INBOX:3",
				InternalDate: "1700000000000",
				Payload: &types.MessagePart{
					MimeType: "text/plain",
					Headers:  []types.Header{{Name: "Subject", Value: "Application received"}},
					Body:     &types.PartBody{Data: "aGk="},
				},
			},
		},
	}
	c := newMCPPair(t, src, "key", "key")
	ctx := context.Background()

	t.Run("lists ids", func(t *testing.T) {
		ids, err := c.ListMessageIDs(ctx, "application|offer", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"INBOX:3", "INBOX:2"}, ids)
		assert.Equal(t, "application|offer", src.lastQuery)
		assert.Equal(t, 2, src.lastMax)
	})

	t.Run("gets message", func(t *testing.T) {
		msg, err := c.GetMessage(ctx, "INBOX:3")
		require.NoError(t, err)
		assert.Equal(t, src.messages["INBOX:3"], msg)
	})

	t.Run("propagates server errors", func(t *testing.T) {
		_, err := c.GetMessage(ctx, "INBOX:9")
		require.Error(t, err)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, codeServerError, mcpErr.Code)

		_, err = c.GetMessage(ctx, "bad")
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, codeInvalidParams, mcpErr.Code)
	})

	t.Run("rejects invalid params", func(t *testing.T) {
		_, err := c.ListMessageIDs(ctx, "", 0)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, codeInvalidParams, mcpErr.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		var out any
		err := c.call(ctx, "messages.delete", GetParams{ID: "x"}, &out)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, codeMethodNotFound, mcpErr.Code)
	})
}

func TestMCPUnauthorized(t *testing.T) {
	c := newMCPPair(t, &fakeSource{}, "key", "wrong")

	_, err := c.ListMessageIDs(context.Background(), "", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusUnauthorized))
}
