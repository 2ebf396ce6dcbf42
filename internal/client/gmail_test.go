package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func newTestGmailSource(t *testing.T, mux *http.ServeMux) *GmailSource {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return NewGmailSourceFromService(srv)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGmailListMessageIDs(t *testing.T) {
	var queries []string
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		size, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		start := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			start, _ = strconv.Atoi(tok)
		}

		var msgs []map[string]string
		for i := start; i < start+size && i < 5; i++ {
			msgs = append(msgs, map[string]string{"id": fmt.Sprintf("m%d", i)})
		}
		resp := map[string]any{"messages": msgs}
		if start+size < 5 {
			resp["nextPageToken"] = strconv.Itoa(start + size)
		}
		writeJSON(t, w, resp)
	})
	src := newTestGmailSource(t, mux)

	t.Run("stops at max results", func(t *testing.T) {
		ids, err := src.ListMessageIDs(context.Background(), "subject:application", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"m0", "m1", "m2"}, ids)
		assert.Equal(t, "subject:application", queries[len(queries)-1])
	})

	t.Run("stops when pages run out", func(t *testing.T) {
		ids, err := src.ListMessageIDs(context.Background(), "", 50)
		require.NoError(t, err)
		assert.Len(t, ids, 5)
	})
}

func TestGmailGetMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(t, w, map[string]any{
			"id":           "m1",
			"threadId":     "t1",
			"internalDate": "1700000000000",
			"payload": map[string]any{
				"mimeType": "multipart/alternative",
				"headers": []map[string]string{
					{"name": "From", "value": "Acme <hr@acme.com>"},
					{"name": "Subject", "value": "Application received"},
				},
				"parts": []map[string]any{
					{"partId": "0", "mimeType": "text/plain", "body": map[string]any{"data": "aGk=", "size": 2}},
					{"partId": "1", "mimeType": "text/html", "body": map[string]any{"data": "PGI-aGk8L2I-", "size": 9}},
				},
			},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"emailAddress": "me@gmail.com", "messagesTotal": 42})
	})
	src := newTestGmailSource(t, mux)
	ctx := context.Background()

	msg, err := src.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "1700000000000", msg.InternalDate)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "multipart/alternative", msg.Payload.MimeType)
	assert.Len(t, msg.Payload.Headers, 2)
	require.Len(t, msg.Payload.Parts, 2)
	assert.Equal(t, "text/plain", msg.Payload.Parts[0].MimeType)
	assert.Equal(t, "aGk=", msg.Payload.Parts[0].Body.Data)

	_, err = src.GetMessage(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidMessageID)

	_, err = src.GetMessage(ctx, "missing")
	assert.Error(t, err)

	email, total, err := src.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@gmail.com", email)
	assert.Equal(t, int64(42), total)
}

type stubTokenSource struct{ token *oauth2.Token }

func (s stubTokenSource) Token() (*oauth2.Token, error) { return s.token, nil }

func TestNotifyTokenSource(t *testing.T) {
	old := &oauth2.Token{AccessToken: "old"}
	fresh := &oauth2.Token{AccessToken: "new"}

	var stored []string
	ts := &notifyTokenSource{
		src:     stubTokenSource{token: fresh},
		current: old,
		callback: func(tok *oauth2.Token) error {
			stored = append(stored, tok.AccessToken)
			return nil
		},
	}

	for i := 0; i < 2; i++ {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
	}
	assert.Equal(t, []string{"new"}, stored)
}
