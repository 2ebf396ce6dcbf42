package client

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/YKarmar/JobMail/internal/types"
)

// Gmail API page size ceiling.
const gmailMaxPageSize = 500

var GmailScopes = []string{
	gmail.GmailReadonlyScope,
	"https://www.googleapis.com/auth/userinfo.email",
}

// TokenUpdateFunc is called when a token was refreshed.
type TokenUpdateFunc func(*oauth2.Token) error

func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       GmailScopes,
		Endpoint:     google.Endpoint,
	}
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			return nil, fmt.Errorf("store refreshed token: %w", err)
		}
	}
	return t, nil
}

type GmailSource struct {
	srv  *gmail.Service
	user string
}

// NewGmailSource authenticates with token, refreshing it through config
// when expired. onRefresh may be nil.
func NewGmailSource(ctx context.Context, config *oauth2.Config, token *oauth2.Token, onRefresh TokenUpdateFunc) (*GmailSource, error) {
	ts := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailSourceFromService(srv), nil
}

// UserEmail returns the address of the Google account that owns token.
func UserEmail(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (string, error) {
	srv, err := oauth2api.NewService(ctx, option.WithTokenSource(config.TokenSource(ctx, token)))
	if err != nil {
		return "", fmt.Errorf("create userinfo service: %w", err)
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get userinfo: %w", err)
	}
	return info.Email, nil
}

func NewGmailSourceFromService(srv *gmail.Service) *GmailSource {
	return &GmailSource{srv: srv, user: "me"}
}

func (s *GmailSource) ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""

	for len(ids) < maxResults {
		pageSize := maxResults - len(ids)
		if pageSize > gmailMaxPageSize {
			pageSize = gmailMaxPageSize
		}

		call := s.srv.Users.Messages.List(s.user).MaxResults(int64(pageSize)).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list gmail messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Messages) == 0 {
			break
		}
	}

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (s *GmailSource) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	msg, err := s.srv.Users.Messages.Get(s.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get gmail message %s: %w", id, err)
	}
	return convertGmailMessage(msg), nil
}

// Profile returns the mailbox address and its total message count.
func (s *GmailSource) Profile(ctx context.Context) (string, int64, error) {
	p, err := s.srv.Users.GetProfile(s.user).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("get gmail profile: %w", err)
	}
	return p.EmailAddress, p.MessagesTotal, nil
}

func convertGmailMessage(msg *gmail.Message) *types.Message {
	out := &types.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate != 0 {
		out.InternalDate = strconv.FormatInt(msg.InternalDate, 10)
	}
	if msg.Payload != nil {
		p := convertGmailPart(msg.Payload)
		out.Payload = &p
	}
	return out
}

func convertGmailPart(part *gmail.MessagePart) types.MessagePart {
	out := types.MessagePart{
		PartID:   part.PartId,
		MimeType: part.MimeType,
		Filename: part.Filename,
	}
	for _, h := range part.Headers {
		if h == nil {
			continue
		}
		out.Headers = append(out.Headers, types.Header{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil {
		out.Body = &types.PartBody{
			Data:         part.Body.Data,
			Size:         part.Body.Size,
			AttachmentID: part.Body.AttachmentId,
		}
	}
	for _, child := range part.Parts {
		if child == nil {
			continue
		}
		out.Parts = append(out.Parts, convertGmailPart(child))
	}
	return out
}
