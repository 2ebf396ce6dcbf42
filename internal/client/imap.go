package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/YKarmar/JobMail/internal/types"
)

type IMAPConfig struct {
	Host     string
	Email    string
	Password string
	UseTLS   bool
	Folders  []string
	// Since limits searches to messages received on or after this day.
	Since time.Time
}

// IMAPSource reads messages over IMAP, reusing one logged-in session until
// Close. A message is identified by its Message-ID header so that copies in
// several folders (INBOX and [Gmail]/All Mail) count once. Messages without
// one fall back to "uid:<uidvalidity>:<folder>:<uid>".
type IMAPSource struct {
	config IMAPConfig

	mu       sync.Mutex
	conn     *imapclient.Client
	selected *imap.MailboxStatus
	// locations remembers where the last listing found each id.
	locations map[string]imapLocation
}

type imapLocation struct {
	folder      string
	uidValidity uint32
	uid         uint32
}

const uidIDPrefix = "uid:"

func (l imapLocation) id() string {
	return uidIDPrefix + strconv.FormatUint(uint64(l.uidValidity), 10) + ":" +
		l.folder + ":" + strconv.FormatUint(uint64(l.uid), 10)
}

func NewIMAPSource(config IMAPConfig) *IMAPSource {
	if len(config.Folders) == 0 {
		config.Folders = []string{"INBOX"}
	}
	return &IMAPSource{config: config}
}

func (s *IMAPSource) connect() (*imapclient.Client, error) {
	var (
		c   *imapclient.Client
		err error
	)
	if s.config.UseTLS {
		c, err = imapclient.DialTLS(s.config.Host, &tls.Config{})
	} else {
		c, err = imapclient.Dial(s.config.Host)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.config.Host, err)
	}
	c.Timeout = 30 * time.Second

	if err := c.Login(s.config.Email, s.config.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// session returns the open connection, logging in again when it was lost.
// Callers hold s.mu.
func (s *IMAPSource) session() (*imapclient.Client, error) {
	if s.conn != nil {
		switch s.conn.State() {
		case imap.AuthenticatedState, imap.SelectedState:
			return s.conn, nil
		}
		s.reset()
	}

	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	s.conn = c
	return c, nil
}

// reset drops the session after a failed command.
func (s *IMAPSource) reset() {
	if s.conn != nil {
		_ = s.conn.Logout()
	}
	s.conn = nil
	s.selected = nil
}

// Close logs out of the server. The source can be used again afterwards.
func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Logout()
	s.conn = nil
	s.selected = nil
	if errors.Is(err, imapclient.ErrAlreadyLoggedOut) {
		return nil
	}
	return err
}

func (s *IMAPSource) selectFolder(c *imapclient.Client, folder string) (*imap.MailboxStatus, error) {
	if s.selected != nil && s.selected.Name == folder && c.State() == imap.SelectedState {
		return s.selected, nil
	}
	status, err := c.Select(folder, true)
	if err != nil {
		s.selected = nil
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	s.selected = status
	return status, nil
}

// ListMessageIDs treats query as |-separated subject keywords. An empty
// query matches every message. Folders are searched in order, newest first,
// and a message already seen in an earlier folder is skipped.
func (s *IMAPSource) ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session()
	if err != nil {
		return nil, err
	}
	// Re-select so searches see mail that arrived since the last call.
	s.selected = nil

	criteria := buildSearchCriteria(query, s.config.Since)

	var ids []string
	locations := make(map[string]imapLocation)
	for _, folder := range s.config.Folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ids) >= maxResults {
			break
		}

		status, err := s.selectFolder(c, folder)
		if err != nil {
			s.reset()
			return nil, err
		}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			s.reset()
			return nil, fmt.Errorf("search %s: %w", folder, err)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })

		for len(uids) > 0 && len(ids) < maxResults {
			chunk := uids[:min(maxResults-len(ids), len(uids))]
			uids = uids[len(chunk):]

			headerIDs, err := fetchMessageIDs(c, chunk)
			if err != nil {
				s.reset()
				return nil, fmt.Errorf("fetch envelopes in %s: %w", folder, err)
			}
			for _, uid := range chunk {
				loc := imapLocation{folder: folder, uidValidity: status.UidValidity, uid: uid}
				id := headerIDs[uid]
				if id == "" {
					id = loc.id()
				}
				if _, seen := locations[id]; seen {
					continue
				}
				locations[id] = loc
				ids = append(ids, id)
			}
		}
	}

	s.locations = locations
	return ids, nil
}

// fetchMessageIDs maps UIDs in the selected folder to their Message-ID.
func fetchMessageIDs(c *imapclient.Client, uids []uint32) (map[uint32]string, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	ids := make(map[uint32]string, len(uids))
	for msg := range messages {
		if msg.Envelope != nil {
			ids[msg.Uid] = normalizeMessageID(msg.Envelope.MessageId)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *IMAPSource) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session()
	if err != nil {
		return nil, err
	}

	loc, ok := s.locations[id]
	if !ok {
		if loc, err = s.locate(c, id); err != nil {
			return nil, err
		}
	}

	status, err := s.selectFolder(c, loc.folder)
	if err != nil {
		s.reset()
		return nil, err
	}
	if loc.uidValidity != 0 && status.UidValidity != loc.uidValidity {
		return nil, fmt.Errorf("message %s: %s was reset (uidvalidity %d, was %d)",
			id, loc.folder, status.UidValidity, loc.uidValidity)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(loc.uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		s.reset()
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	body := fetched.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %s has no body", id)
	}

	msg, err := ParseRawMessage(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", id, err)
	}
	msg.ID = id
	if !fetched.InternalDate.IsZero() {
		msg.InternalDate = strconv.FormatInt(fetched.InternalDate.UnixMilli(), 10)
	}
	return msg, nil
}

// locate resolves an id that the last listing did not return.
func (s *IMAPSource) locate(c *imapclient.Client, id string) (imapLocation, error) {
	if strings.HasPrefix(id, uidIDPrefix) {
		return parseUIDMessageID(id)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", id)
	for _, folder := range s.config.Folders {
		status, err := s.selectFolder(c, folder)
		if err != nil {
			s.reset()
			return imapLocation{}, err
		}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			s.reset()
			return imapLocation{}, fmt.Errorf("search %s: %w", folder, err)
		}
		if len(uids) > 0 {
			return imapLocation{folder: folder, uidValidity: status.UidValidity, uid: uids[0]}, nil
		}
	}
	return imapLocation{}, fmt.Errorf("message %s not found", id)
}

// ParseRawMessage converts an RFC 5322 message into a part tree. Leaf bodies
// are transfer-decoded, converted to UTF-8 where the charset is known and
// stored as URL-safe base64.
func ParseRawMessage(r io.Reader) (*types.Message, error) {
	e, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}
	part := entityToPart(e)
	return &types.Message{Payload: &part}, nil
}

func entityToPart(e *message.Entity) types.MessagePart {
	part := types.MessagePart{MimeType: "text/plain"}
	if mediaType, _, err := e.Header.ContentType(); err == nil && mediaType != "" {
		part.MimeType = mediaType
	}
	if _, params, err := e.Header.ContentDisposition(); err == nil {
		part.Filename = params["filename"]
	}

	fields := e.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		part.Headers = append(part.Headers, types.Header{Name: fields.Key(), Value: value})
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				break
			}
			part.Parts = append(part.Parts, entityToPart(child))
		}
		return part
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, e.Body); err != nil {
		return part
	}
	part.Body = &types.PartBody{
		Data: base64.URLEncoding.EncodeToString(buf.Bytes()),
		Size: int64(buf.Len()),
	}
	return part
}

func buildSearchCriteria(query string, since time.Time) *imap.SearchCriteria {
	var keywords []string
	for _, kw := range strings.Split(query, "|") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	criteria := subjectCriteria(keywords)
	if !since.IsZero() {
		criteria.Since = since
	}
	return criteria
}

// subjectCriteria ORs SUBJECT matches for every keyword.
func subjectCriteria(keywords []string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	switch len(keywords) {
	case 0:
	case 1:
		criteria.Header.Add("Subject", keywords[0])
	default:
		criteria.Or = [][2]*imap.SearchCriteria{{
			subjectCriteria(keywords[:1]),
			subjectCriteria(keywords[1:]),
		}}
	}
	return criteria
}

func normalizeMessageID(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), "<>")
}

func parseUIDMessageID(id string) (imapLocation, error) {
	rest := strings.TrimPrefix(id, uidIDPrefix)
	first := strings.Index(rest, ":")
	last := strings.LastIndex(rest, ":")
	if first <= 0 || last <= first+1 {
		return imapLocation{}, fmt.Errorf("%w: %q", ErrInvalidMessageID, id)
	}

	validity, err := strconv.ParseUint(rest[:first], 10, 32)
	if err != nil {
		return imapLocation{}, fmt.Errorf("%w: %q", ErrInvalidMessageID, id)
	}
	uid, err := strconv.ParseUint(rest[last+1:], 10, 32)
	if err != nil || uid == 0 {
		return imapLocation{}, fmt.Errorf("%w: %q", ErrInvalidMessageID, id)
	}
	return imapLocation{
		folder:      rest[first+1 : last],
		uidValidity: uint32(validity),
		uid:         uint32(uid),
	}, nil
}
