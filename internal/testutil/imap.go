package testutil

import (
	"bytes"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
)

// Credentials accepted by the server started with NewIMAPServer.
const (
	IMAPUser     = "username"
	IMAPPassword = "password"
)

// IMAPServer is an in-memory IMAP server listening on loopback.
type IMAPServer struct {
	Addr string

	logins atomic.Int32
}

// Logins reports how many sessions have authenticated so far.
func (s *IMAPServer) Logins() int {
	return int(s.logins.Load())
}

type countingBackend struct {
	*memory.Backend
	srv *IMAPServer
}

func (b *countingBackend) Login(info *imap.ConnInfo, username, password string) (backend.User, error) {
	user, err := b.Backend.Login(info, username, password)
	if err == nil {
		b.srv.logins.Add(1)
	}
	return user, err
}

// NewIMAPServer starts a server whose mailboxes hold the given raw RFC 5322
// messages, created in order. INBOX is emptied first so only the seeded
// messages are visible.
func NewIMAPServer(t *testing.T, mailboxes map[string][]string) *IMAPServer {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, IMAPUser, IMAPPassword)
	if err != nil {
		t.Fatalf("Failed to log in to memory backend: %v", err)
	}
	if err := resetInbox(user); err != nil {
		t.Fatalf("Failed to empty INBOX: %v", err)
	}

	date := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for name, messages := range mailboxes {
		mbox, err := user.GetMailbox(name)
		if err != nil {
			if err := user.CreateMailbox(name); err != nil {
				t.Fatalf("Failed to create mailbox %q: %v", name, err)
			}
			if mbox, err = user.GetMailbox(name); err != nil {
				t.Fatalf("Failed to open mailbox %q: %v", name, err)
			}
		}
		for _, raw := range messages {
			if err := mbox.CreateMessage(nil, date, bytes.NewBufferString(raw)); err != nil {
				t.Fatalf("Failed to append to %q: %v", name, err)
			}
		}
	}

	srv := &IMAPServer{}
	s := server.New(&countingBackend{Backend: be, srv: srv})
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	srv.Addr = ln.Addr().String()

	go func() {
		_ = s.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = s.Close()
	})
	return srv
}

func resetInbox(user backend.User) error {
	inbox, err := user.GetMailbox("INBOX")
	if err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(1, 0)
	if err := inbox.UpdateMessagesFlags(false, seqset, imap.AddFlags, []string{imap.DeletedFlag}); err != nil {
		return err
	}
	return inbox.Expunge()
}
