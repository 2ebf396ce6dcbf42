package client

import (
	"context"
	"errors"

	"github.com/YKarmar/JobMail/internal/types"
)

var ErrInvalidMessageID = errors.New("invalid message id")

// MailSource is a read-only view of one mailbox.
type MailSource interface {
	// ListMessageIDs returns up to maxResults ids of messages matching a
	// provider-specific query, newest first where the provider allows it.
	ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*types.Message, error)
}
