package tracker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/YKarmar/JobMail/internal/analyzer"
	"github.com/YKarmar/JobMail/internal/client"
	"github.com/YKarmar/JobMail/internal/types"
)

// Store is the part of the job repository the tracker needs.
type Store interface {
	HasEmail(ctx context.Context, emailID string) (bool, error)
	SaveParsed(ctx context.Context, emailID string, job *types.ParsedJob) (bool, error)
}

type Config struct {
	Query      string
	MaxResults int
}

type SyncResult struct {
	EmailsFound     int `json:"emails_found"`
	NewApplications int `json:"new_applications"`
	// Skipped counts messages already stored or not job related.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r SyncResult) Message() string {
	return fmt.Sprintf("Sync complete. Found %d job emails, added %d new applications.",
		r.EmailsFound, r.NewApplications)
}

// Tracker pulls new messages from a mailbox and records job applications.
type Tracker struct {
	config   Config
	analyzer *analyzer.JobAnalyzer
	store    Store
	log      zerolog.Logger
}

func New(config Config, ja *analyzer.JobAnalyzer, store Store, log zerolog.Logger) *Tracker {
	return &Tracker{
		config:   config,
		analyzer: ja,
		store:    store,
		log:      log.With().Str("component", "tracker").Logger(),
	}
}

// Sync runs one incremental pass over source. Per-message fetch failures
// are logged and counted, not returned.
func (t *Tracker) Sync(ctx context.Context, source client.MailSource) (*SyncResult, error) {
	ids, err := source.ListMessageIDs(ctx, t.config.Query, t.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	result := &SyncResult{EmailsFound: len(ids)}
	t.log.Info().Int("found", len(ids)).Msg("mailbox search done")

	var pending []*types.Message
	for _, id := range ids {
		known, err := t.store.HasEmail(ctx, id)
		if err != nil {
			return result, err
		}
		if known {
			result.Skipped++
			continue
		}

		msg, err := source.GetMessage(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			t.log.Warn().Err(err).Str("message_id", id).Msg("fetch message failed")
			result.Failed++
			continue
		}
		msg.ID = id
		pending = append(pending, msg)
	}

	analyzed, err := t.analyzer.AnalyzeMessages(ctx, pending)
	if err != nil {
		return result, err
	}

	for _, r := range analyzed {
		if r.Job == nil {
			result.Skipped++
			continue
		}
		inserted, err := t.store.SaveParsed(ctx, r.MessageID, r.Job)
		if err != nil {
			return result, err
		}
		if !inserted {
			result.Skipped++
			continue
		}
		result.NewApplications++
		t.log.Info().
			Str("message_id", r.MessageID).
			Str("company", r.Job.Company).
			Str("position", r.Job.Position).
			Str("status", string(r.Job.Status)).
			Msg("application recorded")
	}

	t.log.Info().
		Int("new", result.NewApplications).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("sync finished")
	return result, nil
}
