package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/YKarmar/JobMail/internal/types"
)

type Config struct {
	// Workers bounds parallel classification in AnalyzeMessages.
	Workers int `yaml:"workers"`
}

// JobAnalyzer turns raw mailbox messages into job application records.
// It holds no per-message state and is safe for concurrent use.
type JobAnalyzer struct {
	config Config
	log    zerolog.Logger
	// parse is swapped in tests to exercise the recovery path.
	parse func(*types.Message) (*types.ParsedJob, bool)
}

func NewJobAnalyzer(config Config, log zerolog.Logger) *JobAnalyzer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &JobAnalyzer{
		config: config,
		log:    log.With().Str("component", "analyzer").Logger(),
		parse:  parseMessage,
	}
}

// Result pairs a message with what the analyzer made of it. Job is nil when
// the message is not job related.
type Result struct {
	MessageID string
	Job       *types.ParsedJob
}

// IsJobRelated is the cheap keyword gate run before full classification.
func IsJobRelated(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	for _, kw := range jobKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// AnalyzeMessage classifies one message. ok is false when the message is
// not job related or could not be analyzed; the latter is logged.
func (ja *JobAnalyzer) AnalyzeMessage(msg *types.Message) (job *types.ParsedJob, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			id := ""
			if msg != nil {
				id = msg.ID
			}
			ja.log.Error().
				Str("message_id", id).
				Err(fmt.Errorf("%v", r)).
				Msg("message analysis failed, skipping")
			job, ok = nil, false
		}
	}()

	if msg == nil {
		return nil, false
	}
	return ja.parse(msg)
}

func parseMessage(msg *types.Message) (*types.ParsedJob, bool) {
	text := ExtractText(msg)
	if !IsJobRelated(text.Subject, text.Body) {
		return nil, false
	}

	return &types.ParsedJob{
		Company:     ExtractCompany(text.From, text.Subject, text.Body),
		Position:    ExtractPosition(text.Subject, text.Body),
		Status:      DetectStatus(text.Subject, text.Body),
		Source:      DetectSource(text.From),
		AppliedDate: ParseInternalDate(msg.InternalDate),
	}, true
}

// AnalyzeMessages classifies a batch in parallel. Results keep input order.
// Cancelling ctx stops scheduling; messages not yet analyzed get a nil Job
// and ctx.Err() is returned alongside the partial results.
func (ja *JobAnalyzer) AnalyzeMessages(ctx context.Context, msgs []*types.Message) ([]Result, error) {
	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		if msg != nil {
			results[i].MessageID = msg.ID
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ja.config.Workers)

	for i, msg := range msgs {
		if gctx.Err() != nil {
			break
		}
		i, msg := i, msg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job, ok := ja.AnalyzeMessage(msg)
			if ok {
				results[i].Job = job
				ja.log.Debug().
					Str("message_id", results[i].MessageID).
					Str("company", job.Company).
					Str("position", job.Position).
					Str("status", string(job.Status)).
					Msg("job email found")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// ParseStatus normalizes user-supplied status text.
func ParseStatus(s string) (types.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "applied", "application":
		return types.StatusApplied, true
	case "screening", "screen":
		return types.StatusScreening, true
	case "interviewing", "interview":
		return types.StatusInterviewing, true
	case "offer", "accepted":
		return types.StatusOffer, true
	case "rejected", "declined":
		return types.StatusRejected, true
	case "withdrawn":
		return types.StatusWithdrawn, true
	default:
		return "", false
	}
}
