package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YKarmar/JobMail/internal/types"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func textPart(s string) types.MessagePart {
	return types.MessagePart{MimeType: "text/plain", Body: &types.PartBody{Data: enc(s)}}
}

func newMessage(id, from, subject, body, internalDate string) *types.Message {
	part := textPart(body)
	part.Headers = []types.Header{
		{Name: "From", Value: from},
		{Name: "Subject", Value: subject},
	}
	return &types.Message{ID: id, InternalDate: internalDate, Payload: &part}
}

func newTestAnalyzer(workers int) *JobAnalyzer {
	return NewJobAnalyzer(Config{Workers: workers}, zerolog.Nop())
}

func TestIsJobRelated(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    bool
	}{
		{"keyword in subject", "Your Application", "", true},
		{"keyword in body", "Hello", "we reviewed your candidate profile", true},
		{"keyword inside a larger word", "Jobseekers weekly", "", true},
		{"role inside parole", "Parole hearing notes", "", true},
		{"no keyword", "Lunch on Friday?", "Pizza or sushi", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsJobRelated(tt.subject, tt.body))
		})
	}
}

func TestAnalyzeMessage(t *testing.T) {
	ja := newTestAnalyzer(1)

	t.Run("returns nothing for unrelated mail", func(t *testing.T) {
		for i, subject := range []string{"Lunch on Friday?", "Your receipt", "Weekend plans"} {
			msg := newMessage(fmt.Sprint(i), "friend@gmail.com", subject, "see you soon", "1700000000000")
			job, ok := ja.AnalyzeMessage(msg)
			assert.False(t, ok)
			assert.Nil(t, job)
		}
	})

	t.Run("returns nothing for nil message", func(t *testing.T) {
		job, ok := ja.AnalyzeMessage(nil)
		assert.False(t, ok)
		assert.Nil(t, job)

		job, ok = ja.AnalyzeMessage(&types.Message{ID: "empty"})
		assert.False(t, ok)
		assert.Nil(t, job)
	})

	t.Run("builds a record for a confirmation mail", func(t *testing.T) {
		msg := newMessage("m1",
			`"Acme Corp" <no-reply@jobs.lever.co>`,
			"Application for: Senior Backend Engineer at Acme",
			"Thank you for applying to Acme!",
			"1700000000000")

		job, ok := ja.AnalyzeMessage(msg)
		require.True(t, ok)
		require.NotNil(t, job)

		assert.Equal(t, "Acme Corp", job.Company)
		assert.Equal(t, "Senior Backend Engineer", job.Position)
		assert.Equal(t, types.StatusApplied, job.Status)
		require.NotNil(t, job.Source)
		assert.Equal(t, "Lever", *job.Source)
		require.NotNil(t, job.AppliedDate)
		assert.True(t, job.AppliedDate.Equal(time.UnixMilli(1700000000000)))
	})

	t.Run("uses sentinels and nil optionals when nothing is found", func(t *testing.T) {
		msg := newMessage("m2", "someone@gmail.com", "Quick question about the job", "", "")

		job, ok := ja.AnalyzeMessage(msg)
		require.True(t, ok)
		assert.Equal(t, UnknownCompany, job.Company)
		assert.Equal(t, UnknownPosition, job.Position)
		assert.Equal(t, types.StatusApplied, job.Status)
		assert.Nil(t, job.Source)
		assert.Nil(t, job.AppliedDate)
	})

	t.Run("rejection wins over applied boilerplate", func(t *testing.T) {
		msg := newMessage("m3", "Globex <talent@globex.com>", "Your application",
			"Thank you for applying. Unfortunately we will not continue.", "1700000000000")

		job, ok := ja.AnalyzeMessage(msg)
		require.True(t, ok)
		assert.Equal(t, types.StatusRejected, job.Status)
		assert.Equal(t, "Globex", job.Company)
	})

	t.Run("is deterministic", func(t *testing.T) {
		msg := newMessage("m4", "Recruiting <careers@initech.io>", "Re: Data Scientist application",
			"We would like to schedule an interview.", "1700000000000")

		first, ok1 := ja.AnalyzeMessage(msg)
		second, ok2 := ja.AnalyzeMessage(msg)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, first, second)
		assert.Equal(t, "Initech", first.Company)
		assert.Equal(t, "Data Scientist", first.Position)
		assert.Equal(t, types.StatusInterviewing, first.Status)
	})
}

func TestAnalyzeMessages(t *testing.T) {
	t.Run("keeps input order", func(t *testing.T) {
		ja := newTestAnalyzer(4)

		var msgs []*types.Message
		for i := 0; i < 20; i++ {
			if i%2 == 0 {
				msgs = append(msgs, newMessage(fmt.Sprintf("id-%d", i), "hr@acme.com",
					"Application received", "Thank you for your application", ""))
			} else {
				msgs = append(msgs, newMessage(fmt.Sprintf("id-%d", i), "mom@gmail.com",
					"Dinner", "Call me back", ""))
			}
		}
		msgs = append(msgs, nil)

		results, err := ja.AnalyzeMessages(context.Background(), msgs)
		require.NoError(t, err)
		require.Len(t, results, len(msgs))

		for i := 0; i < 20; i++ {
			assert.Equal(t, fmt.Sprintf("id-%d", i), results[i].MessageID)
			if i%2 == 0 {
				require.NotNil(t, results[i].Job, "message %d", i)
				assert.Equal(t, "Acme", results[i].Job.Company)
			} else {
				assert.Nil(t, results[i].Job, "message %d", i)
			}
		}
		assert.Nil(t, results[20].Job)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ja := newTestAnalyzer(2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		msgs := []*types.Message{
			newMessage("a", "hr@acme.com", "Application received", "", ""),
		}
		results, err := ja.AnalyzeMessages(ctx, msgs)
		assert.ErrorIs(t, err, context.Canceled)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].MessageID)
		assert.Nil(t, results[0].Job)
	})
}

func TestAnalyzeMessageRecoversFromPanic(t *testing.T) {
	var logs bytes.Buffer
	ja := NewJobAnalyzer(Config{Workers: 2}, zerolog.New(&logs))
	ja.parse = func(msg *types.Message) (*types.ParsedJob, bool) {
		if msg.ID == "bad" {
			panic("index out of range")
		}
		return parseMessage(msg)
	}

	job, ok := ja.AnalyzeMessage(newMessage("bad", "hr@acme.com", "Application received", "", ""))
	assert.False(t, ok)
	assert.Nil(t, job)
	assert.Contains(t, logs.String(), "message analysis failed")
	assert.Contains(t, logs.String(), `"message_id":"bad"`)

	t.Run("batch continues past the failing message", func(t *testing.T) {
		msgs := []*types.Message{
			newMessage("bad", "hr@acme.com", "Application received", "", ""),
			newMessage("good", "hr@acme.com", "Application received", "", ""),
		}
		results, err := ja.AnalyzeMessages(context.Background(), msgs)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Nil(t, results[0].Job)
		require.NotNil(t, results[1].Job)
		assert.Equal(t, "Acme", results[1].Job.Company)
	})
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want types.Status
		ok   bool
	}{
		{"applied", types.StatusApplied, true},
		{" Interviewing ", types.StatusInterviewing, true},
		{"OFFER", types.StatusOffer, true},
		{"declined", types.StatusRejected, true},
		{"screening", types.StatusScreening, true},
		{"withdrawn", types.StatusWithdrawn, true},
		{"ghosted", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
