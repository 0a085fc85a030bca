package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/exchange-api/internal/apperrors"
)

func TestCanTransition(t *testing.T) {
	all := []ProposalStatus{StatusPending, StatusAccepted, StatusRejected, StatusExpired, StatusForfeited}
	legal := map[[2]ProposalStatus]bool{
		{StatusPending, StatusAccepted}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusPending, StatusExpired}:    true,
		{StatusPending, StatusForfeited}:  true,
		{StatusAccepted, StatusForfeited}: true,
	}

	req := require.New(t)
	for _, from := range all {
		for _, to := range all {
			req.Equal(legal[[2]ProposalStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	req.Equal([]ProposalStatus{StatusPending, StatusAccepted}, SourcesOf(StatusForfeited))
	req.Equal([]ProposalStatus{StatusPending}, SourcesOf(StatusAccepted))
	req.False(ProposalStatus("canceled").Valid())
}

func TestExchangeProposal_IsOverdue(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("should be overdue only while pending and past horizon", func(t *testing.T) {
		req := require.New(t)
		p := &ExchangeProposal{Status: StatusPending, ExpiresAt: now.Add(-time.Second)}
		req.True(p.IsOverdue(now))

		p.Status = StatusAccepted
		req.False(p.IsOverdue(now))

		p.Status = StatusPending
		p.ExpiresAt = now
		req.False(p.IsOverdue(now))
	})

	t.Run("should derive learned skills per participant", func(t *testing.T) {
		req := require.New(t)
		p := &ExchangeProposal{ProposerID: "p", CounterpartyID: "c", OfferedSkillID: "x", RequestedSkillID: "y"}
		req.Equal("y", p.LearnedSkill("p"))
		req.Equal("x", p.LearnedSkill("c"))
		req.True(p.IsParticipant("c"))
		req.False(p.IsParticipant("u"))
	})
}

func TestNewPayload(t *testing.T) {
	cases := []struct {
		name       string
		kind       MessageKind
		body       string
		contentRef string
		want       Payload
	}{
		{"text with body", KindText, "hi", "", TextPayload{Text: "hi"}},
		{"link with body", KindLink, "https://go.dev", "", LinkPayload{URL: "https://go.dev"}},
		{"image with ref", KindImage, "", "https://cdn/x.png", ImagePayload{Ref: "https://cdn/x.png"}},
		{"video with ref", KindVideo, "", "ref", VideoPayload{Ref: "ref"}},
		{"document with ref", KindDocument, "", "ref", DocumentPayload{Ref: "ref"}},
		{"text without body", KindText, "  ", "", nil},
		{"text with ref", KindText, "hi", "ref", nil},
		{"image without ref", KindImage, "", "", nil},
		{"image with body", KindImage, "caption", "ref", nil},
		{"unknown kind", MessageKind("audio"), "hi", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			got, err := NewPayload(tc.kind, tc.body, tc.contentRef)
			if tc.want == nil {
				req.ErrorIs(err, apperrors.ErrInvalidMessage)
				req.Nil(got)
				return
			}
			req.NoError(err)
			req.Equal(tc.want, got)
		})
	}
}

func TestMessage_JSON(t *testing.T) {
	req := require.New(t)
	msg := Message{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Seq:       3,
		SenderID:  "p",
		Payload:   ImagePayload{Ref: "https://cdn/a.png"},
		SentAt:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(msg)
	req.NoError(err)
	req.Contains(string(raw), `"kind":"image"`)
	req.Contains(string(raw), `"content_ref":"https://cdn/a.png"`)
	req.NotContains(string(raw), `"body"`)

	var decoded Message
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal(msg, decoded)
}
