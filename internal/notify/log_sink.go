package notify

import (
	"context"
	"log/slog"

	"github.com/skillswap/exchange-api/internal/models"
)

// LogSink records session-end events for the rating and analytics
// consumers, which read them from the structured log stream.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log.With("sink", "session_end")}
}

func (s *LogSink) Consume(ctx context.Context, evt models.SessionEndedEvent) error {
	s.log.InfoContext(ctx, "exchange session ended",
		"session_id", evt.SessionID,
		"ended_by", evt.EndedBy,
		"ended_at", evt.EndedAt,
		slog.Group("participant_a", "id", evt.ParticipantA.ID, "learned_skill_id", evt.ParticipantA.LearnedSkillID),
		slog.Group("participant_b", "id", evt.ParticipantB.ID, "learned_skill_id", evt.ParticipantB.LearnedSkillID),
	)
	return nil
}
