package journal

import (
	"context"

	"github.com/edforge/course-player/internal/domain"
	"github.com/edforge/course-player/internal/infrastructure/driver"
	"github.com/edforge/course-player/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// SQLJournal persists completion events through the transactional driver
// layer, mysql or postgres depending on config. Callers treat it as
// best-effort: a journal failure never blocks progression.
type SQLJournal struct {
	Conn   driver.ITransactionalDB
	logger *zap.Logger
}

var _ domain.CompletionJournal = &SQLJournal{}

// NewSQLJournal create a journal backed by the given connection
func NewSQLJournal(Conn driver.ITransactionalDB, logger *zap.Logger) *SQLJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLJournal{
		Conn:   Conn,
		logger: logger,
	}
}

// Record implement domain.CompletionJournal
func (j *SQLJournal) Record(ctx context.Context, event *domain.CompletionEvent) error {
	ctx = logging.SetLoggerInContext(ctx, j.logger)
	_, err := j.Conn.ExecContext(ctx, `
INSERT INTO completion_event
    (session_id, user_id, course_id, lesson_id, kind, certificate_id, occurred_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
	`, event.SessionID, event.UserID, event.CourseID, event.LessonID, event.Kind, event.CertificateID, event.OccurredAt)
	return err
}

// RecentByUser returns the latest completion events of a user, newest first
func (j *SQLJournal) RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.CompletionEvent, error) {
	ctx = logging.SetLoggerInContext(ctx, j.logger)
	rows, err := j.Conn.QueryContext(ctx, `
SELECT
    session_id, user_id, course_id, lesson_id, kind, certificate_id, occurred_at
FROM
    completion_event
WHERE
    user_id = $1
ORDER BY occurred_at DESC
LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.CompletionEvent
	for rows.Next() {
		item := new(domain.CompletionEvent)
		err := rows.Scan(&item.SessionID, &item.UserID, &item.CourseID, &item.LessonID, &item.Kind, &item.CertificateID, &item.OccurredAt)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}
