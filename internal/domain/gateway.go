package domain

import (
	"context"
	"time"
)

// CourseGateway operations the engine consumes from the upstream LMS API.
// Transport and wire format are the implementation's concern.
type CourseGateway interface {
	FetchCourseLearningStructure(ctx context.Context, courseID int64) (*CourseCatalog, error)
	FetchCourseProgress(ctx context.Context, courseID int64) (*ProgressSummary, error)
	FetchLessonDetail(ctx context.Context, lessonID int64) (*LessonDetail, error)
	CompleteLesson(ctx context.Context, lessonID int64) error
	CompleteCourse(ctx context.Context, courseID int64) (*CourseCompletion, error)
}

// completion event kinds
const (
	EventLessonCompleted = "lesson_completed"
	EventCourseCompleted = "course_completed"
)

// CompletionEvent audit record of a server-confirmed completion observed by
// this service
type CompletionEvent struct {
	SessionID     string
	UserID        string
	CourseID      int64
	LessonID      int64 // zero for course-level events
	Kind          string
	CertificateID string
	OccurredAt    time.Time
}

// CompletionJournal best-effort audit sink, failures must never block
// progression
type CompletionJournal interface {
	Record(ctx context.Context, event *CompletionEvent) error
}
