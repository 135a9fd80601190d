package domain

// ContentKind lesson content type
type ContentKind string

const (
	ContentVideo   ContentKind = "video"
	ContentArticle ContentKind = "article"
)

// LessonState classification of a lesson relative to the learner's progress.
//
// Priority: completed lessons stay reachable for replay, the currently
// displayed lesson is always reachable, the single frontier lesson is the only
// one a learner may advance into, everything else is locked.
type LessonState string

const (
	LessonCompleted       LessonState = "completed"
	LessonCurrent         LessonState = "current"
	LessonFirstIncomplete LessonState = "first_incomplete"
	LessonLocked          LessonState = "locked"
)

// LessonModel immutable once loaded, except IsCompleted which is flipped only
// after the server confirmed the completion
type LessonModel struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Kind            ContentKind `json:"content_type"`
	ContentRef      string      `json:"content_ref"`
	DurationMinutes float64     `json:"duration_minutes"`
	OrderIndex      int         `json:"order_index"`
	IsActive        bool        `json:"is_active"`
	IsCompleted     bool        `json:"is_completed"`
}

// SectionModel ordered group of lessons within a course
type SectionModel struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	OrderIndex int            `json:"order_index"`
	Lessons    []*LessonModel `json:"lessons"`
}

// CourseCatalog aggregate root for one learning session. Sections in
// section-order, lessons in lesson-order define the global lesson sequence
// used for locking.
type CourseCatalog struct {
	CourseID int64           `json:"course_id"`
	Sections []*SectionModel `json:"sections"`
}

// ProgressSummary server-derived aggregate completion metrics. The server
// value is authoritative over any locally projected one.
type ProgressSummary struct {
	CompletedCount int     `json:"completed_count"`
	TotalCount     int     `json:"total_count"`
	Percentage     float64 `json:"percentage"`
}

// LessonRef server-supplied navigation link
type LessonRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// LessonDetail fully resolved content for the selected lesson, replaced
// wholesale on selection change. Previous/Next are computed by the server,
// the engine never recomputes global ordering for navigation.
type LessonDetail struct {
	LessonID        int64       `json:"lesson_id"`
	SectionID       int64       `json:"section_id"`
	Title           string      `json:"title"`
	Kind            ContentKind `json:"content_type"`
	ContentRef      string      `json:"content_ref"`
	DurationMinutes float64     `json:"duration_minutes"`
	Previous        *LessonRef  `json:"previous_lesson,omitempty"`
	Next            *LessonRef  `json:"next_lesson,omitempty"`
}

// CourseCompletion result of the course-completion call
type CourseCompletion struct {
	Success       bool   `json:"success"`
	CertificateID string `json:"certificate_id,omitempty"`
}
