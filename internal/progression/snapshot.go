package progression

import (
	"github.com/edforge/course-player/internal/catalog"
	"github.com/edforge/course-player/internal/content"
	"github.com/edforge/course-player/internal/domain"
)

// LessonView per-lesson state as the view layer sees it
type LessonView struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	Kind            domain.ContentKind `json:"content_type"`
	DurationMinutes float64            `json:"duration_minutes"`
	OrderIndex      int                `json:"order_index"`
	IsCompleted     bool               `json:"is_completed"`
	State           domain.LessonState `json:"state"`
	Clickable       bool               `json:"clickable"`
}

// SectionView section with classified lessons
type SectionView struct {
	ID         int64        `json:"id"`
	Title      string       `json:"title"`
	OrderIndex int          `json:"order_index"`
	Lessons    []LessonView `json:"lessons"`
}

// Snapshot immutable view of the session state, rebuilt after every settled
// operation
type Snapshot struct {
	CourseID        int64                   `json:"course_id"`
	Phase           Phase                   `json:"phase"`
	Sections        []SectionView           `json:"sections"`
	CurrentLessonID int64                   `json:"current_lesson_id"`
	Detail          *domain.LessonDetail    `json:"lesson_detail,omitempty"`
	Content         *domain.ResolvedContent `json:"content,omitempty"`
	Progress        *domain.ProgressSummary `json:"progress,omitempty"`
	CertificateID   string                  `json:"certificate_id,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

// Snapshot build the current state projection. The progress block is the
// server summary when available, otherwise the locally projected fallback.
func (ctrl *Controller) Snapshot() *Snapshot {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	snap := &Snapshot{
		CourseID:        ctrl.courseID,
		Phase:           ctrl.phase,
		CurrentLessonID: ctrl.currentLessonID,
		CertificateID:   ctrl.certificateID,
	}
	if ctrl.lastErr != nil {
		snap.Error = ctrl.lastErr.Error()
	}
	if ctrl.catalog == nil {
		return snap
	}

	for _, section := range ctrl.catalog.Sections {
		sv := SectionView{
			ID:         section.ID,
			Title:      section.Title,
			OrderIndex: section.OrderIndex,
		}
		for _, lesson := range section.Lessons {
			state := catalog.Classify(lesson, ctrl.catalog, ctrl.currentLessonID)
			sv.Lessons = append(sv.Lessons, LessonView{
				ID:              lesson.ID,
				Title:           lesson.Title,
				Kind:            lesson.Kind,
				DurationMinutes: lesson.DurationMinutes,
				OrderIndex:      lesson.OrderIndex,
				IsCompleted:     lesson.IsCompleted,
				State:           state,
				Clickable:       state != domain.LessonLocked,
			})
		}
		snap.Sections = append(snap.Sections, sv)
	}

	if ctrl.serverSummary && ctrl.summary != nil {
		copied := *ctrl.summary
		snap.Progress = &copied
	} else {
		snap.Progress = catalog.Project(ctrl.catalog)
	}

	if ctrl.detail != nil && ctrl.detail.LessonID == ctrl.currentLessonID {
		copied := *ctrl.detail
		snap.Detail = &copied
		snap.Content = content.ResolveDetail(ctrl.detail)
	}
	return snap
}
