package catalog

import (
	"github.com/edforge/course-player/internal/domain"
)

// Classify decides the access state of a lesson under the strict linear-gating
// policy. Rules in priority order:
//
//  1. completed lessons are always reachable (replay allowed)
//  2. the currently displayed lesson is always reachable, regardless of
//     position, so a learner is never stranded mid-lesson by partial server
//     data
//  3. the earliest incomplete lesson in global order is the single frontier a
//     learner may advance into
//  4. everything else is locked
//
// currentLessonID zero means no lesson is selected yet.
func Classify(lesson *domain.LessonModel, c *domain.CourseCatalog, currentLessonID int64) domain.LessonState {
	if lesson.IsCompleted {
		return domain.LessonCompleted
	}
	if lesson.ID == currentLessonID {
		return domain.LessonCurrent
	}
	if frontier := FirstIncomplete(c); frontier != nil && frontier.ID == lesson.ID {
		return domain.LessonFirstIncomplete
	}
	return domain.LessonLocked
}

// IsClickable reports whether a selection attempt on the lesson is permitted.
// Locked lessons reject selection as a no-op, not an error.
func IsClickable(lesson *domain.LessonModel, c *domain.CourseCatalog, currentLessonID int64) bool {
	switch Classify(lesson, c, currentLessonID) {
	case domain.LessonCompleted, domain.LessonCurrent, domain.LessonFirstIncomplete:
		return true
	}
	return false
}

// ClassifyAll computes the state of every lesson in one pass
func ClassifyAll(c *domain.CourseCatalog, currentLessonID int64) map[int64]domain.LessonState {
	states := make(map[int64]domain.LessonState)
	for _, lesson := range Sequence(c) {
		states[lesson.ID] = Classify(lesson, c, currentLessonID)
	}
	return states
}
