package catalog

import (
	"sort"

	"github.com/edforge/course-player/internal/domain"
)

// Normalize orders sections and lessons by their order index and drops
// inactive lessons, so downstream logic can rely on sequence position.
// The input payload is not modified.
func Normalize(raw *domain.CourseCatalog) *domain.CourseCatalog {
	normalized := &domain.CourseCatalog{CourseID: raw.CourseID}
	for _, section := range raw.Sections {
		ns := &domain.SectionModel{
			ID:         section.ID,
			Title:      section.Title,
			OrderIndex: section.OrderIndex,
		}
		for _, lesson := range section.Lessons {
			if !lesson.IsActive {
				continue
			}
			copied := *lesson
			ns.Lessons = append(ns.Lessons, &copied)
		}
		sort.SliceStable(ns.Lessons, func(i, j int) bool {
			return ns.Lessons[i].OrderIndex < ns.Lessons[j].OrderIndex
		})
		normalized.Sections = append(normalized.Sections, ns)
	}
	sort.SliceStable(normalized.Sections, func(i, j int) bool {
		return normalized.Sections[i].OrderIndex < normalized.Sections[j].OrderIndex
	})
	return normalized
}

// Sequence returns the global lesson sequence: sections in section-order,
// lessons in lesson-order
func Sequence(c *domain.CourseCatalog) []*domain.LessonModel {
	var seq []*domain.LessonModel
	for _, section := range c.Sections {
		seq = append(seq, section.Lessons...)
	}
	return seq
}

// Find returns the lesson with the given id, or nil
func Find(c *domain.CourseCatalog, lessonID int64) *domain.LessonModel {
	for _, lesson := range Sequence(c) {
		if lesson.ID == lessonID {
			return lesson
		}
	}
	return nil
}

// FirstIncomplete returns the frontier lesson: the earliest incomplete lesson
// in global order, or nil when every lesson is completed
func FirstIncomplete(c *domain.CourseCatalog) *domain.LessonModel {
	for _, lesson := range Sequence(c) {
		if !lesson.IsCompleted {
			return lesson
		}
	}
	return nil
}

// InitialSelection determines which lesson a fresh session starts on: the
// frontier lesson, or the first lesson of the first non-empty section when the
// course is fully completed. Returns nil for an empty catalog.
func InitialSelection(c *domain.CourseCatalog) *domain.LessonModel {
	if frontier := FirstIncomplete(c); frontier != nil {
		return frontier
	}
	for _, section := range c.Sections {
		if len(section.Lessons) > 0 {
			return section.Lessons[0]
		}
	}
	return nil
}

// MarkCompleted flips the completion flag of a lesson in place. Only called
// after the server confirmed the completion.
func MarkCompleted(c *domain.CourseCatalog, lessonID int64) bool {
	lesson := Find(c, lessonID)
	if lesson == nil {
		return false
	}
	lesson.IsCompleted = true
	return true
}
