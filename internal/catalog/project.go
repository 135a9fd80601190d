package catalog

import (
	"github.com/edforge/course-player/internal/domain"
)

// Project derives a progress summary from the catalog. It is only a fallback
// display value before the authoritative server summary has loaded; once that
// is available the projected value is discarded, never blended.
func Project(c *domain.CourseCatalog) *domain.ProgressSummary {
	summary := &domain.ProgressSummary{}
	for _, lesson := range Sequence(c) {
		summary.TotalCount++
		if lesson.IsCompleted {
			summary.CompletedCount++
		}
	}
	if summary.TotalCount > 0 {
		summary.Percentage = float64(summary.CompletedCount) / float64(summary.TotalCount) * 100
	}
	return summary
}
