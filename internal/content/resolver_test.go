package content

import (
	"testing"

	"github.com/edforge/course-player/internal/domain"
	"github.com/stretchr/testify/assert"
)

func videoLesson(ref string) *domain.LessonModel {
	return &domain.LessonModel{ID: 1, Kind: domain.ContentVideo, ContentRef: ref}
}

func articleLesson(body string) *domain.LessonModel {
	return &domain.LessonModel{ID: 1, Kind: domain.ContentArticle, ContentRef: body}
}

func TestResolveVideoNormalizesToEmbedForm(t *testing.T) {
	cases := []struct {
		name string
		ref  string
	}{
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ"},
		{"mobile host", "https://m.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"nocookie host", "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ"},
		{"schemeless", "youtube.com/watch?v=dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := ResolvePlayable(videoLesson(tc.ref))
			assert.Equal(t, domain.ResolvedVideo, resolved.Kind)
			assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", resolved.EmbedURL)
		})
	}
}

func TestResolveVideoMalformedFallsBackToPlaceholder(t *testing.T) {
	cases := []struct {
		name string
		ref  string
	}{
		{"empty", ""},
		{"too short", "abc123"},
		{"whitespace only", "   "},
		{"foreign host", "https://vimeo.com/123456789"},
		{"watch without id", "https://www.youtube.com/watch"},
		{"id with bad characters", "dQw4w9WgXc!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := ResolvePlayable(videoLesson(tc.ref))
			assert.Equal(t, domain.ResolvedUnavailable, resolved.Kind)
			assert.Equal(t, PlaceholderEmbedURL, resolved.EmbedURL)
			assert.Equal(t, "video not available", resolved.Message)
		})
	}
}

func TestResolveArticle(t *testing.T) {
	resolved := ResolvePlayable(articleLesson("<p>hello</p>"))

	assert.Equal(t, domain.ResolvedArticle, resolved.Kind)
	assert.Equal(t, "<p>hello</p>", resolved.Body)
	assert.Empty(t, resolved.EmbedURL)
}

func TestResolveArticleEmptyBody(t *testing.T) {
	resolved := ResolvePlayable(articleLesson("  \n "))

	assert.Equal(t, domain.ResolvedUnavailable, resolved.Kind)
	// article and video carry distinct unavailable messages
	assert.Equal(t, "content not available", resolved.Message)
	assert.Empty(t, resolved.EmbedURL)
}

func TestResolveDetail(t *testing.T) {
	resolved := ResolveDetail(&domain.LessonDetail{
		LessonID:   1,
		Kind:       domain.ContentVideo,
		ContentRef: "https://youtu.be/dQw4w9WgXcQ",
	})

	assert.Equal(t, domain.ResolvedVideo, resolved.Kind)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", resolved.EmbedURL)
}
