package content

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/edforge/course-player/internal/domain"
)

// PlaceholderEmbedURL deterministic fallback reference, rendered by the view
// as an explicit "content unavailable" affordance instead of a broken player
const PlaceholderEmbedURL = "https://www.youtube.com/embed/unavailable"

const embedPrefix = "https://www.youtube.com/embed/"

// minimum length of a recognizable raw video reference
const minVideoRefLength = 10

const (
	msgVideoUnavailable   = "video not available"
	msgArticleUnavailable = "content not available"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ResolvePlayable normalizes a lesson's raw content descriptor into a
// renderable form. Video references are accepted as a full embed URL, a
// canonical watch URL, a short-form URL or a bare video id, and all normalize
// to the embed form. Malformed references resolve to the deterministic
// placeholder, never an error.
func ResolvePlayable(lesson *domain.LessonModel) *domain.ResolvedContent {
	switch lesson.Kind {
	case domain.ContentArticle:
		return resolveArticle(lesson.ContentRef)
	default:
		return resolveVideo(lesson.ContentRef)
	}
}

// ResolveDetail resolves the content carried by a fully fetched lesson detail
func ResolveDetail(detail *domain.LessonDetail) *domain.ResolvedContent {
	switch detail.Kind {
	case domain.ContentArticle:
		return resolveArticle(detail.ContentRef)
	default:
		return resolveVideo(detail.ContentRef)
	}
}

func resolveArticle(body string) *domain.ResolvedContent {
	if strings.TrimSpace(body) == "" {
		return &domain.ResolvedContent{
			Kind:    domain.ResolvedUnavailable,
			Message: msgArticleUnavailable,
		}
	}
	// the body is rich text, rendering it is the view layer's concern
	return &domain.ResolvedContent{
		Kind: domain.ResolvedArticle,
		Body: body,
	}
}

func resolveVideo(ref string) *domain.ResolvedContent {
	ref = strings.TrimSpace(ref)
	if len(ref) < minVideoRefLength {
		return placeholderVideo()
	}
	if id, ok := extractVideoID(ref); ok {
		return &domain.ResolvedContent{
			Kind:     domain.ResolvedVideo,
			EmbedURL: embedPrefix + id,
		}
	}
	return placeholderVideo()
}

func placeholderVideo() *domain.ResolvedContent {
	return &domain.ResolvedContent{
		Kind:     domain.ResolvedUnavailable,
		EmbedURL: PlaceholderEmbedURL,
		Message:  msgVideoUnavailable,
	}
}

func extractVideoID(ref string) (string, bool) {
	if videoIDPattern.MatchString(ref) {
		return ref, true
	}

	withScheme := ref
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	parsed, err := url.Parse(withScheme)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if strings.HasPrefix(parsed.Path, "/embed/") {
			return validID(strings.TrimPrefix(parsed.Path, "/embed/"))
		}
		if parsed.Path == "/watch" {
			return validID(parsed.Query().Get("v"))
		}
	case "youtu.be":
		return validID(strings.TrimPrefix(parsed.Path, "/"))
	}
	return "", false
}

func validID(id string) (string, bool) {
	if videoIDPattern.MatchString(id) {
		return id, true
	}
	return "", false
}
