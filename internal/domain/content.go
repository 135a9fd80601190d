package domain

// ResolvedKind discriminates the resolver output
type ResolvedKind string

const (
	ResolvedVideo       ResolvedKind = "video"
	ResolvedArticle     ResolvedKind = "article"
	ResolvedUnavailable ResolvedKind = "unavailable"
)

// ResolvedContent renderable form of a lesson's raw content reference.
// Unavailable is a first-class value, not an error: the view renders a
// deliberate placeholder instead of a broken player.
type ResolvedContent struct {
	Kind     ResolvedKind `json:"kind"`
	EmbedURL string       `json:"embed_url,omitempty"`
	Body     string       `json:"body,omitempty"`
	Message  string       `json:"message,omitempty"`
}
