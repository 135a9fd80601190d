package domain

import "errors"

// ErrCatalogLoadFailed fatal to the session, surfaced as a full-page error with retry
var ErrCatalogLoadFailed = errors.New("Failed to load the course catalog")

// ErrLessonDetailFailed recoverable, selection is preserved and an inline retry is offered
var ErrLessonDetailFailed = errors.New("Failed to load the lesson detail")

// ErrCompletionFailed recoverable, no state mutation happened so the same action may be retried
var ErrCompletionFailed = errors.New("Failed to record the completion")

// ErrNoSuchLesson lesson id is not part of the loaded catalog
var ErrNoSuchLesson = errors.New("No such lesson in the catalog")

// ErrNoNextLesson the current lesson has no server-supplied next link
var ErrNoNextLesson = errors.New("No next lesson from the current position")

// ErrNoPreviousLesson the current lesson has no server-supplied previous link
var ErrNoPreviousLesson = errors.New("No previous lesson from the current position")

// ErrCourseNotAtEnd course completion is only valid from the last lesson
var ErrCourseNotAtEnd = errors.New("Course completion requires the last lesson to be current")

// ErrCourseAlreadyCompleted progress summary already reports 100%
var ErrCourseAlreadyCompleted = errors.New("Course is already fully completed")

// ErrCatalogNotLoaded operation requires a loaded catalog
var ErrCatalogNotLoaded = errors.New("Course catalog has not been loaded")

// ErrSessionClosed the learning session has been closed
var ErrSessionClosed = errors.New("Learning session is closed")
