package http

import (
	"net/http"

	"github.com/edforge/course-player/internal/domain"
	"github.com/edforge/course-player/internal/infrastructure/auth"
	"github.com/edforge/course-player/internal/infrastructure/validate"
	"github.com/edforge/course-player/internal/progression"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SessionHandler learning session operations
type SessionHandler struct {
	manager   *progression.Manager
	jwtUtil   *auth.JWTUtil
	validator validate.Validator
}

// NewSessionHandler create a session controller instance
func NewSessionHandler(
	Manager *progression.Manager,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *SessionHandler {
	handler := &SessionHandler{Manager, JWTUtil, Validator}
	return handler
}

type openSessionPost struct {
	CourseID int64 `json:"course_id" validate:"required,min=1"`
}

type selectLessonPost struct {
	LessonID int64 `json:"lesson_id" validate:"required,min=1"`
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	State     *progression.Snapshot `json:"state"`
}

type certificateResponse struct {
	CertificateID string                `json:"certificate_id"`
	State         *progression.Snapshot `json:"state"`
}

// HandleOpenSession start a learning session for a course
func (sh *SessionHandler) HandleOpenSession(c echo.Context) (err error) {
	claims := sh.jwtUtil.GetContextToken(c)

	post := new(openSessionPost)
	if err = c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind session request"))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", errs))
	}

	session, err := sh.manager.Open(c.Request().Context(), claims.UID, post.CourseID)
	if err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusCreated, &sessionResponse{
		SessionID: session.ID,
		State:     session.Controller.Snapshot(),
	})
}

// HandleGetState current snapshot of the session
func (sh *SessionHandler) HandleGetState(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandleRetryLoad retry a failed course load on the same session
func (sh *SessionHandler) HandleRetryLoad(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}
	if err := session.Controller.LoadCourse(c.Request().Context()); err != nil {
		return sh.renderError(c, err)
	}
	if current := session.Controller.Snapshot().CurrentLessonID; current != 0 {
		if err := session.Controller.SelectLesson(c.Request().Context(), current); err != nil {
			return sh.renderError(c, err)
		}
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandleSelectLesson switch the current lesson. Locked lessons come back as a
// no-op with the unchanged state.
func (sh *SessionHandler) HandleSelectLesson(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}

	post := new(selectLessonPost)
	if err := c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind selection request"))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", errs))
	}

	if err := session.Controller.SelectLesson(c.Request().Context(), post.LessonID); err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandleCompleteLesson mark the lesson completed upstream
func (sh *SessionHandler) HandleCompleteLesson(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}

	post := new(selectLessonPost)
	if err := c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind completion request"))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", errs))
	}

	if err := session.Controller.CompleteLesson(c.Request().Context(), post.LessonID); err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandleAdvance complete the current lesson and move to the next one
func (sh *SessionHandler) HandleAdvance(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}
	if err := session.Controller.AdvanceToNext(c.Request().Context()); err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandlePrevious navigate to the previous lesson
func (sh *SessionHandler) HandlePrevious(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}
	if err := session.Controller.Previous(c.Request().Context()); err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, session.Controller.Snapshot())
}

// HandleCompleteCourse finalize the course and return the certificate id
func (sh *SessionHandler) HandleCompleteCourse(c echo.Context) error {
	session, err := sh.session(c)
	if err != nil {
		return sh.renderError(c, err)
	}
	certificateID, err := session.Controller.CompleteCourse(c.Request().Context())
	if err != nil {
		return sh.renderError(c, err)
	}
	return c.JSON(http.StatusOK, &certificateResponse{
		CertificateID: certificateID,
		State:         session.Controller.Snapshot(),
	})
}

// HandleCloseSession end the session and cancel in-flight work
func (sh *SessionHandler) HandleCloseSession(c echo.Context) error {
	claims := sh.jwtUtil.GetContextToken(c)
	if err := sh.manager.Close(c.Param("id"), claims.UID); err != nil {
		return sh.renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (sh *SessionHandler) session(c echo.Context) (*progression.Session, error) {
	claims := sh.jwtUtil.GetContextToken(c)
	return sh.manager.Get(c.Param("id"), claims.UID)
}

// renderError map the engine error taxonomy onto HTTP responses
func (sh *SessionHandler) renderError(c echo.Context, err error) error {
	traceID := c.Response().Header().Get(echo.HeaderXRequestID)
	cause := errors.Cause(err)
	var code int
	switch cause {
	case progression.ErrNoSuchSession, domain.ErrNoSuchLesson:
		code = http.StatusNotFound
	case domain.ErrSessionClosed:
		code = http.StatusGone
	case domain.ErrNoNextLesson, domain.ErrNoPreviousLesson,
		domain.ErrCourseNotAtEnd, domain.ErrCourseAlreadyCompleted,
		domain.ErrCatalogNotLoaded:
		code = http.StatusConflict
	case domain.ErrCatalogLoadFailed, domain.ErrLessonDetailFailed,
		domain.ErrCompletionFailed:
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	return c.JSON(code, NewRESTStandardError(code, err.Error()).SetTraceID(traceID))
}
