package progression

import (
	"context"
	"sync"
	"time"

	"github.com/edforge/course-player/internal/catalog"
	"github.com/edforge/course-player/internal/domain"
	"github.com/pkg/errors"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Phase controller lifecycle phase
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
	PhaseLoadingLesson Phase = "loading_lesson"
	PhaseError         Phase = "error"
)

// Controller owns the catalog and selection state of one learning session.
// All mutation goes through its operations; the view layer only sees
// snapshots. Outbound calls run on the session context so closing the session
// cancels in-flight work, and every applied result is guarded by a generation
// check so a superseded response can never overwrite newer state.
type Controller struct {
	gateway domain.CourseGateway
	journal domain.CompletionJournal
	logger  *zap.Logger

	userID   string
	courseID int64

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	phase           Phase
	catalog         *domain.CourseCatalog
	summary         *domain.ProgressSummary
	serverSummary   bool
	currentLessonID int64
	detail          *domain.LessonDetail
	certificateID   string
	lastErr         error
	closed          bool

	loadGen   uint64
	detailGen uint64

	onChange func(*Snapshot)
}

// NewController create a controller for one (learner, course) session
func NewController(
	gateway domain.CourseGateway,
	journal domain.CompletionJournal,
	logger *zap.Logger,
	userID string,
	courseID int64,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		gateway:  gateway,
		journal:  journal,
		logger:   logger,
		userID:   userID,
		courseID: courseID,
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseIdle,
	}
}

// CourseID course bound to this controller
func (ctrl *Controller) CourseID() int64 {
	return ctrl.courseID
}

// SetOnChange register a snapshot publisher, invoked after every settled
// operation. Must be set before the first operation.
func (ctrl *Controller) SetOnChange(fn func(*Snapshot)) {
	ctrl.mu.Lock()
	ctrl.onChange = fn
	ctrl.mu.Unlock()
}

// Close cancels in-flight work and rejects further operations
func (ctrl *Controller) Close() {
	ctrl.mu.Lock()
	ctrl.closed = true
	ctrl.mu.Unlock()
	ctrl.cancel()
}

// LoadCourse fetches the full catalog and the progress summary concurrently.
// Neither result is applied without the other. On success the initial
// selection is the frontier lesson, or the first lesson of the first
// non-empty section when everything is already completed.
func (ctrl *Controller) LoadCourse(ctx context.Context) error {
	span, _ := apm.StartSpan(ctx, "Controller.LoadCourse", "service")
	defer span.End()

	ctrl.mu.Lock()
	if ctrl.closed {
		ctrl.mu.Unlock()
		return domain.ErrSessionClosed
	}
	ctrl.phase = PhaseLoading
	ctrl.lastErr = nil
	ctrl.loadGen++
	gen := ctrl.loadGen
	ctrl.mu.Unlock()

	var (
		structure *domain.CourseCatalog
		summary   *domain.ProgressSummary
	)
	g, gctx := errgroup.WithContext(ctrl.ctx)
	g.Go(func() error {
		var err error
		structure, err = ctrl.gateway.FetchCourseLearningStructure(gctx, ctrl.courseID)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = ctrl.gateway.FetchCourseProgress(gctx, ctrl.courseID)
		return err
	})
	err := g.Wait()

	ctrl.mu.Lock()
	if ctrl.closed || gen != ctrl.loadGen {
		ctrl.mu.Unlock()
		return nil
	}
	if err != nil {
		ctrl.phase = PhaseError
		ctrl.lastErr = errors.Wrap(domain.ErrCatalogLoadFailed, err.Error())
		ctrl.logger.Error("Failed to load course",
			zap.Int64("course.id", ctrl.courseID),
			zap.Error(err),
		)
		failure := ctrl.lastErr
		ctrl.mu.Unlock()
		ctrl.publish()
		return failure
	}

	ctrl.catalog = catalog.Normalize(structure)
	ctrl.summary = summary
	ctrl.serverSummary = true
	if initial := catalog.InitialSelection(ctrl.catalog); initial != nil {
		ctrl.currentLessonID = initial.ID
	}
	ctrl.detail = nil
	ctrl.phase = PhaseReady
	ctrl.mu.Unlock()

	ctrl.publish()
	return nil
}

// SelectLesson switches the current lesson and fetches its detail. Locked
// lessons are rejected as a silent no-op without any service call. When calls
// overlap, only the result matching the latest selection is applied; stale
// responses are discarded silently.
func (ctrl *Controller) SelectLesson(ctx context.Context, lessonID int64) error {
	span, _ := apm.StartSpan(ctx, "Controller.SelectLesson", "service")
	defer span.End()

	ctrl.mu.Lock()
	if ctrl.closed {
		ctrl.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if ctrl.catalog == nil {
		ctrl.mu.Unlock()
		return domain.ErrCatalogNotLoaded
	}
	lesson := catalog.Find(ctrl.catalog, lessonID)
	if lesson == nil {
		ctrl.mu.Unlock()
		return domain.ErrNoSuchLesson
	}
	if !catalog.IsClickable(lesson, ctrl.catalog, ctrl.currentLessonID) {
		ctrl.logger.Debug("Rejected selection of a locked lesson",
			zap.Int64("lesson.id", lessonID),
		)
		ctrl.mu.Unlock()
		return nil
	}
	ctrl.currentLessonID = lessonID
	ctrl.phase = PhaseLoadingLesson
	ctrl.lastErr = nil
	ctrl.detailGen++
	gen := ctrl.detailGen
	ctrl.mu.Unlock()

	detail, err := ctrl.gateway.FetchLessonDetail(ctrl.ctx, lessonID)

	ctrl.mu.Lock()
	if ctrl.closed || gen != ctrl.detailGen {
		// a later selection superseded this fetch
		ctrl.mu.Unlock()
		return nil
	}
	ctrl.phase = PhaseReady
	if err != nil {
		// keep the selection, leave the previous detail stale
		ctrl.lastErr = errors.Wrap(domain.ErrLessonDetailFailed, err.Error())
		ctrl.logger.Warn("Failed to fetch lesson detail",
			zap.Int64("lesson.id", lessonID),
			zap.Error(err),
		)
		failure := ctrl.lastErr
		ctrl.mu.Unlock()
		ctrl.publish()
		return failure
	}
	if detail.LessonID != ctrl.currentLessonID {
		ctrl.mu.Unlock()
		return nil
	}
	ctrl.detail = detail
	ctrl.mu.Unlock()

	ctrl.publish()
	return nil
}

// CompleteLesson records a lesson completion upstream and applies it locally
// only after the server confirmed. Calling it on an already completed lesson
// is a safe no-op.
func (ctrl *Controller) CompleteLesson(ctx context.Context, lessonID int64) error {
	span, _ := apm.StartSpan(ctx, "Controller.CompleteLesson", "service")
	defer span.End()

	ctrl.mu.Lock()
	if ctrl.closed {
		ctrl.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if ctrl.catalog == nil {
		ctrl.mu.Unlock()
		return domain.ErrCatalogNotLoaded
	}
	lesson := catalog.Find(ctrl.catalog, lessonID)
	if lesson == nil {
		ctrl.mu.Unlock()
		return domain.ErrNoSuchLesson
	}
	if lesson.IsCompleted {
		ctrl.mu.Unlock()
		return nil
	}
	ctrl.mu.Unlock()

	if err := ctrl.gateway.CompleteLesson(ctrl.ctx, lessonID); err != nil {
		// no optimistic flip: the lesson stays incomplete locally
		ctrl.logger.Warn("Failed to complete lesson",
			zap.Int64("lesson.id", lessonID),
			zap.Error(err),
		)
		return errors.Wrap(domain.ErrCompletionFailed, err.Error())
	}

	ctrl.mu.Lock()
	if ctrl.closed {
		ctrl.mu.Unlock()
		return domain.ErrSessionClosed
	}
	catalog.MarkCompleted(ctrl.catalog, lessonID)
	ctrl.mu.Unlock()

	ctrl.record(&domain.CompletionEvent{
		UserID:     ctrl.userID,
		CourseID:   ctrl.courseID,
		LessonID:   lessonID,
		Kind:       domain.EventLessonCompleted,
		OccurredAt: time.Now().UTC(),
	})
	ctrl.refreshSummary()
	ctrl.publish()
	return nil
}

// AdvanceToNext completes the current lesson if needed, then follows the
// server-supplied next link. The two steps are explicitly sequenced: the
// navigation only happens once the completion has durably settled.
func (ctrl *Controller) AdvanceToNext(ctx context.Context) error {
	span, _ := apm.StartSpan(ctx, "Controller.AdvanceToNext", "service")
	defer span.End()

	currentID, next, err := ctrl.navTarget(true)
	if err != nil {
		return err
	}
	if next == nil {
		return domain.ErrNoNextLesson
	}
	if err := ctrl.ensureCompleted(ctx, currentID); err != nil {
		return err
	}
	return ctrl.SelectLesson(ctx, next.ID)
}

// Previous follows the server-supplied previous link. Read-only navigation,
// never mutates completion or progress.
func (ctrl *Controller) Previous(ctx context.Context) error {
	span, _ := apm.StartSpan(ctx, "Controller.Previous", "service")
	defer span.End()

	_, previous, err := ctrl.navTarget(false)
	if err != nil {
		return err
	}
	if previous == nil {
		return domain.ErrNoPreviousLesson
	}
	return ctrl.SelectLesson(ctx, previous.ID)
}

// CompleteCourse finalizes the course from the last lesson. Valid only when
// the current lesson has no next link and the server-reported progress is
// below 100%; the percentage check is authoritative. Returns the issued
// certificate id on success. On failure no course-level mutation is assumed
// and the call is safely retryable.
func (ctrl *Controller) CompleteCourse(ctx context.Context) (string, error) {
	span, _ := apm.StartSpan(ctx, "Controller.CompleteCourse", "service")
	defer span.End()

	currentID, next, err := ctrl.navTarget(true)
	if err != nil {
		return "", err
	}
	if next != nil {
		return "", domain.ErrCourseNotAtEnd
	}

	ctrl.mu.Lock()
	if ctrl.serverSummary && ctrl.summary != nil && ctrl.summary.Percentage >= 100 {
		ctrl.mu.Unlock()
		return "", domain.ErrCourseAlreadyCompleted
	}
	ctrl.mu.Unlock()

	if err := ctrl.ensureCompleted(ctx, currentID); err != nil {
		return "", err
	}

	completion, err := ctrl.gateway.CompleteCourse(ctrl.ctx, ctrl.courseID)
	if err != nil {
		ctrl.logger.Warn("Failed to complete course",
			zap.Int64("course.id", ctrl.courseID),
			zap.Error(err),
		)
		return "", errors.Wrap(domain.ErrCompletionFailed, err.Error())
	}
	if !completion.Success {
		return "", errors.Wrap(domain.ErrCompletionFailed, "upstream rejected course completion")
	}

	ctrl.mu.Lock()
	ctrl.certificateID = completion.CertificateID
	ctrl.mu.Unlock()

	ctrl.record(&domain.CompletionEvent{
		UserID:        ctrl.userID,
		CourseID:      ctrl.courseID,
		Kind:          domain.EventCourseCompleted,
		CertificateID: completion.CertificateID,
		OccurredAt:    time.Now().UTC(),
	})
	ctrl.refreshSummary()
	ctrl.publish()
	return completion.CertificateID, nil
}

// navTarget reads the navigation link off the loaded detail. forward selects
// the next link, otherwise the previous one.
func (ctrl *Controller) navTarget(forward bool) (int64, *domain.LessonRef, error) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.closed {
		return 0, nil, domain.ErrSessionClosed
	}
	if ctrl.catalog == nil {
		return 0, nil, domain.ErrCatalogNotLoaded
	}
	if ctrl.detail == nil || ctrl.detail.LessonID != ctrl.currentLessonID {
		// navigation depends on the server links of the current detail
		return 0, nil, domain.ErrLessonDetailFailed
	}
	if forward {
		return ctrl.currentLessonID, ctrl.detail.Next, nil
	}
	return ctrl.currentLessonID, ctrl.detail.Previous, nil
}

func (ctrl *Controller) ensureCompleted(ctx context.Context, lessonID int64) error {
	ctrl.mu.Lock()
	lesson := catalog.Find(ctrl.catalog, lessonID)
	completed := lesson != nil && lesson.IsCompleted
	ctrl.mu.Unlock()
	if completed {
		return nil
	}
	return ctrl.CompleteLesson(ctx, lessonID)
}

// refreshSummary re-fetches the authoritative server summary after a
// mutation. On failure the previous summary is kept, the projected value
// would not be any fresher.
func (ctrl *Controller) refreshSummary() {
	summary, err := ctrl.gateway.FetchCourseProgress(ctrl.ctx, ctrl.courseID)
	if err != nil {
		ctrl.logger.Warn("Failed to refresh progress summary",
			zap.Int64("course.id", ctrl.courseID),
			zap.Error(err),
		)
		return
	}
	ctrl.mu.Lock()
	if !ctrl.closed {
		ctrl.summary = summary
		ctrl.serverSummary = true
	}
	ctrl.mu.Unlock()
}

func (ctrl *Controller) record(event *domain.CompletionEvent) {
	if ctrl.journal == nil {
		return
	}
	if err := ctrl.journal.Record(ctrl.ctx, event); err != nil {
		ctrl.logger.Warn("Failed to journal completion event",
			zap.String("event.kind", event.Kind),
			zap.Int64("course.id", event.CourseID),
			zap.Error(err),
		)
	}
}

func (ctrl *Controller) publish() {
	ctrl.mu.Lock()
	fn := ctrl.onChange
	ctrl.mu.Unlock()
	if fn != nil {
		fn(ctrl.Snapshot())
	}
}
