package progression

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edforge/course-player/internal/domain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeGateway struct {
	mu sync.Mutex

	structure  *domain.CourseCatalog
	summary    *domain.ProgressSummary
	details    map[int64]*domain.LessonDetail
	completion *domain.CourseCompletion

	structureErr      error
	summaryErr        error
	detailErr         error
	completeErr       error
	completeCourseErr error

	detailCalls    []int64
	completeCalls  []int64
	courseCalls    int
	progressCalls  int
	structureCalls int

	// detailGate, when set, blocks FetchLessonDetail for the given lesson
	// until the channel is closed
	detailGate map[int64]chan struct{}
}

func (f *fakeGateway) FetchCourseLearningStructure(ctx context.Context, courseID int64) (*domain.CourseCatalog, error) {
	f.mu.Lock()
	f.structureCalls++
	f.mu.Unlock()
	if f.structureErr != nil {
		return nil, f.structureErr
	}
	return f.structure, nil
}

func (f *fakeGateway) FetchCourseProgress(ctx context.Context, courseID int64) (*domain.ProgressSummary, error) {
	f.mu.Lock()
	f.progressCalls++
	summary := f.summary
	f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	copied := *summary
	return &copied, nil
}

func (f *fakeGateway) FetchLessonDetail(ctx context.Context, lessonID int64) (*domain.LessonDetail, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, lessonID)
	gate := f.detailGate[lessonID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	detail, ok := f.details[lessonID]
	if !ok {
		return nil, errors.New("no such lesson")
	}
	copied := *detail
	return &copied, nil
}

func (f *fakeGateway) CompleteLesson(ctx context.Context, lessonID int64) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.mu.Lock()
	f.completeCalls = append(f.completeCalls, lessonID)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) CompleteCourse(ctx context.Context, courseID int64) (*domain.CourseCompletion, error) {
	f.mu.Lock()
	f.courseCalls++
	f.mu.Unlock()
	if f.completeCourseErr != nil {
		return nil, f.completeCourseErr
	}
	return f.completion, nil
}

type recordingJournal struct {
	mu     sync.Mutex
	events []*domain.CompletionEvent
}

func (rj *recordingJournal) Record(ctx context.Context, event *domain.CompletionEvent) error {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	rj.events = append(rj.events, event)
	return nil
}

func lessonModel(id int64, order int, completed bool) *domain.LessonModel {
	return &domain.LessonModel{
		ID:          id,
		Title:       "lesson",
		Kind:        domain.ContentVideo,
		ContentRef:  "dQw4w9WgXcQ",
		OrderIndex:  order,
		IsActive:    true,
		IsCompleted: completed,
	}
}

// newFakeGateway builds a two sections by two lessons course, ids 1..4 in
// global order, with navigation links chained in that order
func newFakeGateway(completed ...int64) *fakeGateway {
	done := make(map[int64]bool)
	for _, id := range completed {
		done[id] = true
	}
	structure := &domain.CourseCatalog{
		CourseID: 7,
		Sections: []*domain.SectionModel{
			{
				ID:         10,
				OrderIndex: 1,
				Lessons: []*domain.LessonModel{
					lessonModel(1, 1, done[1]),
					lessonModel(2, 2, done[2]),
				},
			},
			{
				ID:         11,
				OrderIndex: 2,
				Lessons: []*domain.LessonModel{
					lessonModel(3, 1, done[3]),
					lessonModel(4, 2, done[4]),
				},
			},
		},
	}

	details := make(map[int64]*domain.LessonDetail)
	var previous *domain.LessonRef
	for i, id := range []int64{1, 2, 3, 4} {
		detail := &domain.LessonDetail{
			LessonID:   id,
			Title:      "lesson",
			Kind:       domain.ContentVideo,
			ContentRef: "dQw4w9WgXcQ",
			Previous:   previous,
		}
		if i < 3 {
			detail.Next = &domain.LessonRef{ID: id + 1}
		}
		details[id] = detail
		previous = &domain.LessonRef{ID: id}
	}

	count := 0
	for _, id := range []int64{1, 2, 3, 4} {
		if done[id] {
			count++
		}
	}
	return &fakeGateway{
		structure: structure,
		summary: &domain.ProgressSummary{
			CompletedCount: count,
			TotalCount:     4,
			Percentage:     float64(count) / 4 * 100,
		},
		details:    details,
		completion: &domain.CourseCompletion{Success: true, CertificateID: "cert-7"},
		detailGate: make(map[int64]chan struct{}),
	}
}

func newTestController(gw *fakeGateway) *Controller {
	return NewController(gw, nil, nil, "user-1", 7)
}

func TestLoadCourseSelectsFrontier(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()

	err := ctrl.LoadCourse(context.Background())

	assert.NoError(t, err)
	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, int64(2), snap.CurrentLessonID)
	assert.Len(t, snap.Sections, 2)
	// server summary wins over the projected one
	assert.Equal(t, 1, snap.Progress.CompletedCount)
	assert.InDelta(t, 25.0, snap.Progress.Percentage, 0.001)
}

func TestLoadCourseAllOrNothing(t *testing.T) {
	gw := newFakeGateway()
	gw.summaryErr = errors.New("progress endpoint down")
	ctrl := newTestController(gw)
	defer ctrl.Close()

	err := ctrl.LoadCourse(context.Background())

	assert.Equal(t, domain.ErrCatalogLoadFailed, errors.Cause(err))
	snap := ctrl.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	// the structure fetch may have succeeded, it must not be applied alone
	assert.Empty(t, snap.Sections)
	assert.Zero(t, snap.CurrentLessonID)
}

func TestLoadCourseRetryRecovers(t *testing.T) {
	gw := newFakeGateway()
	gw.structureErr = errors.New("boom")
	ctrl := newTestController(gw)
	defer ctrl.Close()

	assert.Error(t, ctrl.LoadCourse(context.Background()))

	gw.structureErr = nil
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.Equal(t, PhaseReady, ctrl.Snapshot().Phase)
}

func TestSelectLessonFetchesDetail(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	err := ctrl.SelectLesson(context.Background(), 1)

	assert.NoError(t, err)
	snap := ctrl.Snapshot()
	assert.Equal(t, int64(1), snap.CurrentLessonID)
	assert.NotNil(t, snap.Detail)
	assert.Equal(t, int64(1), snap.Detail.LessonID)
	assert.NotNil(t, snap.Content)
	assert.Equal(t, domain.ResolvedVideo, snap.Content.Kind)
}

func TestSelectLockedLessonIsSilentNoOp(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	err := ctrl.SelectLesson(context.Background(), 3)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), ctrl.Snapshot().CurrentLessonID)
	// no detail fetch happened
	assert.Empty(t, gw.detailCalls)
}

func TestSelectUnknownLesson(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	assert.Equal(t, domain.ErrNoSuchLesson, ctrl.SelectLesson(context.Background(), 99))
}

func TestSelectLessonStaleResponseDiscarded(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	gate := make(chan struct{})
	gw.detailGate[1] = gate

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SelectLesson(context.Background(), 1)
	}()

	// wait for the slow fetch to be in flight
	assert.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.detailCalls) == 1
	}, time.Second, time.Millisecond)

	// a faster selection of the frontier supersedes it
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 2))
	close(gate)
	assert.NoError(t, <-done)

	snap := ctrl.Snapshot()
	assert.Equal(t, int64(2), snap.CurrentLessonID)
	assert.Equal(t, int64(2), snap.Detail.LessonID)
}

func TestSelectLessonFailureKeepsSelection(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	gw.detailErr = errors.New("detail endpoint down")
	err := ctrl.SelectLesson(context.Background(), 1)

	assert.Equal(t, domain.ErrLessonDetailFailed, errors.Cause(err))
	snap := ctrl.Snapshot()
	// the selection sticks so the fetch can be retried in place
	assert.Equal(t, int64(1), snap.CurrentLessonID)
	assert.Nil(t, snap.Detail)
	assert.NotEmpty(t, snap.Error)

	gw.detailErr = nil
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))
	assert.NotNil(t, ctrl.Snapshot().Detail)
}

func TestCompleteLessonAppliedAfterServerAck(t *testing.T) {
	gw := newFakeGateway()
	journal := new(recordingJournal)
	ctrl := NewController(gw, journal, nil, "user-1", 7)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	err := ctrl.CompleteLesson(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, []int64{1}, gw.completeCalls)
	snap := ctrl.Snapshot()
	for _, lesson := range snap.Sections[0].Lessons {
		if lesson.ID == 1 {
			assert.True(t, lesson.IsCompleted)
		}
	}
	assert.Len(t, journal.events, 1)
	assert.Equal(t, domain.EventLessonCompleted, journal.events[0].Kind)
	assert.Equal(t, int64(1), journal.events[0].LessonID)
}

func TestCompleteLessonNoOptimisticFlip(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	gw.completeErr = errors.New("completion endpoint down")
	err := ctrl.CompleteLesson(context.Background(), 1)

	assert.Equal(t, domain.ErrCompletionFailed, errors.Cause(err))
	snap := ctrl.Snapshot()
	assert.False(t, snap.Sections[0].Lessons[0].IsCompleted)
	// retry succeeds on the same lesson
	gw.completeErr = nil
	assert.NoError(t, ctrl.CompleteLesson(context.Background(), 1))
	assert.True(t, ctrl.Snapshot().Sections[0].Lessons[0].IsCompleted)
}

func TestCompleteLessonIdempotent(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	assert.NoError(t, ctrl.CompleteLesson(context.Background(), 1))
	// already completed, no service call was made
	assert.Empty(t, gw.completeCalls)
}

func TestAdvanceToNextSequencesCompletionBeforeNavigation(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	err := ctrl.AdvanceToNext(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []int64{1}, gw.completeCalls)
	snap := ctrl.Snapshot()
	assert.Equal(t, int64(2), snap.CurrentLessonID)
	assert.Equal(t, int64(2), snap.Detail.LessonID)
	assert.True(t, snap.Sections[0].Lessons[0].IsCompleted)
}

func TestAdvanceToNextCompletionFailureBlocksNavigation(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	gw.completeErr = errors.New("completion endpoint down")
	err := ctrl.AdvanceToNext(context.Background())

	assert.Equal(t, domain.ErrCompletionFailed, errors.Cause(err))
	// still on the first lesson, no navigation happened
	assert.Equal(t, int64(1), ctrl.Snapshot().CurrentLessonID)
}

func TestAdvanceToNextAlreadyCompletedSkipsCompletion(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	assert.NoError(t, ctrl.AdvanceToNext(context.Background()))
	assert.Empty(t, gw.completeCalls)
	assert.Equal(t, int64(2), ctrl.Snapshot().CurrentLessonID)
}

func TestAdvanceAtLastLesson(t *testing.T) {
	gw := newFakeGateway(1, 2, 3)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 4))

	assert.Equal(t, domain.ErrNoNextLesson, ctrl.AdvanceToNext(context.Background()))
}

func TestPreviousIsReadOnly(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 2))

	err := ctrl.Previous(context.Background())

	assert.NoError(t, err)
	snap := ctrl.Snapshot()
	assert.Equal(t, int64(1), snap.CurrentLessonID)
	// no completion mutation of any kind
	assert.Empty(t, gw.completeCalls)
	assert.False(t, snap.Sections[0].Lessons[1].IsCompleted)
}

func TestPreviousAtFirstLesson(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	assert.Equal(t, domain.ErrNoPreviousLesson, ctrl.Previous(context.Background()))
}

func TestCompleteCourseIssuesCertificate(t *testing.T) {
	gw := newFakeGateway(1, 2, 3)
	journal := new(recordingJournal)
	ctrl := NewController(gw, journal, nil, "user-1", 7)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 4))

	certificateID, err := ctrl.CompleteCourse(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "cert-7", certificateID)
	// the final lesson was completed before finalizing
	assert.Equal(t, []int64{4}, gw.completeCalls)
	assert.Equal(t, 1, gw.courseCalls)
	assert.Equal(t, "cert-7", ctrl.Snapshot().CertificateID)

	kinds := []string{journal.events[0].Kind, journal.events[1].Kind}
	assert.Equal(t, []string{domain.EventLessonCompleted, domain.EventCourseCompleted}, kinds)
	assert.Equal(t, "cert-7", journal.events[1].CertificateID)
}

func TestCompleteCourseRejectedMidCourse(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	_, err := ctrl.CompleteCourse(context.Background())

	assert.Equal(t, domain.ErrCourseNotAtEnd, err)
	assert.Zero(t, gw.courseCalls)
}

func TestCompleteCourseAlreadyCompleted(t *testing.T) {
	gw := newFakeGateway(1, 2, 3, 4)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 4))

	_, err := ctrl.CompleteCourse(context.Background())

	assert.Equal(t, domain.ErrCourseAlreadyCompleted, err)
	assert.Zero(t, gw.courseCalls)
}

func TestCompleteCourseUpstreamFailureIsRetryable(t *testing.T) {
	gw := newFakeGateway(1, 2, 3)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 4))

	gw.completeCourseErr = errors.New("certificate service down")
	_, err := ctrl.CompleteCourse(context.Background())
	assert.Equal(t, domain.ErrCompletionFailed, errors.Cause(err))

	gw.completeCourseErr = nil
	certificateID, err := ctrl.CompleteCourse(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "cert-7", certificateID)
}

func TestOperationsRequireLoadedCatalog(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()

	assert.Equal(t, domain.ErrCatalogNotLoaded, ctrl.SelectLesson(context.Background(), 1))
	assert.Equal(t, domain.ErrCatalogNotLoaded, ctrl.CompleteLesson(context.Background(), 1))
	assert.Equal(t, domain.ErrCatalogNotLoaded, ctrl.AdvanceToNext(context.Background()))
}

func TestClosedControllerRejectsOperations(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	ctrl.Close()

	assert.Equal(t, domain.ErrSessionClosed, ctrl.LoadCourse(context.Background()))
	assert.Equal(t, domain.ErrSessionClosed, ctrl.SelectLesson(context.Background(), 1))
	assert.Equal(t, domain.ErrSessionClosed, ctrl.CompleteLesson(context.Background(), 1))
}

func TestSnapshotFallsBackToProjectedProgress(t *testing.T) {
	gw := newFakeGateway(1)
	ctrl := newTestController(gw)
	defer ctrl.Close()
	assert.NoError(t, ctrl.LoadCourse(context.Background()))

	// simulate a summary refresh failure after a mutation, the last server
	// summary is kept rather than blended with the projection
	gw.summaryErr = errors.New("progress endpoint down")
	assert.NoError(t, ctrl.CompleteLesson(context.Background(), 2))

	snap := ctrl.Snapshot()
	assert.Equal(t, 1, snap.Progress.CompletedCount)
}

func TestOnChangePublishesSnapshots(t *testing.T) {
	gw := newFakeGateway()
	ctrl := newTestController(gw)
	defer ctrl.Close()

	var mu sync.Mutex
	var phases []Phase
	ctrl.SetOnChange(func(snap *Snapshot) {
		mu.Lock()
		phases = append(phases, snap.Phase)
		mu.Unlock()
	})

	assert.NoError(t, ctrl.LoadCourse(context.Background()))
	assert.NoError(t, ctrl.SelectLesson(context.Background(), 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseReady, PhaseReady}, phases)
}
