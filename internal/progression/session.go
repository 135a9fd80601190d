package progression

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edforge/course-player/internal/domain"
	"github.com/edforge/course-player/internal/infrastructure/driver"
	"github.com/edforge/course-player/internal/infrastructure/uuid"
	"go.uber.org/zap"
)

// ErrNoSuchSession unknown or foreign session id
var ErrNoSuchSession = errors.New("No such learning session")

// selection cache TTL, a reconnecting client older than this starts from the
// server-reported progress anyway
const selectionTTL = 24 * time.Hour

// Session one active learning session
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	CourseID   int64     `json:"course_id"`
	CreatedAt  time.Time `json:"created_at"`
	Controller *Controller

	mu     sync.Mutex
	subs   map[chan *Snapshot]struct{}
	closed bool
}

// Subscribe register a snapshot stream. The returned func must be called to
// unsubscribe. Slow consumers miss intermediate snapshots instead of blocking
// the controller.
func (s *Session) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
		}
		s.mu.Unlock()
	}
}

func (s *Session) broadcast(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop for slow consumers, the next snapshot supersedes anyway
		}
	}
}

// closeSubscribers ends every snapshot stream of the session
func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// Manager owns at most one live controller per learner. Opening a session for
// a new course closes the previous one and cancels its in-flight requests.
type Manager struct {
	gateway domain.CourseGateway
	journal domain.CompletionJournal
	cache   driver.KeyValueDB
	idGen   uuid.Generator
	logger  *zap.Logger

	mu     sync.Mutex
	byID   map[string]*Session
	byUser map[string]*Session
}

// NewManager create a session manager
func NewManager(
	gateway domain.CourseGateway,
	journal domain.CompletionJournal,
	cache driver.KeyValueDB,
	idGen uuid.Generator,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gateway: gateway,
		journal: journal,
		cache:   cache,
		idGen:   idGen,
		logger:  logger,
		byID:    make(map[string]*Session),
		byUser:  make(map[string]*Session),
	}
}

// Open starts a learning session: loads the course, selects the initial
// lesson and fetches its detail. Any previous session of the learner is
// closed first.
func (m *Manager) Open(ctx context.Context, userID string, courseID int64) (*Session, error) {
	sessionID, err := m.idGen.Generate()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if previous, ok := m.byUser[userID]; ok {
		previous.Controller.Close()
		previous.closeSubscribers()
		delete(m.byID, previous.ID)
		delete(m.byUser, userID)
		m.logger.Debug("Closed previous learning session",
			zap.String("session.id", previous.ID),
			zap.Int64("course.id", previous.CourseID),
		)
	}

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
		subs:      make(map[chan *Snapshot]struct{}),
	}
	session.Controller = NewController(
		m.gateway,
		&sessionJournal{inner: m.journal, sessionID: sessionID},
		m.logger.With(zap.String("session.id", sessionID)),
		userID,
		courseID,
	)
	session.Controller.SetOnChange(func(snap *Snapshot) {
		m.cacheSelection(sessionID, snap.CurrentLessonID)
		session.broadcast(snap)
	})
	m.byID[sessionID] = session
	m.byUser[userID] = session
	m.mu.Unlock()

	if err := session.Controller.LoadCourse(ctx); err != nil {
		// the session stays open so the load can be retried as-is
		return session, err
	}
	if current := session.Controller.Snapshot().CurrentLessonID; current != 0 {
		if err := session.Controller.SelectLesson(ctx, current); err != nil {
			// recoverable: catalog is loaded, detail can be re-fetched inline
			return session, err
		}
	}
	return session, nil
}

// Get returns the session if it exists and belongs to the user
func (m *Manager) Get(sessionID, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.byID[sessionID]
	if !ok || session.UserID != userID {
		return nil, ErrNoSuchSession
	}
	return session, nil
}

// Close ends a session and cancels its in-flight requests
func (m *Manager) Close(sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.byID[sessionID]
	if !ok || session.UserID != userID {
		return ErrNoSuchSession
	}
	session.Controller.Close()
	session.closeSubscribers()
	delete(m.byID, sessionID)
	delete(m.byUser, userID)
	return nil
}

// CloseAllForUser ends the user's active session, if any. Hooked to sign-out.
func (m *Manager) CloseAllForUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.byUser[userID]; ok {
		session.Controller.Close()
		session.closeSubscribers()
		delete(m.byID, session.ID)
		delete(m.byUser, userID)
	}
}

// cacheSelection best-effort write-through of the current selection so a
// reconnecting client can resume
func (m *Manager) cacheSelection(sessionID string, lessonID int64) {
	if m.cache == nil || lessonID == 0 {
		return
	}
	key := fmt.Sprintf("player:session:%s:lesson", sessionID)
	if err := m.cache.SetEX(key, fmt.Sprintf("%d", lessonID), selectionTTL); err != nil {
		m.logger.Debug("Failed to cache selection", zap.Error(err))
	}
}

// sessionJournal stamps the owning session id on every event
type sessionJournal struct {
	inner     domain.CompletionJournal
	sessionID string
}

func (sj *sessionJournal) Record(ctx context.Context, event *domain.CompletionEvent) error {
	if sj.inner == nil {
		return nil
	}
	event.SessionID = sj.sessionID
	return sj.inner.Record(ctx, event)
}
