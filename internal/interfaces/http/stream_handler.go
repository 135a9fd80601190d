package http

import (
	"github.com/edforge/course-player/internal/infrastructure/auth"
	"github.com/edforge/course-player/internal/progression"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// StreamHandler pushes session snapshots to the view layer
type StreamHandler struct {
	manager *progression.Manager
	jwtUtil *auth.JWTUtil
}

// NewStreamHandler create a state stream handler
func NewStreamHandler(Manager *progression.Manager, JWTUtil *auth.JWTUtil) *StreamHandler {
	return &StreamHandler{Manager, JWTUtil}
}

// HandleStateStream stream every settled snapshot of the session over the
// socket, starting with the current one. Returns once the client or the
// session goes away, which also ends the heartbeat wrapper loop.
func (st *StreamHandler) HandleStateStream(c echo.Context, conn *websocket.Conn) error {
	claims := st.jwtUtil.GetContextToken(c)
	session, err := st.manager.Get(c.QueryParam("session_id"), claims.UID)
	if err != nil {
		conn.WriteJSON(NewRESTStandardError(404, err.Error()))
		return err
	}

	snapshots, unsubscribe := session.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(session.Controller.Snapshot()); err != nil {
		return err
	}
	for snap := range snapshots {
		if err := conn.WriteJSON(snap); err != nil {
			return err
		}
	}
	return errors.New("snapshot stream closed")
}
