package http

import (
	infra "github.com/edforge/course-player/internal/infrastructure"
	"github.com/labstack/echo/v4"
)

func v1Endpoint(
	websocket *infra.Websocket,
	SessionHandler *SessionHandler,
	StreamHandler *StreamHandler,
	jwtMiddleware echo.MiddlewareFunc,
	refreshMiddleware echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix:      "/session",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"POST", "", SessionHandler.HandleOpenSession, nil},
					{"GET", "/:id/state", SessionHandler.HandleGetState, nil},
					{"POST", "/:id/retry", SessionHandler.HandleRetryLoad, nil},
					{"POST", "/:id/select", SessionHandler.HandleSelectLesson, nil},
					{"POST", "/:id/complete-lesson", SessionHandler.HandleCompleteLesson, nil},
					{"POST", "/:id/advance", SessionHandler.HandleAdvance, nil},
					{"POST", "/:id/previous", SessionHandler.HandlePrevious, nil},
					{"POST", "/:id/complete-course", SessionHandler.HandleCompleteCourse, nil},
					{"DELETE", "/:id", SessionHandler.HandleCloseSession, nil},
				},
			},
			{
				prefix:      "/ws",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"GET", "/state", websocket.WithHeartbeat(StreamHandler.HandleStateStream), nil},
				},
			},
		},
	}
}
