// routes.go - Route registration for the control panel API
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Controller Controller
	Stream     StateSource
	Log        *logbuf.Buffer
	Runner     SequenceRunner
	Catalog    SequenceCatalog
	Exports    storage.Store
	Archive    ArchiveSearcher // nil when the capture archive is disabled
	ListPorts  func() ([]models.PortInfo, error)
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Connection ConnectionHandler
	Command    CommandHandler
	Log        LogHandler
	Sequence   SequenceHandler
	Archive    ArchiveHandler
	Stream     *StreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(deps.Version),
		Connection: NewConnectionHandler(deps.Controller, deps.ListPorts),
		Command:    NewCommandHandler(deps.Controller),
		Log:        NewLogHandler(deps.Log, deps.Exports),
		Sequence:   NewSequenceHandler(deps.Runner, deps.Catalog),
		Archive:    NewArchiveHandler(deps.Archive),
		Stream:     NewStreamHandler(deps.Log, deps.Stream),
	}
}

// RouteOptions tunes route registration
type RouteOptions struct {
	RequireAuth bool
	AuthToken   string
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, opts RouteOptions) {
	// Health check stays reachable without a token
	e.GET("/health", handlers.Health.HandleHealth)

	api := e.Group("/api")
	if opts.RequireAuth && opts.AuthToken != "" {
		api.Use(bearerAuth(opts.AuthToken))
	}

	api.GET("/ports", handlers.Connection.HandleListPorts)

	// Connection lifecycle
	api.POST("/connection", handlers.Connection.HandleConnect)
	api.GET("/connection", handlers.Connection.HandleGetConnection)
	api.DELETE("/connection", handlers.Connection.HandleDisconnect)
	api.GET("/state", handlers.Connection.HandleGetState)

	// Controller commands
	commandGroup := api.Group("/commands")
	commandGroup.POST("/servo", handlers.Command.HandleServo)
	commandGroup.POST("/current", handlers.Command.HandleCurrent)
	commandGroup.POST("/program", handlers.Command.HandleProgram)
	commandGroup.POST("/frame", handlers.Command.HandleFrame)
	commandGroup.POST("/status", handlers.Command.HandleStatus)
	commandGroup.POST("/reinit", handlers.Command.HandleReinit)
	commandGroup.POST("/start", handlers.Command.HandleStart)
	commandGroup.POST("/current-query", handlers.Command.HandleCurrentQuery)
	commandGroup.POST("/emergency", handlers.Command.HandleEmergency)

	// Traffic log and exports
	logGroup := api.Group("/log")
	logGroup.GET("", handlers.Log.HandleGetLog)
	logGroup.DELETE("", handlers.Log.HandleClearLog)
	logGroup.GET("/msgpack", handlers.Log.HandleGetLogMsgpack)
	logGroup.GET("/filter", handlers.Log.HandleGetFilter)
	logGroup.PUT("/filter", handlers.Log.HandleSetFilter)
	logGroup.POST("/export", handlers.Log.HandleExportLog)
	logGroup.GET("/exports", handlers.Log.HandleListExports)
	logGroup.GET("/exports/:id/download", handlers.Log.HandleDownloadExport)
	logGroup.DELETE("/exports/:id", handlers.Log.HandleDeleteExport)

	// Sequences
	sequenceGroup := api.Group("/sequences")
	sequenceGroup.GET("", handlers.Sequence.HandleListSequences)
	sequenceGroup.GET("/status", handlers.Sequence.HandleSequenceStatus)
	sequenceGroup.POST("/stop", handlers.Sequence.HandleStopSequence)
	sequenceGroup.POST("/:name/start", handlers.Sequence.HandleStartSequence)

	// Capture archive
	api.GET("/archive/entries", handlers.Archive.HandleSearchArchive)

	// Live stream
	api.GET("/ws", handlers.Stream.HandleStream)
}

// SetupMiddleware configures the error handler and server identity
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
	e.HideBanner = true
	e.HidePort = true
}

// bearerAuth guards the API group with a static token. Browsers cannot set
// headers on a WebSocket upgrade, so a token query parameter is accepted too.
func bearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			candidate := c.QueryParam("token")
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(header, "Bearer ") {
				candidate = strings.TrimPrefix(header, "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
				return next(c)
			}
			return &APIError{
				Status:  http.StatusUnauthorized,
				Code:    "UNAUTHORIZED",
				Message: "missing or invalid token",
			}
		}
	}
}
