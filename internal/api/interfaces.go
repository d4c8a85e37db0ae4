// interfaces.go - Handler contracts and the backend seams they depend on.
// Handlers talk to the session manager, runner, and archive through these
// interfaces so tests can substitute mocks for the hardware-facing layers.
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/archive"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
)

// HealthHandler handles service metadata requests
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ConnectionHandler handles port enumeration and the serial session lifecycle
type ConnectionHandler interface {
	HandleListPorts(c echo.Context) error
	HandleConnect(c echo.Context) error
	HandleGetConnection(c echo.Context) error
	HandleDisconnect(c echo.Context) error
	HandleGetState(c echo.Context) error
}

// CommandHandler handles the controller command endpoints
type CommandHandler interface {
	HandleServo(c echo.Context) error
	HandleCurrent(c echo.Context) error
	HandleProgram(c echo.Context) error
	HandleFrame(c echo.Context) error
	HandleStatus(c echo.Context) error
	HandleReinit(c echo.Context) error
	HandleStart(c echo.Context) error
	HandleCurrentQuery(c echo.Context) error
	HandleEmergency(c echo.Context) error
}

// LogHandler handles the retained traffic log, its filter, and exports
type LogHandler interface {
	HandleGetLog(c echo.Context) error
	HandleGetLogMsgpack(c echo.Context) error
	HandleGetFilter(c echo.Context) error
	HandleSetFilter(c echo.Context) error
	HandleClearLog(c echo.Context) error
	HandleExportLog(c echo.Context) error
	HandleListExports(c echo.Context) error
	HandleDownloadExport(c echo.Context) error
	HandleDeleteExport(c echo.Context) error
}

// SequenceHandler handles the sequence catalog and runner control
type SequenceHandler interface {
	HandleListSequences(c echo.Context) error
	HandleStartSequence(c echo.Context) error
	HandleStopSequence(c echo.Context) error
	HandleSequenceStatus(c echo.Context) error
}

// ArchiveHandler handles capture archive queries
type ArchiveHandler interface {
	HandleSearchArchive(c echo.Context) error
}

// Controller is the slice of the session manager the handlers drive.
// *session.Manager satisfies it.
type Controller interface {
	Connect(port string, baud int, rev models.Revision) (models.ConnectionSession, error)
	Disconnect() error
	Info() (models.ConnectionSession, error)
	State() (models.DeviceState, error)
	Send(cmd protocol.Command) error
}

// StateSource feeds the live stream with device state and session
// transitions. *session.Manager satisfies it.
type StateSource interface {
	SubscribeState(buffer int) (<-chan models.DeviceState, func())
	SubscribeSession(buffer int) (<-chan models.ConnectionSession, func())
}

// SequenceRunner is the slice of the sequence runner the handlers drive.
// *sequence.Runner satisfies it.
type SequenceRunner interface {
	Start(name string) (models.SequenceRun, error)
	Stop()
	Status() (models.SequenceRun, bool)
}

// SequenceCatalog lists the loaded sequence definitions.
// *sequence.Library satisfies it.
type SequenceCatalog interface {
	List() []models.Sequence
}

// ArchiveSearcher queries the capture archive. *archive.Store satisfies it.
type ArchiveSearcher interface {
	Search(ctx context.Context, q archive.Query, page, pageSize int) ([]models.LogEntry, int, error)
}
