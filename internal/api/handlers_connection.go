// handlers_connection.go - Serial port enumeration and session lifecycle
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/models"
)

// ConnectionHandlerImpl implements the ConnectionHandler interface
type ConnectionHandlerImpl struct {
	ctrl      Controller
	listPorts func() ([]models.PortInfo, error)
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(ctrl Controller, listPorts func() ([]models.PortInfo, error)) ConnectionHandler {
	return &ConnectionHandlerImpl{
		ctrl:      ctrl,
		listPorts: listPorts,
	}
}

type connectRequest struct {
	Port     string `json:"port"`
	Baud     int    `json:"baud"`
	Revision string `json:"revision"`
}

// HandleListPorts returns the OS serial port enumeration
func (h *ConnectionHandlerImpl) HandleListPorts(c echo.Context) error {
	ports, err := h.listPorts()
	if err != nil {
		return NewInternalError("failed to enumerate serial ports", err)
	}
	if ports == nil {
		ports = []models.PortInfo{}
	}
	return c.JSON(http.StatusOK, ports)
}

// HandleConnect opens the serial session and starts its reader
func (h *ConnectionHandlerImpl) HandleConnect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	info, err := h.ctrl.Connect(req.Port, req.Baud, models.Revision(req.Revision))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleGetConnection returns the live session descriptor
func (h *ConnectionHandlerImpl) HandleGetConnection(c echo.Context) error {
	info, err := h.ctrl.Info()
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDisconnect closes the serial session. Disconnecting when nothing is
// connected succeeds, so the panel can always offer the button.
func (h *ConnectionHandlerImpl) HandleDisconnect(c echo.Context) error {
	if err := h.ctrl.Disconnect(); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetState returns the last-known chain state
func (h *ConnectionHandlerImpl) HandleGetState(c echo.Context) error {
	state, err := h.ctrl.State()
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, state)
}
