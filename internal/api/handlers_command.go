// handlers_command.go - Controller command endpoints
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/protocol"
)

// CommandHandlerImpl implements the CommandHandler interface
type CommandHandlerImpl struct {
	ctrl Controller
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(ctrl Controller) CommandHandler {
	return &CommandHandlerImpl{ctrl: ctrl}
}

type servoRequest struct {
	Device string `json:"device"`
	Angle  int    `json:"angle"`
}

type currentRequest struct {
	Device string `json:"device"`
	MA     int    `json:"ma"`
}

type programRequest struct {
	Device     string `json:"device"`
	GroupID    int    `json:"groupId"`
	GroupTotal int    `json:"groupTotal"`
	MA         int    `json:"ma"`
	ExposureMs int    `json:"exposureMs"`
}

type frameRequest struct {
	FrameCount int `json:"frameCount"`
	DelayMs    int `json:"delayMs"`
}

type emergencyRequest struct {
	Confirm bool `json:"confirm"`
}

type commandResponse struct {
	Sent string `json:"sent"`
}

// send validates and transmits one command, mapping any failure onto the
// HTTP surface. Validation failures guarantee nothing reached the wire.
func (h *CommandHandlerImpl) send(c echo.Context, cmd protocol.Command) error {
	if err := h.ctrl.Send(cmd); err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, commandResponse{Sent: cmd.Encode()})
}

// defaultDevice falls back to the broadcast address when the client omits one
func defaultDevice(dev string) string {
	if dev == "" {
		return protocol.BroadcastDevice
	}
	return dev
}

// HandleServo moves a servo to an absolute angle
func (h *CommandHandlerImpl) HandleServo(c echo.Context) error {
	var req servoRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.send(c, protocol.SetServo{Device: defaultDevice(req.Device), Angle: req.Angle})
}

// HandleCurrent drives an LED channel at a constant current
func (h *CommandHandlerImpl) HandleCurrent(c echo.Context) error {
	var req currentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.send(c, protocol.SetCurrent{Device: defaultDevice(req.Device), MilliAmps: req.MA})
}

// HandleProgram stores group exposure parameters on a device
func (h *CommandHandlerImpl) HandleProgram(c echo.Context) error {
	var req programRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.send(c, protocol.Program{
		Device:     defaultDevice(req.Device),
		GroupID:    req.GroupID,
		GroupTotal: req.GroupTotal,
		MilliAmps:  req.MA,
		ExposureMs: req.ExposureMs,
	})
}

// HandleFrame configures the frame count and interframe delay
func (h *CommandHandlerImpl) HandleFrame(c echo.Context) error {
	var req frameRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.send(c, protocol.SetFrame{FrameCount: req.FrameCount, DelayMs: req.DelayMs})
}

// HandleStatus requests a status report from every device
func (h *CommandHandlerImpl) HandleStatus(c echo.Context) error {
	return h.send(c, protocol.Status{})
}

// HandleReinit re-runs chain enumeration on the controller
func (h *CommandHandlerImpl) HandleReinit(c echo.Context) error {
	return h.send(c, protocol.Reinit{})
}

// HandleStart begins the programmed exposure run
func (h *CommandHandlerImpl) HandleStart(c echo.Context) error {
	return h.send(c, protocol.Start{})
}

// HandleCurrentQuery asks every channel for live current telemetry
func (h *CommandHandlerImpl) HandleCurrentQuery(c echo.Context) error {
	return h.send(c, protocol.CurrentQuery{})
}

// HandleEmergency shuts every channel down. Refused unless the client sets
// confirm explicitly; the panel shows a dialog before sending it.
func (h *CommandHandlerImpl) HandleEmergency(c echo.Context) error {
	var req emergencyRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.send(c, protocol.Emergency{Confirmed: req.Confirm})
}
