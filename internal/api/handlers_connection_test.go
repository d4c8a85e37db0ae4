// handlers_connection_test.go - Connection lifecycle endpoint tests
package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
	"github.com/solar-control/backend/internal/serialport"
	"github.com/solar-control/backend/internal/session"
)

func TestListPorts(t *testing.T) {
	e := echo.New()

	t.Run("returns enumeration", func(t *testing.T) {
		h := NewConnectionHandler(&mockController{}, func() ([]models.PortInfo, error) {
			return []models.PortInfo{{Name: "/dev/ttyUSB0"}, {Name: "/dev/ttyACM1"}}, nil
		})

		c, rec := newJSONContext(e, http.MethodGet, "/api/ports", "")
		require.NoError(t, h.HandleListPorts(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/dev/ttyUSB0")
		assert.Contains(t, rec.Body.String(), "/dev/ttyACM1")
	})

	t.Run("empty enumeration is a JSON array", func(t *testing.T) {
		h := NewConnectionHandler(&mockController{}, func() ([]models.PortInfo, error) {
			return nil, nil
		})

		c, rec := newJSONContext(e, http.MethodGet, "/api/ports", "")
		require.NoError(t, h.HandleListPorts(c))
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("enumeration failure is a 500", func(t *testing.T) {
		h := NewConnectionHandler(&mockController{}, func() ([]models.PortInfo, error) {
			return nil, errors.New("udev exploded")
		})

		c, _ := newJSONContext(e, http.MethodGet, "/api/ports", "")
		err := h.HandleListPorts(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	})
}

func TestConnect(t *testing.T) {
	e := echo.New()

	t.Run("opens a session", func(t *testing.T) {
		ctrl := &mockController{
			connectFn: func(port string, baud int, rev models.Revision) (models.ConnectionSession, error) {
				return models.ConnectionSession{
					ID:       "abc",
					Port:     port,
					Baud:     baud,
					Revision: rev,
					Status:   models.ConnectionStatusConnected,
				}, nil
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, rec := newJSONContext(e, http.MethodPost, "/api/connection",
			`{"port":"/dev/ttyUSB0","baud":115200,"revision":"v2"}`)
		require.NoError(t, h.HandleConnect(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"port":"/dev/ttyUSB0"`)
		assert.Contains(t, rec.Body.String(), `"status":"connected"`)
	})

	t.Run("second connect conflicts", func(t *testing.T) {
		ctrl := &mockController{
			connectFn: func(string, int, models.Revision) (models.ConnectionSession, error) {
				return models.ConnectionSession{}, session.ErrAlreadyConnected
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, _ := newJSONContext(e, http.MethodPost, "/api/connection", `{"port":"/dev/ttyUSB0"}`)
		err := h.HandleConnect(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, "CONFLICT", apiErr.Code)
	})

	t.Run("unopenable port is a 502", func(t *testing.T) {
		ctrl := &mockController{
			connectFn: func(port string, _ int, _ models.Revision) (models.ConnectionSession, error) {
				return models.ConnectionSession{}, &serialport.ConnectionError{
					Port: port, Reason: "port not found", Err: errors.New("no such file"),
				}
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, _ := newJSONContext(e, http.MethodPost, "/api/connection", `{"port":"/dev/ttyUSB9"}`)
		err := h.HandleConnect(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Contains(t, apiErr.Details, "port not found")
	})

	t.Run("missing port is a 400", func(t *testing.T) {
		ctrl := &mockController{
			connectFn: func(string, int, models.Revision) (models.ConnectionSession, error) {
				return models.ConnectionSession{}, &protocol.ValidationError{Field: "port", Constraint: "must not be empty"}
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, _ := newJSONContext(e, http.MethodPost, "/api/connection", `{}`)
		err := h.HandleConnect(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	})
}

func TestGetConnection(t *testing.T) {
	e := echo.New()

	t.Run("no session is a 404", func(t *testing.T) {
		ctrl := &mockController{
			infoFn: func() (models.ConnectionSession, error) {
				return models.ConnectionSession{}, session.ErrNotConnected
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, _ := newJSONContext(e, http.MethodGet, "/api/connection", "")
		err := h.HandleGetConnection(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("live session descriptor", func(t *testing.T) {
		ctrl := &mockController{
			infoFn: func() (models.ConnectionSession, error) {
				return models.ConnectionSession{
					ID: "abc", Port: "/dev/ttyUSB0", Baud: 115200,
					Revision: models.RevisionV2, Status: models.ConnectionStatusConnected,
				}, nil
			},
		}
		h := NewConnectionHandler(ctrl, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/api/connection", "")
		require.NoError(t, h.HandleGetConnection(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"abc"`)
		assert.Contains(t, rec.Body.String(), `"revision":"v2"`)
	})
}

func TestDisconnectIdempotent(t *testing.T) {
	e := echo.New()
	h := NewConnectionHandler(&mockController{}, nil)

	for i := 0; i < 2; i++ {
		c, rec := newJSONContext(e, http.MethodDelete, "/api/connection", "")
		require.NoError(t, h.HandleDisconnect(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestGetState(t *testing.T) {
	e := echo.New()
	ctrl := &mockController{
		stateFn: func() (models.DeviceState, error) {
			state := models.NewDeviceState()
			state.TotalDevices = 9
			state.SystemState = "READY"
			return state, nil
		},
	}
	h := NewConnectionHandler(ctrl, nil)

	c, rec := newJSONContext(e, http.MethodGet, "/api/state", "")
	require.NoError(t, h.HandleGetState(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalDevices":9`)
	assert.Contains(t, rec.Body.String(), `"systemState":"READY"`)
}
