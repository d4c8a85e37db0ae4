// handlers_sequence_test.go - Sequence endpoint tests
package api

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
	"github.com/solar-control/backend/internal/sequence"
)

type mockRunner struct {
	startFn  func(name string) (models.SequenceRun, error)
	statusFn func() (models.SequenceRun, bool)
	stopped  bool
}

func (m *mockRunner) Start(name string) (models.SequenceRun, error) {
	if m.startFn != nil {
		return m.startFn(name)
	}
	return models.SequenceRun{Name: name}, nil
}

func (m *mockRunner) Stop() { m.stopped = true }

func (m *mockRunner) Status() (models.SequenceRun, bool) {
	if m.statusFn != nil {
		return m.statusFn()
	}
	return models.SequenceRun{}, false
}

func TestListSequences(t *testing.T) {
	e := echo.New()
	h := NewSequenceHandler(&mockRunner{}, sequence.NewLibrary())

	c, rec := newJSONContext(e, http.MethodGet, "/api/sequences", "")
	require.NoError(t, h.HandleListSequences(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{"dance", "wave", "rainbow"} {
		assert.Contains(t, rec.Body.String(), `"name":"`+name+`"`)
	}
}

func TestStartSequence(t *testing.T) {
	e := echo.New()

	t.Run("accepted", func(t *testing.T) {
		runner := &mockRunner{
			startFn: func(name string) (models.SequenceRun, error) {
				return models.SequenceRun{Name: name, Cycle: 1, Step: 1, StartedAt: 42}, nil
			},
		}
		h := NewSequenceHandler(runner, sequence.NewLibrary())

		c, rec := newJSONContext(e, http.MethodPost, "/api/sequences/wave/start", "")
		c.SetParamNames("name")
		c.SetParamValues("wave")
		require.NoError(t, h.HandleStartSequence(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"wave"`)
	})

	t.Run("unknown name is a 404", func(t *testing.T) {
		runner := &mockRunner{
			startFn: func(string) (models.SequenceRun, error) {
				return models.SequenceRun{}, sequence.ErrUnknownSequence
			},
		}
		h := NewSequenceHandler(runner, sequence.NewLibrary())

		c, _ := newJSONContext(e, http.MethodPost, "/api/sequences/nope/start", "")
		c.SetParamNames("name")
		c.SetParamValues("nope")
		err := h.HandleStartSequence(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("already running is a 409", func(t *testing.T) {
		runner := &mockRunner{
			startFn: func(string) (models.SequenceRun, error) {
				return models.SequenceRun{}, sequence.ErrSequenceRunning
			},
		}
		h := NewSequenceHandler(runner, sequence.NewLibrary())

		c, _ := newJSONContext(e, http.MethodPost, "/api/sequences/wave/start", "")
		c.SetParamNames("name")
		c.SetParamValues("wave")
		err := h.HandleStartSequence(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
	})

	t.Run("revision mismatch is a 400", func(t *testing.T) {
		runner := &mockRunner{
			startFn: func(string) (models.SequenceRun, error) {
				return models.SequenceRun{}, &protocol.ValidationError{
					Field: "sequence", Constraint: "sequence targets v1 firmware, session is v2",
				}
			},
		}
		h := NewSequenceHandler(runner, sequence.NewLibrary())

		c, _ := newJSONContext(e, http.MethodPost, "/api/sequences/dance/start", "")
		c.SetParamNames("name")
		c.SetParamValues("dance")
		err := h.HandleStartSequence(c)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})
}

func TestStopSequence(t *testing.T) {
	e := echo.New()
	runner := &mockRunner{}
	h := NewSequenceHandler(runner, sequence.NewLibrary())

	c, rec := newJSONContext(e, http.MethodPost, "/api/sequences/stop", "")
	require.NoError(t, h.HandleStopSequence(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, runner.stopped)
}

func TestSequenceStatus(t *testing.T) {
	e := echo.New()

	t.Run("idle", func(t *testing.T) {
		h := NewSequenceHandler(&mockRunner{}, sequence.NewLibrary())

		c, rec := newJSONContext(e, http.MethodGet, "/api/sequences/status", "")
		require.NoError(t, h.HandleSequenceStatus(c))
		assert.Contains(t, rec.Body.String(), `"running":false`)
		assert.NotContains(t, rec.Body.String(), `"run"`)
	})

	t.Run("running", func(t *testing.T) {
		runner := &mockRunner{
			statusFn: func() (models.SequenceRun, bool) {
				return models.SequenceRun{Name: "dance", Cycle: 2, Step: 3, StartedAt: 42}, true
			},
		}
		h := NewSequenceHandler(runner, sequence.NewLibrary())

		c, rec := newJSONContext(e, http.MethodGet, "/api/sequences/status", "")
		require.NoError(t, h.HandleSequenceStatus(c))
		assert.Contains(t, rec.Body.String(), `"running":true`)
		assert.Contains(t, rec.Body.String(), `"name":"dance"`)
		assert.Contains(t, rec.Body.String(), `"cycle":2`)
	})
}
