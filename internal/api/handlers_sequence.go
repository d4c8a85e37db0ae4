// handlers_sequence.go - Sequence catalog and runner control
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/models"
)

// SequenceHandlerImpl implements the SequenceHandler interface
type SequenceHandlerImpl struct {
	runner  SequenceRunner
	catalog SequenceCatalog
}

// NewSequenceHandler creates a new sequence handler
func NewSequenceHandler(runner SequenceRunner, catalog SequenceCatalog) SequenceHandler {
	return &SequenceHandlerImpl{
		runner:  runner,
		catalog: catalog,
	}
}

type sequenceStatusResponse struct {
	Running bool                `json:"running"`
	Run     *models.SequenceRun `json:"run,omitempty"`
}

// HandleListSequences returns the loaded catalog, built-ins included
func (h *SequenceHandlerImpl) HandleListSequences(c echo.Context) error {
	seqs := h.catalog.List()
	if seqs == nil {
		seqs = []models.Sequence{}
	}
	return c.JSON(http.StatusOK, seqs)
}

// HandleStartSequence starts the named sequence on the live session
func (h *SequenceHandlerImpl) HandleStartSequence(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return NewValidationError("name")
	}

	run, err := h.runner.Start(name)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// HandleStopSequence halts the running sequence before its next send.
// Stopping when nothing runs succeeds.
func (h *SequenceHandlerImpl) HandleStopSequence(c echo.Context) error {
	h.runner.Stop()
	return c.NoContent(http.StatusNoContent)
}

// HandleSequenceStatus reports what the runner is doing right now
func (h *SequenceHandlerImpl) HandleSequenceStatus(c echo.Context) error {
	run, running := h.runner.Status()
	resp := sequenceStatusResponse{Running: running}
	if running {
		resp.Run = &run
	}
	return c.JSON(http.StatusOK, resp)
}
