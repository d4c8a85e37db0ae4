// handlers_log.go - Retained traffic log, display filter, and exports
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/storage"
)

// LogHandlerImpl implements the LogHandler interface
type LogHandlerImpl struct {
	log     *logbuf.Buffer
	exports storage.Store
}

// NewLogHandler creates a new log handler
func NewLogHandler(log *logbuf.Buffer, exports storage.Store) LogHandler {
	return &LogHandlerImpl{
		log:     log,
		exports: exports,
	}
}

type logResponse struct {
	Entries []models.LogEntry `json:"entries"`
	Total   int               `json:"total"`
}

type filterState struct {
	HideDebug bool `json:"hideDebug"`
}

type exportRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// HandleGetLog returns the visible entries in append order. tag keeps one
// classification; limit keeps only the trailing n entries. Total counts the
// matches before the limit so the panel can show "last 200 of 8541".
func (h *LogHandlerImpl) HandleGetLog(c echo.Context) error {
	entries := h.log.Visible()

	if tag := models.LogTag(c.QueryParam("tag")); tag != "" {
		kept := make([]models.LogEntry, 0, len(entries))
		for _, e := range entries {
			if e.Tag == tag {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	total := len(entries)
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return NewValidationError("limit")
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}

	return c.JSON(http.StatusOK, logResponse{Entries: entries, Total: total})
}

// HandleGetLogMsgpack returns the full visible log as one MessagePack blob.
// The panel uses it for bulk refresh; msgpack roughly halves the payload
// against JSON at log sizes.
func (h *LogHandlerImpl) HandleGetLogMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.log.Visible())
	if err != nil {
		return NewInternalError("failed to encode log", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleGetFilter reports the current display filter
func (h *LogHandlerImpl) HandleGetFilter(c echo.Context) error {
	return c.JSON(http.StatusOK, filterState{HideDebug: h.log.HideDebug()})
}

// HandleSetFilter toggles debug-line suppression. The retained buffer is
// untouched, so flipping the flag back replays the hidden lines.
func (h *LogHandlerImpl) HandleSetFilter(c echo.Context) error {
	var req filterState
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	h.log.SetHideDebug(req.HideDebug)
	return c.JSON(http.StatusOK, filterState{HideDebug: h.log.HideDebug()})
}

// HandleClearLog drops the retained buffer. Irreversible.
func (h *LogHandlerImpl) HandleClearLog(c echo.Context) error {
	h.log.Clear()
	return c.NoContent(http.StatusNoContent)
}

// HandleExportLog writes the full retained log, debug lines included, to a
// plain-text file in the export directory. An omitted name gets the
// timestamped default.
func (h *LogHandlerImpl) HandleExportLog(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	name := req.Name
	if name == "" {
		name = req.Path
	}
	if name == "" {
		name = storage.DefaultName(time.Now())
	}

	info, err := h.exports.Save(name, h.log.Snapshot())
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListExports lists saved exports, newest first
func (h *LogHandlerImpl) HandleListExports(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	infos, err := h.exports.List(limit)
	if err != nil {
		return NewInternalError("failed to list exports", err)
	}
	if infos == nil {
		infos = []*models.ExportInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

// HandleDownloadExport streams one saved export as a plain-text attachment
func (h *LogHandlerImpl) HandleDownloadExport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.exports.Get(id)
	if err != nil {
		return domainError(err)
	}
	f, err := h.exports.Open(id)
	if err != nil {
		return domainError(err)
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", info.Name))
	return c.Stream(http.StatusOK, "text/plain; charset=utf-8", f)
}

// HandleDeleteExport removes one saved export from disk
func (h *LogHandlerImpl) HandleDeleteExport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if err := h.exports.Delete(id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
