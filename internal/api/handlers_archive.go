// handlers_archive.go - Capture archive queries
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/archive"
	"github.com/solar-control/backend/internal/models"
)

// ArchiveHandlerImpl implements the ArchiveHandler interface
type ArchiveHandlerImpl struct {
	store ArchiveSearcher
}

// NewArchiveHandler creates a new archive handler. A nil searcher means the
// archive is disabled in config; requests then get a 503.
func NewArchiveHandler(store ArchiveSearcher) ArchiveHandler {
	return &ArchiveHandlerImpl{store: store}
}

type archiveResponse struct {
	Entries  []models.LogEntry `json:"entries"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Total    int               `json:"total"`
}

// HandleSearchArchive queries the archive by time range, tag, and substring
func (h *ArchiveHandlerImpl) HandleSearchArchive(c echo.Context) error {
	if h.store == nil {
		return NewServiceUnavailableError("capture archive is disabled")
	}

	from, err := parseTimeParam(c.QueryParam("from"))
	if err != nil {
		return NewBadRequestError("invalid from time", err)
	}
	to, err := parseTimeParam(c.QueryParam("to"))
	if err != nil {
		return NewBadRequestError("invalid to time", err)
	}
	q := archive.Query{
		From:     from,
		To:       to,
		Tag:      models.LogTag(c.QueryParam("tag")),
		Contains: c.QueryParam("q"),
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 100
	}

	entries, total, err := h.store.Search(c.Request().Context(), q, page, pageSize)
	if err != nil {
		return NewInternalError("archive query failed", err)
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return c.JSON(http.StatusOK, archiveResponse{
		Entries:  entries,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// parseTimeParam accepts Unix milliseconds or RFC3339. Empty means unset.
func parseTimeParam(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
