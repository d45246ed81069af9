package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/archive"
	"github.com/ehr/medletter/pkg/pagination"
)

// Preview width bounds in pixels.
const (
	DefaultPreviewWidth = 840
	MaxPreviewWidth     = 2480
)

// Handler provides HTTP endpoints for letter generation.
type Handler struct {
	svc *Service
}

// NewHandler creates a new letter handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers letter endpoints on the provided route group.
//
//	GET  /api/v1/consultations/:id/letter              - canonical letter as JSON
//	GET  /api/v1/consultations/:id/letter.pdf          - rendered PDF
//	GET  /api/v1/consultations/:id/letter/pages/:page  - PNG page preview
//	POST /api/v1/consultations/:id/letter/archive      - render and archive
//	GET  /api/v1/consultations/:id/letter/archive      - list archived letters (limit, offset)
//	POST /api/v1/letters/draft                         - letter from unsaved data
//	POST /api/v1/letters/draft.pdf                     - PDF from unsaved data
//	GET  /api/v1/letters/archive/*                     - download an archived letter
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/consultations/:id/letter", h.GetLetter)
	g.GET("/consultations/:id/letter.pdf", h.GetPDF)
	g.GET("/consultations/:id/letter/pages/:page", h.GetPagePreview)
	g.POST("/consultations/:id/letter/archive", h.ArchiveLetter)
	g.GET("/consultations/:id/letter/archive", h.ListArchived)
	g.POST("/letters/draft", h.DraftLetter)
	g.POST("/letters/draft.pdf", h.DraftPDF)
	g.GET("/letters/archive/*", h.GetArchived)
}

// GetLetter handles GET /consultations/:id/letter.
func (h *Handler) GetLetter(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	l, err := h.svc.Letter(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// GetPDF handles GET /consultations/:id/letter.pdf.
func (h *Handler) GetPDF(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.PDF(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return pdfResponse(c, doc.FileName, doc.Content)
}

// GetPagePreview handles GET /consultations/:id/letter/pages/:page?width=N.
func (h *Handler) GetPagePreview(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "page must be a positive integer"})
	}
	width := DefaultPreviewWidth
	if v := c.QueryParam("width"); v != "" {
		width, err = strconv.Atoi(v)
		if err != nil || width < 1 || width > MaxPreviewWidth {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("width must be between 1 and %d", MaxPreviewWidth),
			})
		}
	}
	out, err := h.svc.PagePreview(c.Request().Context(), id, page, width)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", out)
}

// ArchiveLetter handles POST /consultations/:id/letter/archive.
func (h *Handler) ArchiveLetter(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	meta, err := h.svc.Save(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, meta)
}

// ListArchived handles GET /consultations/:id/letter/archive.
func (h *Handler) ListArchived(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ArchivedFor(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	p := pagination.FromContext(c)
	resp := pagination.NewResponse(pagination.Page(items, p), len(items), p.Limit, p.Offset)
	resp.Links = p.Links(c.Request().URL.Path, len(items))
	return c.JSON(http.StatusOK, resp)
}

// GetArchived handles GET /letters/archive/<key>.
func (h *Handler) GetArchived(c echo.Context) error {
	key := c.Param("*")
	if !archive.ValidKey(key) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid archive key"})
	}
	data, meta, err := h.svc.Archived(c.Request().Context(), key)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Response().Header().Set("X-Content-SHA256", meta.Hash)
	return pdfResponse(c, meta.FileName, data)
}

// DraftLetter handles POST /letters/draft.
func (h *Handler) DraftLetter(c echo.Context) error {
	rec, err := bindDraft(c)
	if err != nil {
		return err
	}
	l, err := h.svc.DraftLetter(c.Request().Context(), rec)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// DraftPDF handles POST /letters/draft.pdf.
func (h *Handler) DraftPDF(c echo.Context) error {
	rec, err := bindDraft(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.DraftPDF(c.Request().Context(), rec)
	if err != nil {
		return errorResponse(c, err)
	}
	return pdfResponse(c, doc.FileName, doc.Content)
}

func consultationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	return id, nil
}

func bindDraft(c echo.Context) (*consultation.Record, error) {
	var rec consultation.Record
	if err := c.Bind(&rec); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return &rec, nil
}

func pdfResponse(c echo.Context, fileName string, data []byte) error {
	if fileName == "" {
		fileName = "Scrisoare_Medicala.pdf"
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, fileName))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// errorResponse maps pipeline errors to HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	var (
		aggErr    *letter.AggregationError
		renderErr *letter.RenderError
	)
	switch {
	case errors.Is(err, letter.ErrNotFound), errors.Is(err, archive.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, letter.ErrCancelled):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, render.ErrPageRange):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrArchiveDisabled):
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": err.Error()})
	case errors.As(err, &aggErr):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.As(err, &renderErr):
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":     err.Error(),
			"retryable": renderErr.Retryable(),
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
