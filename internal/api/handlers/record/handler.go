package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/api/respond"
	"github.com/aliskhannn/image-insight/internal/intake"
	"github.com/aliskhannn/image-insight/internal/model"
	"github.com/aliskhannn/image-insight/internal/orchestrator"
)

// service defines the interface for record operations.
type service interface {
	StartNew(ctx context.Context, asset model.Asset) (model.ImageRecord, error)
	Current() (model.ImageRecord, bool)
	Discard() bool
	CleanCopy(ctx context.Context) (string, []byte, error)
	OpenPreview(ctx context.Context) (io.ReadCloser, error)
}

// historyService defines the interface for listing processing history.
type historyService interface {
	List(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

// Handler provides HTTP handlers for record endpoints. It depends on the
// intake validator for admission and on service interfaces for the rest.
type Handler struct {
	validator *intake.Validator
	service   service
	history   historyService
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(v *intake.Validator, s service, hs historyService) *Handler {
	return &Handler{validator: v, service: s, history: hs}
}

// Create handles the HTTP request for submitting a new image. It reads the
// multipart form, validates the file via the intake validator, starts a new
// record and responds with the initial snapshot while the pipeline runs in
// the background.
func (h *Handler) Create(c *ginext.Context) {
	// Parse the multipart form with a 10MB max memory limit.
	if err := c.Request.ParseMultipartForm(10 << 20); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	// Retrieve the uploaded file from the form.
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	}
	defer file.Close()

	zlog.Logger.Printf("received file: %v", header.Filename)
	zlog.Logger.Printf("file size: %v", header.Size)

	source := model.Source(c.PostForm("source"))

	asset, err := h.validator.Validate(file, header.Filename, source)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", header.Filename).Msg("image rejected")
		respond.Fail(c, intakeStatus(err), err)
		return
	}

	rec, err := h.service.StartNew(c.Request.Context(), asset)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to start record")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to start record: %v", err))
		return
	}

	respond.Accepted(c, rec)
}

// Current returns a snapshot of the active record.
func (h *Handler) Current(c *ginext.Context) {
	rec, ok := h.service.Current()
	if !ok {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("no active record"))
		return
	}

	respond.OK(c, rec)
}

// Discard removes the active record and releases its preview.
func (h *Handler) Discard(c *ginext.Context) {
	if !h.service.Discard() {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("no active record"))
		return
	}

	c.Status(http.StatusNoContent)
}

// Clean sends a metadata-free re-encoded copy of the active record's image
// as a file download.
func (h *Handler) Clean(c *ginext.Context) {
	filename, data, err := h.service.CleanCopy(c.Request.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoActiveRecord) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("no active record"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to produce clean copy")
		respond.Fail(c, http.StatusUnprocessableEntity, fmt.Errorf("failed to produce clean copy: %v", err))
		return
	}

	respond.Attachment(c, filename, "image/jpeg", data)
}

// Preview streams the active record's preview image.
func (h *Handler) Preview(c *ginext.Context) {
	reader, err := h.service.OpenPreview(c.Request.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoActiveRecord) || errors.Is(err, orchestrator.ErrNoPreview) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("no preview available"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to open preview")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to open preview: %v", err))
		return
	}
	defer reader.Close()

	// Disable browser caching so a new record's preview replaces the old one.
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	respond.JPEG(c, http.StatusOK, reader)
}

// History lists recent terminal record outcomes, newest first. The optional
// limit query parameter bounds the page size.
func (h *Handler) History(c *ginext.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit: %v", err))
			return
		}
		limit = n
	}

	entries, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list history")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to list history: %v", err))
		return
	}

	respond.OK(c, entries)
}

// Health reports service liveness.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c, map[string]string{"status": "ok"})
}

// intakeStatus maps a validation error to its HTTP status code.
func intakeStatus(err error) int {
	switch {
	case errors.Is(err, intake.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
