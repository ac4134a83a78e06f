package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduvault/eduvault-api/internal/models"
	"github.com/eduvault/eduvault-api/internal/service"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
	"github.com/eduvault/eduvault-api/pkg/response"
)

// FileHandler wires HTTP endpoints to the file service.
type FileHandler struct {
	service       *service.FileService
	maxUploadSize int64
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc *service.FileService, maxUploadSize int64) *FileHandler {
	return &FileHandler{service: svc, maxUploadSize: maxUploadSize}
}

// List godoc
// @Summary List files
// @Description List library files with filtering and pagination
// @Tags Files
// @Produce json
// @Param search query string false "Substring match on name, filename or description"
// @Param types query string false "File types, JSON array or comma separated"
// @Param classes query string false "Class levels, JSON array or comma separated"
// @Param match query string false "Class matching mode: any (default) or all"
// @Param dateFrom query string false "Created on or after (YYYY-MM-DD)"
// @Param dateTo query string false "Created on or before (YYYY-MM-DD)"
// @Param owner query string false "Owner name substring"
// @Param category_id query string false "Category id"
// @Param minSize query int false "Minimum size in bytes"
// @Param maxSize query int false "Maximum size in bytes"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	filter := models.FileFilter{
		Search:     c.Query("search"),
		Types:      parseStringList(c.Query("types")),
		Classes:    parseInt64List(c.Query("classes")),
		AllClasses: c.Query("match") == "all",
		DateFrom:   parseDatePtr(c.Query("dateFrom")),
		DateTo:     parseDatePtr(c.Query("dateTo")),
		Owner:      c.Query("owner"),
		CategoryID: c.Query("category_id"),
		MinSize:    parseInt64Ptr(c.Query("minSize")),
		MaxSize:    parseInt64Ptr(c.Query("maxSize")),
		Page:       parseIntDefault(c.Query("page"), 1),
		Limit:      parseIntDefault(c.Query("limit"), models.DefaultPageLimit),
		SortBy:     normalizeSortField(c.Query("sortBy")),
		SortOrder:  c.Query("sortOrder"),
	}

	result, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, result.Pagination)
}

// Get godoc
// @Summary Get file
// @Tags Files
// @Produce json
// @Param id path string true "File id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Upload godoc
// @Summary Upload a file
// @Description Store a binary with its metadata; multipart form with a "file" part and a "metadata" JSON part
// @Tags Files
// @Accept mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file part is required"))
		return
	}
	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size"))
		return
	}

	var req models.CreateFileRequest
	if metadata := c.PostForm("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
			return
		}
	} else if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file payload"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	file, err := h.service.Upload(c.Request.Context(), claimsFromContext(c), req, src, fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// Update godoc
// @Summary Update file metadata
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File id"
// @Param payload body models.UpdateFileRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [patch]
func (h *FileHandler) Update(c *gin.Context) {
	var req models.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	file, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Delete a file
// @Tags Files
// @Produce json
// @Param id path string true "File id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
