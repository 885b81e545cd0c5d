package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// multipartOverhead is the room left for multipart headers and boundaries on
// top of the largest accepted file.
const multipartOverhead = 1 << 20

// AttachmentHandler serves task attachments.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
	logger            *zap.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler.
func NewAttachmentHandler(attachmentService *services.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		logger:            logging.OrNop(logger),
	}
}

// ListAttachments returns a task's attachments, newest first.
func (h *AttachmentHandler) ListAttachments(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	attachments, err := h.attachmentService.ListAttachments(principal, taskID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attachments": dto.ToAttachmentDTOs(attachments),
	})
}

// UploadAttachment accepts a multipart upload in the "file" field.
func (h *AttachmentHandler) UploadAttachment(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxAttachmentSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondServiceError(c, h.logger, services.ErrFileTooLarge)
			return
		}
		respondServiceError(c, h.logger, services.ErrFileRequired)
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		apierrors.InternalError(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.AddAttachment(c.Request.Context(), principal, taskID, services.Upload{
		OriginalName: header.Filename,
		Size:         header.Size,
		MimeType:     header.Header.Get("Content-Type"),
		Content:      file,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAttachmentDTO(*attachment))
}

// DownloadAttachment streams the stored file under its original name.
func (h *AttachmentHandler) DownloadAttachment(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	attachment, content, err := h.attachmentService.OpenAttachment(c.Request.Context(), principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	defer content.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.OriginalName}))
	c.Header("Content-Type", attachment.MimeType)
	c.Header("Content-Length", strconv.FormatInt(attachment.FileSize, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, content); err != nil {
		h.logger.Warn("failed to stream attachment", zap.Uint64("attachment_id", id), zap.Error(err))
	}
}

// DeleteAttachment removes an attachment and its stored file.
func (h *AttachmentHandler) DeleteAttachment(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.attachmentService.DeleteAttachment(c.Request.Context(), principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Attachment deleted successfully",
	})
}
