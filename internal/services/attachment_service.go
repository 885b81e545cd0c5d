package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

// allowedMimeType is the upload allow-list.
func allowedMimeType(t string) bool {
	switch t {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/gif":
		return true
	}
	return false
}

// sniffLen is how much of an upload is read up front for type detection.
const sniffLen = 3072

// AttachmentService stores task attachments and their metadata.
type AttachmentService struct {
	repos  *repository.Repositories
	store  storage.FileStore
	logger *zap.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(repos *repository.Repositories, store storage.FileStore, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{repos: repos, store: store, logger: logging.OrNop(logger)}
}

// Upload is an incoming file. Size and MimeType are what the client declared.
type Upload struct {
	OriginalName string
	Size         int64
	MimeType     string
	Content      io.Reader
}

// AddAttachment validates and stores an upload for the task. Nothing is kept
// when validation fails; the stored file is removed again if the metadata row
// cannot be written.
func (s *AttachmentService) AddAttachment(ctx context.Context, p policy.Principal, taskID uint64, upload Upload) (*models.TaskAttachment, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.UploadAttachment, taskResource(task)); err != nil {
		return nil, err
	}

	if upload.Content == nil {
		return nil, ErrFileRequired
	}
	if upload.Size > constants.MaxAttachmentSize {
		return nil, ErrFileTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mimeType := resolveMimeType(upload.MimeType, head)
	if !allowedMimeType(mimeType) {
		return nil, ErrFileTypeDenied
	}

	originalName := cleanOriginalName(upload.OriginalName)
	fileName := fmt.Sprintf("%s%d_%s%s", constants.AttachmentKeyPrefix, task.ID, uuid.NewString(), extensionFor(originalName, mimeType))

	content := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), constants.MaxAttachmentSize+1)
	written, err := s.store.Save(ctx, fileName, content)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if written > constants.MaxAttachmentSize {
		s.discard(ctx, fileName)
		return nil, ErrFileTooLarge
	}

	attachment := &models.TaskAttachment{
		TaskID:       task.ID,
		FileName:     fileName,
		OriginalName: originalName,
		FileSize:     written,
		MimeType:     mimeType,
		UploadedBy:   p.Username,
	}
	if err := s.repos.Attachments.Create(attachment); err != nil {
		s.discard(ctx, fileName)
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	metrics.AttachmentsUploadedTotal.Inc()
	metrics.AttachmentBytesTotal.Add(float64(written))
	s.logger.Info("attachment uploaded",
		zap.Uint64("task_id", task.ID),
		zap.String("file", fileName),
		zap.Int64("size", written),
		zap.String("by", p.Username),
	)
	return attachment, nil
}

// ListAttachments lists a task's attachments newest first.
func (s *AttachmentService) ListAttachments(p policy.Principal, taskID uint64) ([]models.TaskAttachment, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.ViewTask, taskResource(task)); err != nil {
		return nil, err
	}

	attachments, err := s.repos.Attachments.ListByTask(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// OpenAttachment returns the metadata and a reader over the stored bytes. The
// caller closes the reader.
func (s *AttachmentService) OpenAttachment(ctx context.Context, p policy.Principal, id uint64) (*models.TaskAttachment, io.ReadCloser, error) {
	attachment, err := s.findAttachment(id)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.findTask(attachment.TaskID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.Authorize(p, policy.ViewTask, taskResource(task)); err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, attachment.FileName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return attachment, rc, nil
}

// DeleteAttachment removes the metadata row and then the stored file. A file
// that is already gone from storage is not an error.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, p policy.Principal, id uint64) error {
	attachment, err := s.findAttachment(id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(p, policy.DeleteAttachment, policy.Resource{OwnerUsername: attachment.UploadedBy}); err != nil {
		return err
	}

	if err := s.repos.Attachments.Delete(attachment.ID); err != nil {
		if isNotFound(err) {
			return ErrAttachmentNotFound
		}
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if err := s.store.Delete(ctx, attachment.FileName); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("attachment file already missing", zap.String("file", attachment.FileName))
			return nil
		}
		s.logger.Warn("failed to delete attachment file", zap.String("file", attachment.FileName), zap.Error(err))
	}
	return nil
}

func (s *AttachmentService) discard(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to discard stored file", zap.String("file", name), zap.Error(err))
	}
}

func (s *AttachmentService) findTask(id uint64) (*models.ProjectTask, error) {
	task, err := s.repos.Tasks.FindByID(id, "ProjectRole")
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *AttachmentService) findAttachment(id uint64) (*models.TaskAttachment, error) {
	attachment, err := s.repos.Attachments.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to find attachment: %w", err)
	}
	return attachment, nil
}

// resolveMimeType trusts the declared type unless it is missing or generic,
// in which case the content decides.
func resolveMimeType(declared string, head []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	detected, _, _ := mime.ParseMediaType(mimetype.Detect(head).String())
	return detected
}

func cleanOriginalName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}

// extensionFor keeps a short alphanumeric extension from the original name and
// otherwise falls back to the one registered for the detected type.
func extensionFor(originalName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 1 && len(ext) <= 10 && isAlnum(ext[1:]) {
		return ext
	}
	if m := mimetype.Lookup(mimeType); m != nil {
		return m.Extension()
	}
	return ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
