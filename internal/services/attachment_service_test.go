package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
)

func textUpload(name, content string) Upload {
	return Upload{
		OriginalName: name,
		Size:         int64(len(content)),
		MimeType:     "text/plain",
		Content:      strings.NewReader(content),
	}
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAttachmentService_UploadDownloadDelete(t *testing.T) {
	f := newTaskFixture(t)
	alice := PrincipalOf(f.alice)
	ctx := context.Background()

	attachment, err := f.env.attachments.AddAttachment(ctx, alice, f.task.ID, textUpload("../../etc/Runbook.TXT", "step one"))
	require.NoError(t, err)
	assert.Equal(t, "Runbook.TXT", attachment.OriginalName)
	assert.Equal(t, "alice", attachment.UploadedBy)
	assert.Equal(t, int64(8), attachment.FileSize)
	assert.Equal(t, "text/plain", attachment.MimeType)
	assert.True(t, strings.HasPrefix(attachment.FileName, "task_"))
	assert.True(t, strings.HasSuffix(attachment.FileName, ".txt"))
	assert.NotContains(t, attachment.FileName, "Runbook")

	list, err := f.env.attachments.ListAttachments(alice, f.task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	meta, rc, err := f.env.attachments.OpenAttachment(ctx, alice, attachment.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "step one", string(body))
	assert.Equal(t, attachment.FileName, meta.FileName)

	// Another user may neither read nor delete it.
	bob := PrincipalOf(f.bob)
	_, _, err = f.env.attachments.OpenAttachment(ctx, bob, attachment.ID)
	assert.ErrorIs(t, err, policy.ErrForbidden)
	assert.ErrorIs(t, f.env.attachments.DeleteAttachment(ctx, bob, attachment.ID), policy.ErrForbidden)

	require.NoError(t, f.env.attachments.DeleteAttachment(ctx, alice, attachment.ID))
	assert.Empty(t, storedFiles(t, f.env.storeDir))
	assert.ErrorIs(t, f.env.attachments.DeleteAttachment(ctx, alice, attachment.ID), ErrNotFound)
}

func TestAttachmentService_RejectsOversizedFiles(t *testing.T) {
	f := newTaskFixture(t)
	alice := PrincipalOf(f.alice)
	big := bytes.Repeat([]byte("a"), 11<<20)

	_, err := f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "big.txt",
		Size:         int64(len(big)),
		MimeType:     "text/plain",
		Content:      bytes.NewReader(big),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// An understated size is caught while streaming.
	_, err = f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "big.txt",
		Size:         10,
		MimeType:     "text/plain",
		Content:      bytes.NewReader(big),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	exact := bytes.Repeat([]byte("a"), constants.MaxAttachmentSize)
	_, err = f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "exact.txt",
		Size:         int64(len(exact)),
		MimeType:     "text/plain",
		Content:      bytes.NewReader(exact),
	})
	require.NoError(t, err)

	assert.Len(t, storedFiles(t, f.env.storeDir), 1)
	list, err := f.env.attachments.ListAttachments(alice, f.task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAttachmentService_RejectsDisallowedTypes(t *testing.T) {
	f := newTaskFixture(t)
	alice := PrincipalOf(f.alice)

	_, err := f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "bundle.zip",
		Size:         4,
		MimeType:     "application/zip",
		Content:      strings.NewReader("PK\x03\x04"),
	})
	assert.ErrorIs(t, err, ErrFileTypeDenied)

	// Generic declared types fall back to content detection.
	_, err = f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "bundle.bin",
		Size:         4,
		MimeType:     "application/octet-stream",
		Content:      strings.NewReader("PK\x03\x04"),
	})
	assert.ErrorIs(t, err, ErrFileTypeDenied)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	attachment, err := f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{
		OriginalName: "screenshot",
		Size:         int64(len(png)),
		Content:      bytes.NewReader(png),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", attachment.MimeType)
	assert.True(t, strings.HasSuffix(attachment.FileName, ".png"))

	_, err = f.env.attachments.AddAttachment(context.Background(), alice, f.task.ID, Upload{OriginalName: "x"})
	assert.ErrorIs(t, err, ErrFileRequired)

	assert.Len(t, storedFiles(t, f.env.storeDir), 1)
}

func TestAttachmentService_MissingStoredFile(t *testing.T) {
	f := newTaskFixture(t)
	alice := PrincipalOf(f.alice)
	ctx := context.Background()

	attachment, err := f.env.attachments.AddAttachment(ctx, alice, f.task.ID, textUpload("notes.txt", "hi"))
	require.NoError(t, err)
	require.NoError(t, f.env.store.Delete(ctx, attachment.FileName))

	_, _, err = f.env.attachments.OpenAttachment(ctx, alice, attachment.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, f.env.attachments.DeleteAttachment(ctx, f.env.manager, attachment.ID))

	_, err = f.env.attachments.AddAttachment(ctx, alice, 9999, textUpload("notes.txt", "hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}
