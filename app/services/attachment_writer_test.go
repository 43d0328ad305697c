package services_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/app/services"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func TestAttachFile_TwiceWritesOnce(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	file, err := f.svc.AttachFile(bg, c.ID, pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Customer_1.png", file.Filename)
	assert.Equal(t, models.Image, file.Kind)
	require.Eventually(t, func() bool { return f.disk.puts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	again, err := f.svc.AttachFile(bg, c.ID, pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, file.ID, again.ID)
	f.pool.Shutdown()
	assert.EqualValues(t, 1, f.disk.puts.Load())

	stored, err := f.disk.Get(bg, "Customer_1.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)

	got, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	require.NotNil(t, got.FileID)
	assert.Equal(t, file.ID, *got.FileID)
}

func TestAttachFile_SameBytesLaterWritesOnce(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	file, err := f.svc.AttachFile(bg, c.ID, pngBytes, "image/png")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.disk.puts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Past the writer's tolerance.
	time.Sleep(1500 * time.Millisecond)

	again, err := f.svc.AttachFile(bg, c.ID, pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, file.Version, again.Version)
	f.pool.Shutdown()
	assert.EqualValues(t, 1, f.disk.puts.Load())
}

func TestAttachFile_DetectsMimeType(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	file, err := f.svc.AttachFile(bg, c.ID, pngBytes, "")
	require.NoError(t, err)
	assert.Equal(t, models.MimePNG, file.MimeType)
}

func TestAttachFile_Rejects(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	_, err := f.svc.AttachFile(bg, c.ID, []byte("plain text"), "text/plain")
	assert.ErrorIs(t, err, services.ErrUnsupportedMimeType)

	_, err = f.svc.AttachFile(bg, c.ID, bytes.Repeat([]byte{1}, 2048), "image/png")
	assert.ErrorIs(t, err, services.ErrFileTooLarge)

	_, err = f.svc.AttachFile(bg, c.ID+99, pngBytes, "image/png")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAttachmentWriter_StatErrorStillWrites(t *testing.T) {
	f := setup(t)
	f.disk.statErr = errStat

	file := &models.File{Filename: "Customer_7.png", Data: pngBytes, UpdatedAt: time.Now()}
	written, err := f.writer.Store(bg, file)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = f.writer.Store(bg, file)
	require.NoError(t, err)
	assert.True(t, written, "an unreadable stat counts as absent")
	assert.EqualValues(t, 2, f.disk.puts.Load())
}

func TestAttachmentWriter_RewritesOutdatedFile(t *testing.T) {
	f := setup(t)

	file := &models.File{Filename: "Customer_7.png", Data: pngBytes, UpdatedAt: time.Now()}
	written, err := f.writer.Store(bg, file)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = f.writer.Store(bg, file)
	require.NoError(t, err)
	assert.False(t, written)

	file.UpdatedAt = time.Now().Add(time.Hour)
	written, err = f.writer.Store(bg, file)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestDelete_DiscardsAttachment(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	_, err := f.svc.AttachFile(bg, c.ID, pngBytes, "image/png")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.disk.puts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.svc.Delete(bg, c.ID))
	f.pool.Shutdown()

	_, err = f.disk.Stat(bg, "Customer_1.png")
	assert.Error(t, err)
}
