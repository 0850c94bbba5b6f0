package inbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/upload"
)

type recordingUploader struct {
	mu       sync.Mutex
	uploads  []string
	contents []string
	failures int
}

func (u *recordingUploader) Upload(ctx context.Context, file *upload.File) upload.Result {
	body, _ := io.ReadAll(file.Content)

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failures > 0 {
		u.failures--
		return upload.Result{Message: upload.FailureMessage}
	}
	u.uploads = append(u.uploads, file.Name)
	u.contents = append(u.contents, string(body))
	return upload.Result{Message: upload.SuccessMessage, OK: true}
}

func (u *recordingUploader) Uploads() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.uploads...)
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatcherBackfillsExistingPDFs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "report.pdf"), "%PDF-1.4 report")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".partial.pdf"), "ignored")

	uploader := &recordingUploader{}
	startWatcher(t, New(dir, 10*time.Millisecond, uploader, zap.NewNop()))

	require.Eventually(t, func() bool { return len(uploader.Uploads()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"report.pdf"}, uploader.Uploads())
}

func TestWatcherUploadsNewFileOnce(t *testing.T) {
	dir := t.TempDir()
	uploader := &recordingUploader{}
	startWatcher(t, New(dir, 50*time.Millisecond, uploader, zap.NewNop()))

	writeFile(t, filepath.Join(dir, "CSRD.PDF"), "%PDF-1.7 csrd")

	require.Eventually(t, func() bool { return len(uploader.Uploads()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"CSRD.PDF"}, uploader.Uploads())

	uploader.mu.Lock()
	assert.Equal(t, []string{"%PDF-1.7 csrd"}, uploader.contents)
	uploader.mu.Unlock()
}

func TestWatcherRetriesAfterFailedUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.pdf")
	writeFile(t, path, "%PDF first")

	uploader := &recordingUploader{failures: 1}
	w := New(dir, 10*time.Millisecond, uploader, zap.NewNop())

	require.NoError(t, w.Backfill(context.Background()))
	assert.Empty(t, uploader.Uploads())

	require.NoError(t, w.Backfill(context.Background()))
	assert.Equal(t, []string{"taxonomy.pdf"}, uploader.Uploads())

	require.NoError(t, w.Backfill(context.Background()))
	assert.Len(t, uploader.Uploads(), 1)
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), time.Millisecond, &recordingUploader{}, zap.NewNop())
	assert.Error(t, w.Run(context.Background()))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("/inbox/a.pdf"))
	assert.True(t, isPDF("B.Pdf"))
	assert.False(t, isPDF("a.pdf.tmp"))
	assert.False(t, isPDF(".hidden.pdf"))
	assert.False(t, isPDF("doc.docx"))
}
