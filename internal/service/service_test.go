package service

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/olgkv/drivefetch/internal/config"
	"github.com/olgkv/drivefetch/internal/domain"
	"github.com/olgkv/drivefetch/internal/download"
	"github.com/olgkv/drivefetch/internal/drive"
	"github.com/olgkv/drivefetch/internal/metrics"
)

// newFakeHost serves four files: "docA" (pdf, no extension in its name),
// "docB" (plain text), "bigC" (behind a confirmation page) and "cutD", whose
// connection drops after 4000 of 10000 bytes. Everything else is 404.
func newFakeHost(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("id") {
		case "docA":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="manual"`)
			_, _ = io.WriteString(w, strings.Repeat("A", 1000))
		case "docB":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="notes.txt"`)
			_, _ = io.WriteString(w, strings.Repeat("B", 777))
		case "bigC":
			if q.Get("confirm") != "tok3n" {
				w.Header().Set("Content-Type", "text/html")
				_, _ = io.WriteString(w, `<html><a id="uc-download-link" href="/uc?export=download&amp;confirm=tok3n&amp;id=bigC">Download anyway</a></html>`)
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition", `attachment; filename="big.zip"`)
			_, _ = io.WriteString(w, strings.Repeat("C", 5000))
		case "cutD":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", `attachment; filename="cut.bin"`)
			w.Header().Set("Content-Length", "10000")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, strings.Repeat("D", 4000))
			w.(http.Flusher).Flush()
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPool(t *testing.T, threads, chunk int, opts ...Option) (*Pool, string) {
	t.Helper()
	srv := newFakeHost(t)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}

	dir := t.TempDir()
	cfg := &config.Config{DownloadDirectory: dir, MaxThreads: threads, ChunkSize: chunk}
	resolver := drive.NewResolver(&http.Client{Jar: jar}, srv.URL, "test", nil)
	saver := download.New(cfg.ChunkSize, nil).WithFreeSpace(func(context.Context, string) (uint64, error) {
		return 1 << 40, nil
	})

	p, err := New(cfg, resolver, saver, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, dir
}

func TestPool_BatchWithOneMissing(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	history := &mockHistory{}
	p, dir := newTestPool(t, 3, 256, WithMetrics(rec), WithHistory(history))

	links := []string{
		"https://drive.google.com/file/d/docA/view?usp=sharing",
		"https://drive.google.com/open?id=gone404",
		"https://drive.google.com/uc?id=docB",
	}
	summary := p.Run(context.Background(), links)

	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %d succeeded / %d failed, want 2/1", summary.Succeeded, summary.Failed)
	}
	if summary.Directory != dir {
		t.Fatalf("summary directory = %q", summary.Directory)
	}

	failed := summary.Tasks[1]
	if failed.Status != domain.StatusFailed || !strings.Contains(failed.Error, "not_found") {
		t.Fatalf("unexpected failed task: %+v", failed)
	}
	for _, i := range []int{0, 2} {
		if summary.Tasks[i].Status != domain.StatusSucceeded {
			t.Fatalf("task %d: %+v", i, summary.Tasks[i])
		}
	}

	assertFile(t, filepath.Join(dir, "drive_docA", "manual.pdf"), 1000)
	assertFile(t, filepath.Join(dir, "drive_docB", "notes.txt"), 777)

	if history.appendCalls != 3 {
		t.Fatalf("expected every task journaled, got %d", history.appendCalls)
	}
	if n := testutil.CollectAndCount(reg, "drivefetch_tasks_total"); n != 2 {
		t.Fatalf("expected succeeded and failed series, got %d", n)
	}
}

func TestPool_ConfirmationFlow(t *testing.T) {
	p, dir := newTestPool(t, 2, 1024)

	summary := p.Run(context.Background(), []string{"https://drive.google.com/uc?id=bigC&export=download"})
	if summary.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", summary.Tasks)
	}
	task := summary.Tasks[0]
	if task.FileID != "bigC" || task.BytesWritten != 5000 {
		t.Fatalf("unexpected task %+v", task)
	}
	assertFile(t, filepath.Join(dir, "drive_bigC", "big.zip"), 5000)
}

func TestPool_DroppedConnectionFailsTask(t *testing.T) {
	p, dir := newTestPool(t, 2, 1024)

	summary := p.Run(context.Background(), []string{
		"https://drive.google.com/open?id=cutD",
		"https://drive.google.com/open?id=docB",
	})
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d succeeded / %d failed, want 1/1", summary.Succeeded, summary.Failed)
	}

	cut := summary.Tasks[0]
	if cut.Status != domain.StatusFailed || !strings.Contains(cut.Error, "network") {
		t.Fatalf("unexpected task: %+v", cut)
	}
	if cut.BytesWritten >= 10000 {
		t.Fatalf("bytes written = %d, want a partial count", cut.BytesWritten)
	}
	if _, err := os.Stat(filepath.Join(dir, "drive_cutD", "cut.bin")); err != nil {
		t.Fatalf("partial file must stay: %v", err)
	}
	assertFile(t, filepath.Join(dir, "drive_docB", "notes.txt"), 777)
}

func TestPool_InvalidLinkIsPerTask(t *testing.T) {
	p, _ := newTestPool(t, 2, 64)

	summary := p.Run(context.Background(), []string{"hello world", "https://drive.google.com/open?id=docB"})
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(summary.Tasks[0].Error, domain.ErrUnrecognizedLink.Error()) {
		t.Fatalf("error = %q", summary.Tasks[0].Error)
	}
}

func TestPool_RejectsInvalidConfig(t *testing.T) {
	cfg := &config.Config{DownloadDirectory: "d", MaxThreads: 0, ChunkSize: 10}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected error for zero threads")
	}
}

// scriptedResolver records call order and concurrency.
type scriptedResolver struct {
	mu      sync.Mutex
	order   []string
	active  int32
	maxSeen int32
	delay   time.Duration
}

func (s *scriptedResolver) Resolve(ctx context.Context, fileID string) (*drive.Resolution, error) {
	n := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		old := atomic.LoadInt32(&s.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&s.maxSeen, old, n) {
			break
		}
	}

	s.mu.Lock()
	s.order = append(s.order, fileID)
	s.mu.Unlock()

	time.Sleep(s.delay)
	if strings.HasPrefix(fileID, "bad") {
		return nil, domain.WrapError(domain.KindNotFound, "HTTP 404", domain.ErrNotFound)
	}
	return &drive.Resolution{
		Metadata: domain.FileMetadata{FileID: fileID, DisplayName: fileID + ".bin", ByteSize: 4},
		Body:     io.NopCloser(strings.NewReader("data")),
	}, nil
}

type memorySaver struct {
	mu    sync.Mutex
	dests []string
}

func (m *memorySaver) Save(_ context.Context, body io.Reader, dest string, size int64, progress download.ProgressFunc) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.dests = append(m.dests, dest)
	m.mu.Unlock()
	progress(int64(len(data)), size)
	return int64(len(data)), nil
}

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	resolver := &scriptedResolver{}
	cfg := &config.Config{DownloadDirectory: "out", MaxThreads: 1, ChunkSize: 8}
	p, err := New(cfg, resolver, &memorySaver{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ids := []string{"one", "two", "bad3", "four", "five"}
	links := make([]string, len(ids))
	for i, id := range ids {
		links[i] = "https://drive.google.com/open?id=" + id
	}

	summary := p.Run(context.Background(), links)
	if summary.Succeeded != 4 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	for i, id := range ids {
		if resolver.order[i] != id {
			t.Fatalf("order = %v, want %v", resolver.order, ids)
		}
	}
}

func TestPool_RespectsMaxThreads(t *testing.T) {
	resolver := &scriptedResolver{delay: 20 * time.Millisecond}
	cfg := &config.Config{DownloadDirectory: "out", MaxThreads: 3, ChunkSize: 8}
	p, err := New(cfg, resolver, &memorySaver{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	links := make([]string, 10)
	for i := range links {
		links[i] = "https://drive.google.com/open?id=f" + string(rune('a'+i))
	}
	summary := p.Run(context.Background(), links)

	if summary.Succeeded != 10 {
		t.Fatalf("summary = %+v", summary)
	}
	if peak := atomic.LoadInt32(&resolver.maxSeen); peak > 3 || peak < 2 {
		t.Fatalf("max concurrent resolves = %d, want between 2 and 3", peak)
	}
	if len(p.Snapshot()) != 10 {
		t.Fatalf("snapshot should hold all tasks")
	}
}

func TestPool_CancelledContextFailsTasks(t *testing.T) {
	p, _ := newTestPool(t, 1, 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := p.Run(ctx, []string{"https://drive.google.com/open?id=docA"})
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(summary.Tasks[0].Error, "network") {
		t.Fatalf("error = %q", summary.Tasks[0].Error)
	}
}

func assertFile(t *testing.T, path string, size int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() != size {
		t.Fatalf("%s has %d bytes, want %d", path, info.Size(), size)
	}
}
