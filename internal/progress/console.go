// Package progress renders per-file download progress.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/olgkv/drivefetch/internal/domain"
)

// Console draws one progress bar per running task.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*progressbar.ProgressBar
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (c *Console) TaskStarted(task domain.DownloadTask, meta domain.FileMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(fmt.Sprintf("[%s]", meta.DisplayName)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	}
	size := meta.ByteSize
	if !meta.SizeKnown() {
		size = -1
		opts = append(opts, progressbar.OptionSpinnerType(14))
	}
	c.bars[task.ID] = progressbar.NewOptions64(size, opts...)
}

func (c *Console) TaskProgress(taskID string, written, _ int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bar, ok := c.bars[taskID]; ok {
		_ = bar.Set64(written)
	}
}

func (c *Console) TaskFinished(task domain.DownloadTask) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bar, ok := c.bars[task.ID]; ok {
		if task.Status == domain.StatusSucceeded {
			_ = bar.Finish()
		} else {
			_ = bar.Exit()
		}
		delete(c.bars, task.ID)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, finishLine(task))
}

func finishLine(task domain.DownloadTask) string {
	if task.Status == domain.StatusSucceeded {
		return fmt.Sprintf("✓ Downloaded: %s -> %s (%d bytes)", task.SourceURL, task.OutputPath, task.BytesWritten)
	}
	return fmt.Sprintf("✗ Error downloading %s: %s", task.SourceURL, task.Error)
}
