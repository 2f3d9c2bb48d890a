// Package download writes resolved file streams to disk chunk by chunk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/olgkv/drivefetch/internal/domain"
)

const DefaultChunkSize = 32 * 1024

// ProgressFunc is called after every chunk with the running byte count and
// the expected total (-1 when unknown).
type ProgressFunc func(written, total int64)

// FreeSpaceFunc reports free bytes on the volume holding path.
type FreeSpaceFunc func(ctx context.Context, path string) (uint64, error)

type Downloader struct {
	chunkSize int
	freeSpace FreeSpaceFunc
	logger    *slog.Logger
}

func New(chunkSize int, logger *slog.Logger) *Downloader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{chunkSize: chunkSize, freeSpace: diskFree, logger: logger}
}

// WithFreeSpace replaces the free-space check.
func (d *Downloader) WithFreeSpace(fn FreeSpaceFunc) *Downloader {
	d.freeSpace = fn
	return d
}

func diskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Save streams body into dest in fixed-size chunks and returns the number of
// bytes written. On failure the partial file is left in place.
func (d *Downloader) Save(ctx context.Context, body io.Reader, dest string, size int64, progress ProgressFunc) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, domain.WrapError(domain.KindDisk, "create directory", err)
	}
	if err := d.checkSpace(ctx, dir, size); err != nil {
		return 0, err
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, domain.WrapError(domain.KindDisk, "create file", err)
	}

	written, copyErr := d.copyChunks(f, body, size, progress)
	closeErr := f.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, domain.WrapError(domain.KindDisk, "close file", closeErr)
	}
	return written, nil
}

func (d *Downloader) copyChunks(w io.Writer, body io.Reader, size int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64
	for {
		n, rErr := readChunk(body, buf)
		if n > 0 {
			m, wErr := w.Write(buf[:n])
			written += int64(m)
			if wErr != nil {
				return written, domain.WrapError(domain.KindDisk, "write chunk", wErr)
			}
			if progress != nil {
				progress(written, size)
			}
		}
		if rErr == nil {
			continue
		}
		if !errors.Is(rErr, io.EOF) {
			return written, domain.WrapError(domain.KindNetwork, "read chunk", rErr)
		}
		if size >= 0 && written != size {
			return written, domain.WrapError(domain.KindNetwork, "short body",
				fmt.Errorf("received %d of %d bytes", written, size))
		}
		return written, nil
	}
}

// readChunk fills buf unless the stream ends first. Only io.EOF marks a
// clean end; io.ErrUnexpectedEOF from a dropped connection is returned as is.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (d *Downloader) checkSpace(ctx context.Context, dir string, size int64) error {
	if size <= 0 || d.freeSpace == nil {
		return nil
	}
	free, err := d.freeSpace(ctx, dir)
	if err != nil {
		d.logger.Warn("free space check failed", "dir", dir, "error", err)
		return nil
	}
	if uint64(size) > free {
		return domain.WrapError(domain.KindDisk, "insufficient space",
			fmt.Errorf("need %d bytes, %d available in %s", size, free, dir))
	}
	return nil
}
