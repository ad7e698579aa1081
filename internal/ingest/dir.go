package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/your-org/rollcall/internal/models"
)

// DirSource replays the JPEG files of a directory in name order, one per
// NextFrame call. Used for offline replay of recorded check-ins.
type DirSource struct {
	Dir  string
	Loop bool

	mu    sync.Mutex
	files []string
	next  int
	open  bool
}

func NewDirSource(dir string, loop bool) *DirSource {
	return &DirSource{Dir: dir, Loop: loop}
}

func (d *DirSource) Open(_ context.Context) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("read frame dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(d.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no jpeg frames in %s", d.Dir)
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files, d.next, d.open = files, 0, true
	d.mu.Unlock()
	return nil
}

func (d *DirSource) NextFrame(_ context.Context) (*models.Frame, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, fmt.Errorf("frame source not open")
	}
	if d.next >= len(d.files) {
		if !d.Loop {
			d.mu.Unlock()
			return nil, nil
		}
		d.next = 0
	}
	path := d.files[d.next]
	d.next++
	d.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("skip undecodable frame", "path", path, "error", err)
		return nil, nil
	}
	return &models.Frame{Image: img, JPEG: data, CapturedAt: time.Now()}, nil
}

func (d *DirSource) Release() error {
	d.mu.Lock()
	d.open = false
	d.files = nil
	d.mu.Unlock()
	return nil
}
