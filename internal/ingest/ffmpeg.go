package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/your-org/rollcall/internal/models"
)

const maxFrameBytes = 10 * 1024 * 1024

// FFmpegSource pulls frames from a camera or stream URL through ffmpeg.
// A background reader keeps only the freshest JPEG; NextFrame never blocks.
type FFmpegSource struct {
	URL     string
	FPS     int
	Width   int
	Startup time.Duration // how long Open waits for the first frame
	Binary  string

	slot *frameSlot

	mu      sync.Mutex
	cancel  context.CancelFunc
	cmd     *exec.Cmd
	done    chan struct{}
	readErr error
}

func NewFFmpegSource(url string, fps, width int) *FFmpegSource {
	return &FFmpegSource{
		URL:     url,
		FPS:     fps,
		Width:   width,
		Startup: 10 * time.Second,
		Binary:  "ffmpeg",
	}
}

func (f *FFmpegSource) args() []string {
	args := []string{"-hide_banner", "-loglevel", "warning"}

	switch {
	case strings.HasPrefix(f.URL, "rtsp://"), strings.HasPrefix(f.URL, "rtsps://"):
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000", // microseconds
		)
	case strings.HasPrefix(f.URL, "http://"), strings.HasPrefix(f.URL, "https://"):
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-timeout", "10000000",
		)
	case strings.HasPrefix(f.URL, "/dev/video"):
		args = append(args, "-f", "v4l2")
	}

	return append(args,
		"-i", f.URL,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", f.FPS, f.Width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
}

// Open starts ffmpeg and waits until the first frame arrives.
func (f *FFmpegSource) Open(ctx context.Context) error {
	f.mu.Lock()
	if f.cmd != nil {
		f.mu.Unlock()
		return errors.New("frame source already open")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, f.Binary, f.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		f.mu.Unlock()
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		f.mu.Unlock()
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		f.mu.Unlock()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	slot := newFrameSlot()
	done := make(chan struct{})
	f.slot, f.cmd, f.cancel, f.done, f.readErr = slot, cmd, cancel, done, nil
	f.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "url", f.URL, "output", scanner.Text())
		}
	}()

	go func() {
		defer close(done)
		err := readJPEGFrames(runCtx, stdout, slot.put)
		waitErr := cmd.Wait()
		if err == nil && waitErr != nil && runCtx.Err() == nil {
			err = fmt.Errorf("ffmpeg exited: %w", waitErr)
		}
		if err == nil {
			err = io.EOF
		}
		f.mu.Lock()
		f.readErr = err
		f.mu.Unlock()
	}()

	startup := time.NewTimer(f.Startup)
	defer startup.Stop()

	select {
	case <-slot.ready:
		slog.Info("frame source opened", "url", f.URL, "fps", f.FPS, "width", f.Width)
		return nil
	case <-done:
		f.mu.Lock()
		err := f.readErr
		f.mu.Unlock()
		_ = f.Release()
		return fmt.Errorf("ffmpeg produced no frames: %w", err)
	case <-startup.C:
		_ = f.Release()
		return fmt.Errorf("no frame from %s within %s", f.URL, f.Startup)
	case <-ctx.Done():
		_ = f.Release()
		return ctx.Err()
	}
}

// NextFrame returns the newest frame not yet returned, or nil when none
// arrived since the last call. Once the stream ends it returns an error.
func (f *FFmpegSource) NextFrame(_ context.Context) (*models.Frame, error) {
	f.mu.Lock()
	slot, readErr := f.slot, f.readErr
	f.mu.Unlock()

	if slot == nil {
		return nil, errors.New("frame source not open")
	}

	data, at, ok := slot.take()
	if !ok {
		if readErr != nil {
			return nil, fmt.Errorf("stream ended: %w", readErr)
		}
		return nil, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("skip undecodable frame", "url", f.URL, "error", err)
		return nil, nil
	}
	return &models.Frame{Image: img, JPEG: data, CapturedAt: at}, nil
}

// Dropped reports how many frames were overwritten before being read.
func (f *FFmpegSource) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slot == nil {
		return 0
	}
	return f.slot.droppedCount()
}

// Release terminates ffmpeg. Safe to call more than once.
func (f *FFmpegSource) Release() error {
	f.mu.Lock()
	cancel, cmd, done := f.cancel, f.cmd, f.done
	f.cancel, f.cmd = nil, nil
	f.mu.Unlock()

	if cmd == nil {
		return nil
	}
	cancel()
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-done
	return nil
}

// readJPEGFrames splits a stream of concatenated JPEG images and hands each
// one to emit. It returns nil when the stream ends cleanly.
func readJPEGFrames(ctx context.Context, r io.Reader, emit func([]byte)) error {
	reader := bufio.NewReaderSize(r, 512*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := findJPEGStart(reader); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		frame, err := readUntilJPEGEnd(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		emit(frame)
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameBytes {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
