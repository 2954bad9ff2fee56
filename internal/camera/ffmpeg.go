package camera

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// FFmpegSource pulls JPEG frames from a camera URL with FFmpeg and keeps
// only the most recent one. The engine polls on its own cadence, so frames
// arriving between ticks are simply replaced.
type FFmpegSource struct {
	url   string
	fps   int
	width int

	mu     sync.Mutex
	latest []byte
	cancel context.CancelFunc
	cmd    *exec.Cmd
}

func NewFFmpegSource(url string, fps, width int) *FFmpegSource {
	return &FFmpegSource{url: url, fps: fps, width: width}
}

// Start launches the FFmpeg extraction in the background. The source keeps
// running until Stop is called or the context is cancelled.
func (s *FFmpegSource) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
	}

	if strings.HasPrefix(s.url, "rtsp://") || strings.HasPrefix(s.url, "rtsps://") {
		args = append(args,
			"-rtsp_transport", "tcp",
			"-stimeout", "5000000", // 5s RTSP socket timeout (microseconds)
			"-timeout", "5000000",
		)
	} else if strings.HasPrefix(s.url, "http://") || strings.HasPrefix(s.url, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-timeout", "10000000",
		)
	}

	args = append(args,
		"-i", s.url,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", s.fps, s.width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.cmd = cmd
	s.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	go func() {
		if err := s.readFrames(ctx, stdout); err != nil && ctx.Err() == nil {
			slog.Error("camera frame extraction stopped", "url", s.url, "error", err)
		}
		_ = cmd.Wait()
	}()

	slog.Info("camera source started", "url", s.url, "fps", s.fps, "width", s.width)
	return nil
}

// NextFrame returns the most recent frame and consumes it. ErrNoFrame means
// nothing has arrived since the last call.
func (s *FFmpegSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil {
		return nil, ErrNoFrame
	}
	frame := s.latest
	s.latest = nil
	return frame, nil
}

// Stop terminates the FFmpeg process.
func (s *FFmpegSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.latest = nil
}

// readFrames scans the concatenated JPEG stream on stdout and stores each
// complete frame as the latest.
func (s *FFmpegSource) readFrames(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReaderSize(r, 512*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := findJPEGStart(reader); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		frame, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if len(frame) > 0 {
			s.mu.Lock()
			s.latest = frame
			s.mu.Unlock()
		}
	}
}

// findJPEGStart advances the reader past the next FF D8 marker.
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

// readUntilJPEGEnd collects bytes up to and including the FF D9 marker.
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

		// Safety: max 10MB per frame
		if len(data) > 10*1024*1024 {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
