package encoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// stderrTail is how much of ffmpeg's diagnostics an exit error carries.
const stderrTail = 4 * 1024

// ffmpegWriter feeds raw frames on stdin and PCM audio on fd 3 to an ffmpeg
// process that muxes them into Matroska.
type ffmpegWriter struct {
	cmd    *exec.Cmd
	video  io.WriteCloser
	audio  *os.File
	stderr *tailBuffer

	// closed once the process has exited; waitErr is set before
	exited  chan struct{}
	waitErr error
}

func openFFmpegWriter(path string, first models.Sample, cfg Config) (sampleWriter, error) {
	args := ffmpegArgs(path, first, cfg)

	audioRead, audioWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create audio pipe: %w", err)
	}

	cmd := exec.Command(cfg.FFmpegPath, args...)
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stdout = nil
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{audioRead}

	video, err := cmd.StdinPipe()
	if err != nil {
		audioRead.Close()
		audioWrite.Close()
		return nil, fmt.Errorf("failed to create video pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		audioRead.Close()
		audioWrite.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	// the child holds its own copy now
	audioRead.Close()

	f := &ffmpegWriter{
		cmd:    cmd,
		video:  video,
		audio:  audioWrite,
		stderr: stderr,
		exited: make(chan struct{}),
	}
	go func() {
		f.waitErr = cmd.Wait()
		close(f.exited)
	}()
	return f, nil
}

// ffmpegArgs builds the muxing command.
// - rawvideo on pipe:0 in the frame's pixel format
// - s16le PCM on pipe:3
// - preset=ultrafast / tune=zerolatency: real-time encoding
// - crf=18: near-lossless quality
func ffmpegArgs(path string, first models.Sample, cfg Config) []string {
	pixFmt := first.PixelFormat
	if pixFmt == "" {
		pixFmt = "gray"
	}
	return []string{
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-video_size", fmt.Sprintf("%dx%d", first.Width, first.Height),
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.AudioSampleRate),
		"-ac", strconv.Itoa(cfg.AudioChannels),
		"-i", "pipe:3",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(cfg.FrameRate * 2), // Keyframe every 2 seconds
		"-c:a", "aac",
		"-shortest",
		"-y",
		path,
	}
}

// Ready is false once ffmpeg has exited.
func (f *ffmpegWriter) Ready(models.SampleKind) bool {
	select {
	case <-f.exited:
		return false
	default:
		return true
	}
}

func (f *ffmpegWriter) WriteVideo(s models.Sample) error {
	_, err := f.video.Write(s.Data)
	return err
}

func (f *ffmpegWriter) WriteAudio(s models.Sample) error {
	_, err := f.audio.Write(s.Data)
	return err
}

// Close ends both inputs and waits for ffmpeg to finish the file.
func (f *ffmpegWriter) Close() error {
	videoErr := f.video.Close()
	audioErr := f.audio.Close()
	<-f.exited
	if f.waitErr == nil {
		return nil
	}
	exitErr := fmt.Errorf("ffmpeg exited: %w", f.waitErr)
	if msg := strings.TrimSpace(f.stderr.String()); msg != "" {
		exitErr = fmt.Errorf("ffmpeg exited: %w: %s", f.waitErr, msg)
	}
	// the pipes are already gone when ffmpeg died first
	if errors.Is(videoErr, os.ErrClosed) {
		videoErr = nil
	}
	return errors.Join(exitErr, videoErr, audioErr)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
