package capture

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/media"
)

// fallbackGraceSeconds pads the fallback stop timer so a recording driven
// purely by the clock is never cut before its scheduled end.
const fallbackGraceSeconds = 2

// Recorder muxes raw RGBA frames and PCM audio into the negotiated
// container via an ffmpeg subprocess. One Recorder runs at most one
// session at a time.
type Recorder struct {
	log    zerolog.Logger
	outDir string
	codec  Codec

	// MuxCommand builds the muxer subprocess. Tests and embedders may
	// replace it before Start to swap out ffmpeg.
	MuxCommand func(codec Codec, width, height, fps int) *exec.Cmd

	mu      sync.Mutex
	session *session
}

type session struct {
	id       uuid.UUID
	fileName string
	cmd      *exec.Cmd
	video    io.WriteCloser
	audioW   *os.File
	audioBuf []byte

	chunkMu sync.Mutex
	chunks  [][]byte

	readerDone chan struct{}
	fallback   *time.Timer
}

// NewRecorder creates a recorder that writes finished files into outDir.
func NewRecorder(log zerolog.Logger, outDir string, codec Codec) *Recorder {
	return &Recorder{
		log:        log,
		outDir:     outDir,
		codec:      codec,
		MuxCommand: ffmpegMuxCommand,
	}
}

// Codec returns the negotiated codec the recorder encodes with.
func (r *Recorder) Codec() Codec { return r.codec }

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Start opens a new session. fileName is the base name without extension.
// When the recording has no usable primary audio to end it, a fallback
// timer force-stops the session shortly after maxDuration.
func (r *Recorder) Start(fileName string, width, height, fps int, hasPrimaryAudio bool, maxDuration float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return fmt.Errorf("recording already in progress")
	}
	if fileName == "" {
		fileName = "capture"
	}

	audioR, audioW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("audio pipe: %w", err)
	}

	cmd := r.MuxCommand(r.codec, width, height, fps)
	cmd.ExtraFiles = []*os.File{audioR} // becomes pipe:3 inside the muxer
	stdin, err := cmd.StdinPipe()
	if err != nil {
		audioR.Close()
		audioW.Close()
		return fmt.Errorf("muxer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		audioR.Close()
		audioW.Close()
		return fmt.Errorf("muxer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		audioR.Close()
		audioW.Close()
		return fmt.Errorf("start muxer: %w", err)
	}
	audioR.Close() // the child owns its copy now

	s := &session{
		id:         uuid.New(),
		fileName:   fileName,
		cmd:        cmd,
		video:      stdin,
		audioW:     audioW,
		readerDone: make(chan struct{}),
	}
	go s.readChunks(stdout)

	if !hasPrimaryAudio && maxDuration > 0 {
		deadline := time.Duration((maxDuration + fallbackGraceSeconds) * float64(time.Second))
		s.fallback = time.AfterFunc(deadline, func() {
			r.log.Warn().Str("session", s.id.String()).Msg("fallback timer fired, stopping recording")
			r.Stop()
		})
	}

	r.session = s
	r.log.Info().
		Str("session", s.id.String()).
		Str("codec", r.codec.Name).
		Int("width", width).Int("height", height).Int("fps", fps).
		Msg("recording started")
	return nil
}

// WriteFrame pushes one RGBA frame to the muxer. The frame must match
// the dimensions the session was started with.
func (r *Recorder) WriteFrame(frame *image.RGBA) error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return fmt.Errorf("no active recording")
	}
	_, err := s.video.Write(frame.Pix)
	return err
}

// WriteAudio pushes interleaved stereo float32 PCM to the muxer.
func (r *Recorder) WriteAudio(samples []float32) error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return fmt.Errorf("no active recording")
	}
	need := len(samples) * 4
	if cap(s.audioBuf) < need {
		s.audioBuf = make([]byte, need)
	}
	buf := s.audioBuf[:need]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := s.audioW.Write(buf)
	return err
}

// Stop closes the session, concatenates the accumulated chunks and
// writes the finished file as <fileName>.<ext> in the output directory.
// Stopping an idle recorder returns an empty path and no error.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s == nil {
		return "", nil
	}
	if s.fallback != nil {
		s.fallback.Stop()
	}

	s.video.Close()
	s.audioW.Close()
	<-s.readerDone
	if err := s.cmd.Wait(); err != nil {
		return "", fmt.Errorf("muxer exited: %w", err)
	}

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(r.outDir, s.fileName+"."+r.codec.Ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	s.chunkMu.Lock()
	chunks := s.chunks
	s.chunkMu.Unlock()
	var total int
	for _, chunk := range chunks {
		n, err := f.Write(chunk)
		if err != nil {
			f.Close()
			return "", fmt.Errorf("write output file: %w", err)
		}
		total += n
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	r.log.Info().
		Str("session", s.id.String()).
		Str("path", path).
		Int("bytes", total).
		Msg("recording finished")
	return path, nil
}

func (s *session) readChunks(stdout io.Reader) {
	defer close(s.readerDone)
	for {
		buf := make([]byte, 64*1024)
		n, err := stdout.Read(buf)
		if n > 0 {
			s.chunkMu.Lock()
			s.chunks = append(s.chunks, buf[:n])
			s.chunkMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func ffmpegMuxCommand(codec Codec, width, height, fps int) *exec.Cmd {
	args := []string{
		"-v", "quiet",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-f", "f32le",
		"-ar", strconv.Itoa(media.SampleRate),
		"-ac", strconv.Itoa(media.Channels),
		"-i", "pipe:3",
		"-c:v", codec.VideoEncoder,
		"-c:a", codec.AudioEncoder,
	}
	if codec.Container == "mp4" {
		// mp4 needs fragmented output to be streamable over a pipe
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	args = append(args, "-f", codec.Container, "pipe:1")
	return exec.Command("ffmpeg", args...)
}
