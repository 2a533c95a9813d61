package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"

	"github.com/ByLCY/rotulus/media"
)

// MonitorSink receives the monitor bus in interleaved stereo float32.
type MonitorSink interface {
	Start() error
	Write(samples []float32) error
	Close() error
}

// FFPlaySink plays the monitor bus on the local audio device by piping
// raw PCM into an ffplay subprocess.
type FFPlaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	buf   []byte
}

// NewFFPlaySink creates an unstarted ffplay sink.
func NewFFPlaySink() *FFPlaySink { return &FFPlaySink{} }

// Start launches the ffplay subprocess.
func (s *FFPlaySink) Start() error {
	cmd := exec.Command("ffplay",
		"-f", "f32le",
		"-ar", strconv.Itoa(media.SampleRate),
		"-ch_layout", "stereo",
		"-nodisp",
		"-loglevel", "quiet",
		"-i", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Write streams one chunk of PCM to ffplay.
func (s *FFPlaySink) Write(samples []float32) error {
	if s.stdin == nil {
		return fmt.Errorf("ffplay sink not started")
	}
	need := len(samples) * 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := s.stdin.Write(buf)
	return err
}

// Close stops the subprocess.
func (s *FFPlaySink) Close() error {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

// NullSink discards the monitor bus. It stands in for the audio device
// when ffplay is unavailable, keeping the graph and capture path alive.
type NullSink struct{}

func (NullSink) Start() error              { return nil }
func (NullSink) Write(samples []float32) error { return nil }
func (NullSink) Close() error              { return nil }
