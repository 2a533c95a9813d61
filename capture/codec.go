package capture

import (
	"bufio"
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// ErrEncoderUnavailable means no candidate codec pair can be encoded on
// this machine. Callers roll back to the non-recording state.
var ErrEncoderUnavailable = errors.New("no usable encoder")

// Codec is one negotiated video/audio encoder pair with its container.
type Codec struct {
	Name         string
	VideoEncoder string
	AudioEncoder string
	Container    string
	Ext          string
}

// candidates in preference order: VP9 first, VP8 as the lighter WebM
// option, H.264/AAC MP4 for machines without libvpx, and last the
// encoders compiled into every ffmpeg so a build without external codec
// libraries still produces a file.
var candidates = []Codec{
	{Name: "vp9", VideoEncoder: "libvpx-vp9", AudioEncoder: "libopus", Container: "webm", Ext: "webm"},
	{Name: "vp8", VideoEncoder: "libvpx", AudioEncoder: "libopus", Container: "webm", Ext: "webm"},
	{Name: "h264", VideoEncoder: "libx264", AudioEncoder: "aac", Container: "mp4", Ext: "mp4"},
	{Name: "mpeg4", VideoEncoder: "mpeg4", AudioEncoder: "aac", Container: "mp4", Ext: "mp4"},
}

// EncoderProber reports whether a named encoder is available.
type EncoderProber interface {
	Supported(encoder string) bool
}

// Negotiate returns the first candidate whose encoders are both usable.
func Negotiate(p EncoderProber) (Codec, error) {
	for _, c := range candidates {
		if p.Supported(c.VideoEncoder) && p.Supported(c.AudioEncoder) {
			return c, nil
		}
	}
	return Codec{}, ErrEncoderUnavailable
}

// FFEncoderProber asks ffmpeg for its compiled-in encoder list once and
// answers all probes from that snapshot.
type FFEncoderProber struct {
	once     sync.Once
	encoders map[string]bool
}

// Supported reports whether ffmpeg lists the encoder.
func (p *FFEncoderProber) Supported(encoder string) bool {
	p.once.Do(p.load)
	return p.encoders[encoder]
}

func (p *FFEncoderProber) load() {
	p.encoders = map[string]bool{}
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return
	}
	// Encoder lines look like " V....D libx264    H.264 / AVC ...".
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && len(fields[0]) >= 2 {
			p.encoders[fields[1]] = true
		}
	}
}
