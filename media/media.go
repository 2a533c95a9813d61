package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/scene"
)

// PCM format shared by the whole audio pipeline.
const (
	SampleRate = 48000
	Channels   = 2
)

// LoadError marks a resource that failed to load. The element referencing
// it is skipped during composition while the rest of the scene stays live.
type LoadError struct {
	Name string
	Src  string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("media %s (%s): %v", e.Name, e.Src, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AudioClip is a fully decoded audio resource: interleaved stereo
// float32 samples at SampleRate plus the probed duration in seconds.
type AudioClip struct {
	Name     string
	Src      string
	Duration float64
	PCM      []float32
}

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Duration(path string) (float64, error)
}

// Decoder converts a media file into interleaved stereo float32 PCM.
type Decoder interface {
	DecodePCM(path string) ([]float32, error)
}

// Table holds the decoded resources of one project, keyed by the logical
// names the scene config refers to. Loading is per-resource: a failure is
// recorded and does not abort the remaining resources.
type Table struct {
	baseDir string
	log     zerolog.Logger
	prober  Prober
	decoder Decoder
	cache   *ProbeCache

	mu     sync.RWMutex
	images map[string]image.Image
	clips  map[string]*AudioClip
	failed map[string]*LoadError
}

// Option configures a Table.
type Option func(*Table)

// WithProber overrides the duration prober, mainly for tests.
func WithProber(p Prober) Option { return func(t *Table) { t.prober = p } }

// WithDecoder overrides the PCM decoder, mainly for tests.
func WithDecoder(d Decoder) Option { return func(t *Table) { t.decoder = d } }

// WithProbeCache attaches a persistent duration cache.
func WithProbeCache(c *ProbeCache) Option { return func(t *Table) { t.cache = c } }

// NewTable creates an empty resource table rooted at baseDir.
func NewTable(baseDir string, log zerolog.Logger, opts ...Option) *Table {
	t := &Table{
		baseDir: baseDir,
		log:     log,
		prober:  &FFProber{},
		decoder: &FFDecoder{},
		images:  map[string]image.Image{},
		clips:   map[string]*AudioClip{},
		failed:  map[string]*LoadError{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load ingests every image and audio resource of the set. Failures are
// collected per resource; the returned slice is empty on full success.
func (t *Table) Load(res scene.ResourceSet) []error {
	var errs []error
	for name, r := range res.Images {
		if err := t.LoadImage(name, r.Src); err != nil {
			errs = append(errs, err)
		}
	}
	for name, r := range res.Audio {
		if err := t.LoadAudio(name, r.Src); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoadImage decodes an image file and registers it under name.
func (t *Table) LoadImage(name, src string) error {
	path, err := t.resolve(src)
	if err != nil {
		return t.fail(name, src, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return t.fail(name, src, err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return t.fail(name, src, err)
	}

	t.mu.Lock()
	t.images[name] = img
	delete(t.failed, name)
	t.mu.Unlock()
	t.log.Debug().Str("name", name).Str("src", src).Msg("image loaded")
	return nil
}

// LoadAudio probes and decodes an audio file and registers it under name.
// The probed duration is cached keyed by path and mtime when a cache is
// attached, so repeated loads of an unchanged file skip the probe.
func (t *Table) LoadAudio(name, src string) error {
	path, err := t.resolve(src)
	if err != nil {
		return t.fail(name, src, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return t.fail(name, src, err)
	}

	duration, cached := 0.0, false
	if t.cache != nil {
		duration, cached = t.cache.Get(path, info.ModTime())
	}
	if !cached {
		duration, err = t.prober.Duration(path)
		if err != nil {
			return t.fail(name, src, err)
		}
		if t.cache != nil {
			if err := t.cache.Put(path, info.ModTime(), duration); err != nil {
				t.log.Warn().Err(err).Str("path", path).Msg("probe cache write failed")
			}
		}
	}

	pcm, err := t.decoder.DecodePCM(path)
	if err != nil {
		return t.fail(name, src, err)
	}
	if duration <= 0 && len(pcm) > 0 {
		duration = float64(len(pcm)/Channels) / SampleRate
	}

	clip := &AudioClip{Name: name, Src: src, Duration: duration, PCM: pcm}
	t.mu.Lock()
	t.clips[name] = clip
	delete(t.failed, name)
	t.mu.Unlock()
	t.log.Debug().Str("name", name).Float64("duration", duration).Bool("probeCached", cached).Msg("audio loaded")
	return nil
}

// Image returns a decoded image by logical name.
func (t *Table) Image(name string) (image.Image, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	img, ok := t.images[name]
	return img, ok
}

// Clip returns a decoded audio clip by logical name.
func (t *Table) Clip(name string) (*AudioClip, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clip, ok := t.clips[name]
	return clip, ok
}

// Err reports the load error recorded for name, if any.
func (t *Table) Err(name string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.failed[name]; ok {
		return e
	}
	return nil
}

func (t *Table) fail(name, src string, err error) error {
	e := &LoadError{Name: name, Src: src, Err: err}
	t.mu.Lock()
	t.failed[name] = e
	t.mu.Unlock()
	t.log.Error().Err(err).Str("name", name).Str("src", src).Msg("media load failed")
	return e
}

func (t *Table) resolve(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("empty src")
	}
	if filepath.IsAbs(src) {
		return src, nil
	}
	if t.baseDir == "" {
		return "", fmt.Errorf("relative path %s needs a resource directory", src)
	}
	return filepath.Join(t.baseDir, src), nil
}
