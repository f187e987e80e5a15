package benchaux

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/soypat/querytime"
	"github.com/soypat/querytime/heatmap"
)

// Color domain modes.
const (
	// DomainObserved colors the range of latencies observed over all backends.
	DomainObserved = "observed"
	// DomainFraction colors [0, Fraction*max observed latency].
	DomainFraction = "fraction"
	// DomainFixed colors the literal interval [Min, Max] in microseconds.
	DomainFixed = "fixed"
)

// ColorDomain selects the latency interval mapped onto the color ramp for one set of heatmaps.
type ColorDomain struct {
	// Name prefixes the image file names of the domain.
	Name     string  `json:"name"`
	Mode     string  `json:"mode"`
	Fraction float32 `json:"fraction,omitempty"`
	Min      float32 `json:"min,omitempty"`
	Max      float32 `json:"max,omitempty"`
}

// Resolve returns the color interval of the domain given the observed latency range.
func (d ColorDomain) Resolve(observedMin, observedMax float32) (lo, hi float32) {
	switch d.Mode {
	case DomainFraction:
		return 0, d.Fraction * observedMax
	case DomainFixed:
		return d.Min, d.Max
	}
	return observedMin, observedMax
}

func (d ColorDomain) validate() error {
	switch d.Mode {
	case DomainObserved:
	case DomainFraction:
		if !(d.Fraction > 0) {
			return fmt.Errorf("color domain %q: fraction must be positive", d.Name)
		}
	case DomainFixed:
		if !(d.Max > d.Min) {
			return fmt.Errorf("color domain %q: max must be greater than min", d.Name)
		}
	default:
		return fmt.Errorf("color domain %q: unknown mode %q", d.Name, d.Mode)
	}
	return nil
}

// Config configures a benchmark run. Use [DefaultConfig] or [LoadConfig] to get
// a configuration with defaults set.
type Config struct {
	// SliceZ is the depth of the sampled plane.
	SliceZ              float32 `json:"slice_z"`
	BucketCount         int     `json:"bucket_count"`
	DivergenceThreshold float32 `json:"divergence_threshold"`
	// Repeat is how many times each query is repeated to average its latency.
	Repeat int `json:"repeat"`
	// Backends lists the mesh backends compared against the reference field.
	Backends []string `json:"backends"`
	// Normalize scales the mesh to a 2 unit box centered at the origin before building backends.
	Normalize    bool          `json:"normalize"`
	ColorDomains []ColorDomain `json:"color_domains"`
	// Interpolation is the color space of the heatmap ramp, "rgb" or "hsv".
	Interpolation string `json:"interpolation"`
	OutputDir     string `json:"output_dir"`
	// Prefix is prepended to heatmap file names.
	Prefix string `json:"prefix"`
	// DistanceImage writes a colored slice of the reference distances.
	DistanceImage bool `json:"distance_image"`
	// ErrorImages writes heatmaps of each backend's absolute difference to the reference.
	ErrorImages bool `json:"error_images"`
	// Legend writes a color bar image for each color domain.
	Legend bool `json:"legend"`
	// ThroughputSamples runs a random sample throughput benchmark if positive.
	ThroughputSamples int `json:"throughput_samples"`
	// PlotFile, HTMLFile and Database are optional outputs, disabled when empty.
	PlotFile string `json:"plot_file,omitempty"`
	HTMLFile string `json:"html_file,omitempty"`
	Database string `json:"database,omitempty"`
	// Silent disables console output.
	Silent bool `json:"-"`
	// Output receives console output. Defaults to os.Stdout.
	Output io.Writer `json:"-"`
	// Timer measures query latency. If nil a [querytime.WallTimer] is used.
	Timer querytime.Timer `json:"-"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		SliceZ:              querytime.DefaultSliceZ,
		BucketCount:         querytime.DefaultBucketCount,
		DivergenceThreshold: querytime.DefaultDivergenceThreshold,
		Repeat:              1,
		Backends:            []string{BackendBVH},
		Normalize:           true,
		ColorDomains:        []ColorDomain{{Name: "image", Mode: DomainObserved}},
		Interpolation:       "rgb",
		OutputDir:           ".",
		Prefix:              "",
	}
}

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	var errs []error
	if c.BucketCount < 2 {
		errs = append(errs, fmt.Errorf("bucket_count must be at least 2, got %d", c.BucketCount))
	}
	if c.Repeat < 1 {
		errs = append(errs, fmt.Errorf("repeat must be positive, got %d", c.Repeat))
	}
	if c.ThroughputSamples < 0 {
		errs = append(errs, fmt.Errorf("throughput_samples must not be negative, got %d", c.ThroughputSamples))
	}
	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("need at least one backend"))
	}
	seen := make(map[string]bool)
	for _, name := range c.Backends {
		if !isBackend(name) {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownBackend, name))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("backend %q listed twice", name))
		}
		seen[name] = true
	}
	if len(c.ColorDomains) == 0 {
		errs = append(errs, errors.New("need at least one color domain"))
	}
	names := make(map[string]bool)
	for _, d := range c.ColorDomains {
		if err := d.validate(); err != nil {
			errs = append(errs, err)
		}
		if names[d.Name] {
			errs = append(errs, fmt.Errorf("color domain %q listed twice", d.Name))
		}
		names[d.Name] = true
	}
	if _, err := heatmap.ParseInterpolation(c.Interpolation); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", querytime.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
