// Package config holds the application settings read from a TOML file.
// Anything the file leaves out keeps its value from Default.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
	"github.com/vkngwrapper/minevoxel/internal/swapchain"
)

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetConfig    `toml:"assets"`
	// LogLevel accepts the slog level names, e.g. "debug" or "warn".
	LogLevel slog.Level `toml:"log_level"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	Validation  bool        `toml:"validation"`
	PresentMode PresentMode `toml:"present_mode"`
	// FenceTimeout bounds every fence wait. Zero waits forever.
	FenceTimeout Duration `toml:"fence_timeout"`
}

// AssetConfig paths are relative to Root unless absolute.
type AssetConfig struct {
	Root           string `toml:"root"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	Model          string `toml:"model"`
	Material       string `toml:"material"`
	Texture        string `toml:"texture"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "minevoxel",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			PresentMode: PresentMode(khr_surface.PresentModeMailbox),
		},
		Assets: AssetConfig{
			Root:           "assets",
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			Model:          "meshes/model.obj",
			Material:       "meshes/model.mtl",
			Texture:        "images/texture.png",
		},
		LogLevel: slog.LevelInfo,
	}
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to load config %s", path)
	}
	return cfg, nil
}

// Decode reads TOML over the defaults and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, errors.Newf("unknown config keys:\n%s", strict.String())
		}
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FenceTimeout < 0 {
		return errors.Newf("fence timeout must not be negative, got %s", time.Duration(c.Renderer.FenceTimeout))
	}

	required := map[string]string{
		"vertex_shader":   c.Assets.VertexShader,
		"fragment_shader": c.Assets.FragmentShader,
		"model":           c.Assets.Model,
		"texture":         c.Assets.Texture,
	}
	for key, value := range required {
		if value == "" {
			return errors.Newf("assets.%s must be set", key)
		}
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return buf.Bytes(), nil
}

// Path resolves an asset path against the asset root.
func (a AssetConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Root, name)
}

func (c Config) SwapchainOptions() swapchain.Options {
	opts := swapchain.DefaultOptions()
	opts.PresentMode = khr_surface.PresentMode(c.Renderer.PresentMode)
	if c.Renderer.FenceTimeout > 0 {
		opts.FenceTimeout = time.Duration(c.Renderer.FenceTimeout)
	} else {
		opts.FenceTimeout = gpu.NoTimeout
	}
	return opts
}

// Duration is a time.Duration written as a string such as "2s" or "500ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(parsed)
	return nil
}

var presentModes = map[string]khr_surface.PresentMode{
	"immediate":    khr_surface.PresentModeImmediate,
	"mailbox":      khr_surface.PresentModeMailbox,
	"fifo":         khr_surface.PresentModeFIFO,
	"fifo_relaxed": khr_surface.PresentModeFIFORelaxed,
}

// PresentMode is the preferred present mode by name. FIFO is used whenever
// the surface does not offer it.
type PresentMode khr_surface.PresentMode

func (m PresentMode) String() string {
	for name, mode := range presentModes {
		if PresentMode(mode) == m {
			return name
		}
	}
	return strconv.Itoa(int(m))
}

func (m PresentMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PresentMode) UnmarshalText(text []byte) error {
	mode, ok := presentModes[strings.ToLower(string(text))]
	if !ok {
		return errors.Newf("unknown present mode %q", text)
	}
	*m = PresentMode(mode)
	return nil
}
