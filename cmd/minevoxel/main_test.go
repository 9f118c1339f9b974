package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/minevoxel/internal/config"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minevoxel.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 1024\nheight = 768\n[renderer]\nvalidation = true\n"), 0o644))

	cfg, err := loadConfig([]string{"-config", path, "-height", "600", "-present-mode", "fifo", "-validation=false"})
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.False(t, cfg.Renderer.Validation)
	assert.Equal(t, config.PresentMode(khr_surface.PresentModeFIFO), cfg.Renderer.PresentMode)
}

func TestLoadConfigUnsetFlagsKeepFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minevoxel.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nvalidation = true\n"), 0o644))

	cfg, err := loadConfig([]string{"-config", path})
	require.NoError(t, err)
	assert.True(t, cfg.Renderer.Validation)
}

func TestLoadConfigRejects(t *testing.T) {
	_, err := loadConfig([]string{"-present-mode", "vsync"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"-width", "-5"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const triangleOBJ = `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
f 1/1 2/2 3/3
`

func writeAssets(t *testing.T) config.AssetConfig {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "meshes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "meshes", "model.obj"), []byte(triangleOBJ), 0o644))

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(filepath.Join(root, "images", "texture.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	assets := config.Default().Assets
	assets.Root = root
	return assets
}

func TestLoadAssets(t *testing.T) {
	cfg := writeAssets(t)

	loaded, err := loadAssets(context.Background(), cfg)
	require.NoError(t, err)

	assert.Len(t, loaded.mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, loaded.mesh.Indices)
	assert.Equal(t, image.Rect(0, 0, 2, 2), loaded.texture.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, loaded.texture.RGBAAt(1, 1))
}

func TestLoadAssetsMissingTexture(t *testing.T) {
	cfg := writeAssets(t)
	cfg.Texture = "images/missing.png"

	_, err := loadAssets(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
