package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"rendezvous/internal/models"
	"rendezvous/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarService_EmptyUploadUsesDefault(t *testing.T) {
	svc, err := NewAvatarService(testConfig(t))
	require.NoError(t, err)

	got, err := svc.Process(context.Background(), "anna@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatarPath, got)

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAvatarService_RejectsInvalidUploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.AvatarMaxUploadMB = 1
	svc, err := NewAvatarService(cfg)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
	}{
		{name: "plain text", content: []byte("definitely not an image")},
		{name: "truncated png", content: testutil.TinyPNG(t, 8, 8)[:20]},
		{name: "too large", content: append(testutil.TinyPNG(t, 8, 8), bytes.Repeat([]byte{0}, 1024*1024)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Process(context.Background(), "anna@example.com", tt.content)
			assertAppErrorCode(t, err, models.CodeValidation)
		})
	}
}

func TestAvatarService_WatermarksAndStoresRenditions(t *testing.T) {
	svc, err := NewAvatarService(testConfig(t))
	require.NoError(t, err)

	public, err := svc.Process(context.Background(), "anna@example.com", testutil.TinyJPEG(t, 200, 120))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(public, AvatarPublicPrefix+"/"))
	assert.Equal(t, ".jpg", path.Ext(public))

	name := strings.TrimSuffix(path.Base(public), ".jpg")
	assert.True(t, isValidAvatarHash(name))
	for _, ext := range []string{".jpg", ".webp"} {
		info, err := os.Stat(filepath.Join(svc.Dir(), name+ext))
		require.NoError(t, err, ext)
		assert.Positive(t, info.Size())
	}

	f, err := os.Open(filepath.Join(svc.Dir(), name+".jpg"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 120, cfg.Height)

	svc.Remove(public)
	_, err = os.Stat(filepath.Join(svc.Dir(), name+".jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestAvatarService_LargeImagesAreDownscaled(t *testing.T) {
	svc, err := NewAvatarService(testConfig(t))
	require.NoError(t, err)

	public, err := svc.Process(context.Background(), "boris@example.com", testutil.TinyPNG(t, 2048, 1024))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(svc.Dir(), path.Base(public)))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, AvatarMaxSize, cfg.Width)
	assert.Equal(t, AvatarMaxSize/2, cfg.Height)
}

func TestAvatarService_ApplyWatermarkChangesCorner(t *testing.T) {
	svc, err := NewAvatarService(testConfig(t))
	require.NoError(t, err)

	src, _, err := image.Decode(bytes.NewReader(testutil.TinyPNG(t, 400, 400)))
	require.NoError(t, err)
	out := svc.applyWatermark(src)

	require.Equal(t, src.Bounds().Size(), out.Bounds().Size())
	rgba := func(c color.Color) color.RGBA { return color.RGBAModel.Convert(c).(color.RGBA) }
	// Top-left is untouched, bottom-right carries the stamp.
	assert.Equal(t, rgba(src.At(1, 1)), rgba(out.At(1, 1)))
	assert.NotEqual(t, rgba(src.At(380, 380)), rgba(out.At(380, 380)))
}

func TestNewAvatarService_BadWatermarkPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatermarkPath = filepath.Join(t.TempDir(), "missing.png")
	_, err := NewAvatarService(cfg)
	assert.Error(t, err)
}

func TestAvatarService_RemoveIgnoresForeignPaths(t *testing.T) {
	svc, err := NewAvatarService(testConfig(t))
	require.NoError(t, err)
	victim := filepath.Join(svc.Dir(), "keep.jpg")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0o600))

	svc.Remove(DefaultAvatarPath)
	svc.Remove("/media/avatars/keep.jpg")
	svc.Remove("../../etc/passwd")

	_, err = os.Stat(victim)
	assert.NoError(t, err)
}
