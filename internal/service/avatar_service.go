package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rendezvous/internal/config"
	"rendezvous/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarDir       = "/tmp/rendezvous/avatars"
	DefaultAvatarPath      = "/media/avatars/default_avatar.png"
	DefaultAvatarMaxSizeMB = 10
	AvatarPublicPrefix     = "/media/avatars"

	AvatarMaxSize = 1024
	JPEGQuality   = 85
	WebPQuality   = 75

	// Watermark width as a fraction of the avatar width.
	watermarkScale  = 4
	watermarkMargin = 8
)

// AvatarService validates uploaded avatars, stamps them with a watermark and
// stores JPEG and WebP renditions in the avatar directory.
type AvatarService struct {
	dir           string
	maxBytes      int64
	defaultAvatar string
	watermark     image.Image
}

// NewAvatarService builds an AvatarService from cfg. A configured watermark file
// must decode; without one a generated stamp is used.
func NewAvatarService(cfg *config.Config) (*AvatarService, error) {
	s := &AvatarService{
		dir:           DefaultAvatarDir,
		maxBytes:      DefaultAvatarMaxSizeMB * 1024 * 1024,
		defaultAvatar: DefaultAvatarPath,
		watermark:     generatedWatermark(),
	}
	if cfg == nil {
		return s, nil
	}
	if cfg.AvatarDir != "" {
		s.dir = cfg.AvatarDir
	}
	if cfg.AvatarMaxUploadMB > 0 {
		s.maxBytes = int64(cfg.AvatarMaxUploadMB) * 1024 * 1024
	}
	if cfg.DefaultAvatar != "" {
		s.defaultAvatar = cfg.DefaultAvatar
	}
	if cfg.WatermarkPath != "" {
		wm, err := loadImage(cfg.WatermarkPath)
		if err != nil {
			return nil, fmt.Errorf("load watermark %s: %w", cfg.WatermarkPath, err)
		}
		s.watermark = wm
	}
	return s, nil
}

// Dir is the directory avatars are written to.
func (s *AvatarService) Dir() string { return s.dir }

// DefaultAvatar is the public path used when a user uploads nothing.
func (s *AvatarService) DefaultAvatar() string { return s.defaultAvatar }

// Process stores a watermarked avatar for owner and returns its public path.
// Empty content yields the default avatar.
func (s *AvatarService) Process(ctx context.Context, owner string, content []byte) (string, error) {
	if len(content) == 0 {
		return s.defaultAvatar, nil
	}
	if int64(len(content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("Avatar too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil || decodedFormatToMime(format) == "" {
		return "", models.NewValidationError("Invalid image file")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stamped := s.applyWatermark(resizeToFit(decoded, AvatarMaxSize, AvatarMaxSize))

	jpgBytes, err := encodeJPEG(stamped, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(stamped, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	hash := buildAvatarHash(owner, jpgBytes)
	jpgPath := filepath.Join(s.dir, hash+".jpg")
	webpPath := filepath.Join(s.dir, hash+".webp")

	if err := writeBytesToFile(jpgPath, jpgBytes); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpPath, webpBytes); err != nil {
		cleanupImageFiles([]string{jpgPath})
		return "", models.NewInternalError(err)
	}

	return path.Join(AvatarPublicPrefix, hash+".jpg"), nil
}

// Remove deletes the files behind a path returned by Process. The default avatar is kept.
func (s *AvatarService) Remove(publicPath string) {
	if publicPath == "" || publicPath == s.defaultAvatar {
		return
	}
	name := strings.TrimSuffix(path.Base(publicPath), ".jpg")
	if !isValidAvatarHash(name) {
		return
	}
	cleanupImageFiles([]string{
		filepath.Join(s.dir, name+".jpg"),
		filepath.Join(s.dir, name+".webp"),
	})
}

// applyWatermark pastes the watermark into the bottom-right corner, shrinking it
// to a quarter of the avatar width when needed.
func (s *AvatarService) applyWatermark(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	if s.watermark == nil {
		return dst
	}
	maxW := b.Dx() / watermarkScale
	if maxW < 1 {
		return dst
	}
	wm := resizeToFit(s.watermark, maxW, b.Dy())
	wb := wm.Bounds()

	x := b.Dx() - wb.Dx() - watermarkMargin
	y := b.Dy() - wb.Dy() - watermarkMargin
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	target := image.Rect(x, y, x+wb.Dx(), y+wb.Dy())
	draw.Draw(dst, target, wm, wb.Min, draw.Over)
	return dst
}

func generatedWatermark() image.Image {
	const w, h = 160, 48
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill := color.NRGBA{R: 255, G: 255, B: 255, A: 90}
	edge := color.NRGBA{R: 255, G: 255, B: 255, A: 170}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill
			if x < 2 || y < 2 || x >= w-2 || y >= h-2 || (x+y)%24 < 2 {
				c = edge
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func loadImage(p string) (image.Image, error) {
	// #nosec G304: path comes from trusted configuration
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func buildAvatarHash(owner string, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:", strings.ToLower(owner))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func isValidAvatarHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

func cleanupImageFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
