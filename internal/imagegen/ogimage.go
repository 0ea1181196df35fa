package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// OGWidth and OGHeight are the standard Open Graph image dimensions.
const (
	OGWidth  = 1200
	OGHeight = 630
)

var (
	fontLarge   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		fontRegular, fontErr = newFace(goregular.TTF, 36)
		if fontErr != nil {
			fontErr = fmt.Errorf("regular face: %w", fontErr)
			return
		}
		fontLarge, fontErr = newFace(gobold.TTF, 120)
		if fontErr != nil {
			fontErr = fmt.Errorf("large face: %w", fontErr)
		}
	})
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// OGImageData contains the dynamic data for the OG image.
// The bundled Go fonts only cover Latin glyphs, so Title should be romanised.
type OGImageData struct {
	Title       string  // e.g. "Kagoshima"
	Temperature float64 // Celsius
	Condition   string  // e.g. "Rain"
	Advice      string  // one line, e.g. "Umbrella: rain expected at 15:00"
}

// OGImageCache caches rendered OG images per key for a short period.
type OGImageCache struct {
	mu       sync.RWMutex
	entries  map[string]ogEntry
	cacheTTL time.Duration
}

type ogEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewOGImageCache creates a new OG image cache with the specified TTL.
func NewOGImageCache(ttl time.Duration) *OGImageCache {
	return &OGImageCache{
		entries:  make(map[string]ogEntry),
		cacheTTL: ttl,
	}
}

// Get returns the cached OG image if still valid.
func (c *OGImageCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores a new OG image in the cache.
func (c *OGImageCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = ogEntry{data: data, expiresAt: time.Now().Add(c.cacheTTL)}
}

// GenerateOGImage composites the banner image with a text overlay.
func GenerateOGImage(weatherImage []byte, data OGImageData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	src, _, err := image.Decode(bytes.NewReader(weatherImage))
	if err != nil {
		return nil, fmt.Errorf("decode weather image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds()), draw.Src, nil)

	drawGradientOverlay(dst)
	drawTextOverlay(dst, data)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode OG image: %w", err)
	}
	return buf.Bytes(), nil
}

// coverRect returns the centred region of src with the OG aspect ratio.
func coverRect(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w*OGHeight > h*OGWidth {
		cw := h * OGWidth / OGHeight
		x0 := b.Min.X + (w-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := w * OGHeight / OGWidth
	y0 := b.Min.Y + (h-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}

// drawGradientOverlay darkens the bottom of the image for text readability.
func drawGradientOverlay(img *image.RGBA) {
	bounds := img.Bounds()
	gradientHeight := 340

	for y := bounds.Max.Y - gradientHeight; y < bounds.Max.Y; y++ {
		progress := float64(y-(bounds.Max.Y-gradientHeight)) / float64(gradientHeight)
		alpha := progress * progress * 0.85

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			orig := img.RGBAAt(x, y)
			orig.R = uint8(float64(orig.R) * (1 - alpha))
			orig.G = uint8(float64(orig.G) * (1 - alpha))
			orig.B = uint8(float64(orig.B) * (1 - alpha))
			img.SetRGBA(x, y, orig)
		}
	}
}

func drawTextOverlay(img *image.RGBA, data OGImageData) {
	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}

	drawText(img, fmt.Sprintf("%.0f°C", data.Temperature), 60, OGHeight-200, white, fontLarge)

	line := data.Title
	if data.Condition != "" {
		if line != "" {
			line += " - "
		}
		line += data.Condition
	}
	if line != "" {
		drawText(img, line, 60, OGHeight-120, white, fontRegular)
	}
	if data.Advice != "" {
		drawText(img, data.Advice, 60, OGHeight-70, lightGray, fontRegular)
	}
	drawText(img, "tenki", OGWidth-160, OGHeight-30, lightGray, fontRegular)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// GenerateFallbackOGImage renders the card on a plain gradient when no banner exists.
func GenerateFallbackOGImage(data OGImageData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	for y := 0; y < OGHeight; y++ {
		progress := float64(y) / float64(OGHeight)
		c := color.RGBA{uint8(40 + progress*20), uint8(70 + progress*30), uint8(120 + progress*40), 255}
		for x := 0; x < OGWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	drawTextOverlay(img, data)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode fallback OG image: %w", err)
	}
	return buf.Bytes(), nil
}

// RomanizeKey turns a location key such as "kobe-sannomiya" into "Kobe Sannomiya".
func RomanizeKey(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
