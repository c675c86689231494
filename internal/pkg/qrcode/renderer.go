// Package qrcode renders ticket tokens as PNG QR codes.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
	goqrcode "github.com/skip2/go-qrcode"
)

// ErrRender wraps every rendering failure.
var ErrRender = errors.New("qr code rendering failed")

// Config defines renderer settings
type Config struct {
	// Size is the PNG width and height in pixels
	Size int
	// Margin is the quiet zone width in modules
	Margin int
}

// Renderer encodes tokens as black-on-white PNG images at error-correction level M.
type Renderer struct {
	size   int
	margin int
}

// NewRenderer creates a renderer, applying defaults for unset values.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Size <= 0 {
		cfg.Size = 300
	}
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	return &Renderer{size: cfg.Size, margin: cfg.Margin}
}

// Render returns the PNG bytes of a QR code carrying token.
func (r *Renderer) Render(token string) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrRender)
	}

	code, err := goqrcode.New(token, goqrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	code.DisableBorder = true
	code.ForegroundColor = color.Black
	code.BackgroundColor = color.White

	modules := len(code.Bitmap())
	if modules == 0 {
		return nil, fmt.Errorf("%w: empty symbol", ErrRender)
	}
	total := modules + 2*r.margin
	if r.size < total {
		return nil, fmt.Errorf("%w: %dpx cannot fit %d modules", ErrRender, r.size, total)
	}

	symbol := code.Image(r.size * modules / total)
	canvas := imaging.New(r.size, r.size, color.White)
	out := imaging.PasteCenter(canvas, symbol)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}
