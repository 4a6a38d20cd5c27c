// Package cascade runs the ordered decode strategies for a single page.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/imaging"
	"github.com/spherical/scan-router/internal/observability"
)

// DefaultNativeDPI is the resolution of an unscaled render (scale factor 1.0).
const DefaultNativeDPI = 72.0

// Attempt records one decode try of one strategy variant.
type Attempt struct {
	Strategy string
	Kind     Kind
	Variant  string
	Found    int
	Err      error
}

// Result is the outcome of running the cascade on one page.
type Result struct {
	Payloads []string
	Strategy string // Strategy that produced the payloads, empty when none did
	Variant  string
	Attempts []Attempt
	Native   image.Image // Native raster, nil if it could not be rendered
	Image    image.Image // Raster the payloads were decoded from, nil when none were
	Err      error       // Set only when the context was cancelled
}

// Raster returns the native raster, or the decoding raster when the native
// render failed. It is nil when neither exists.
func (r Result) Raster() image.Image {
	if r.Native != nil {
		return r.Native
	}
	return r.Image
}

// Found reports whether any payload was decoded.
func (r Result) Found() bool {
	return len(r.Payloads) > 0
}

// Failures counts attempts that could not produce or decode a raster.
func (r Result) Failures() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Err != nil && !errors.Is(a.Err, context.Canceled) && !errors.Is(a.Err, context.DeadlineExceeded) {
			n++
		}
	}
	return n
}

// Cascade evaluates a fixed list of strategies in order and stops at the
// first variant whose raster decodes to at least one payload.
type Cascade struct {
	strategies []Strategy
	nativeDPI  float64
	decoder    domain.SymbolDecoder
	logger     *observability.Logger
}

// New validates the strategies and builds a cascade.
func New(strategies []Strategy, nativeDPI float64, decoder domain.SymbolDecoder, logger *observability.Logger) (*Cascade, error) {
	if decoder == nil {
		return nil, domain.ConfigError("cascade needs a symbol decoder", nil)
	}
	if len(strategies) == 0 {
		return nil, domain.ConfigError("cascade needs at least one strategy", nil)
	}
	if nativeDPI <= 0 {
		nativeDPI = DefaultNativeDPI
	}
	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			return nil, domain.ConfigError("invalid strategy", err)
		}
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Cascade{
		strategies: append([]Strategy(nil), strategies...),
		nativeDPI:  nativeDPI,
		decoder:    decoder,
		logger:     logger.WithOperation("cascade"),
	}, nil
}

// Strategies returns the configured strategies in evaluation order.
func (c *Cascade) Strategies() []Strategy {
	return append([]Strategy(nil), c.strategies...)
}

// page holds the per-page state shared by strategies, notably the native
// raster which is rendered at most once.
type page struct {
	src       domain.PageSource
	ref       domain.PageRef
	nativeDPI float64

	rendered  bool
	native    image.Image
	nativeErr error
}

func (p *page) nativeRaster() (image.Image, error) {
	if !p.rendered {
		p.rendered = true
		p.native, p.nativeErr = p.src.Render(p.ref.Index, p.nativeDPI)
		if p.nativeErr != nil {
			p.nativeErr = domain.RenderError(fmt.Sprintf("render page %d at %v dpi", p.ref.Index, p.nativeDPI), p.nativeErr)
		}
	}
	return p.native, p.nativeErr
}

// Decode runs the cascade for one page. An empty result is a normal outcome.
func (c *Cascade) Decode(ctx context.Context, src domain.PageSource, ref domain.PageRef) (res Result) {
	p := &page{src: src, ref: ref, nativeDPI: c.nativeDPI}
	log := c.logger.With().Str("document", ref.Document).Int("page", ref.Index).Logger()

	defer func() { res.Native = p.native }()

	for _, s := range c.strategies {
		for _, v := range s.variants() {
			att := Attempt{Strategy: s.Name, Kind: s.Kind, Variant: v.label}
			if err := ctx.Err(); err != nil {
				att.Err = err
				res.Attempts = append(res.Attempts, att)
				res.Err = err
				return res
			}

			img, err := c.prepare(p, s, v)
			if err != nil {
				att.Err = err
				res.Attempts = append(res.Attempts, att)
				log.Warn().Str("strategy", s.Name).Str("variant", v.label).Err(err).Msg("could not prepare raster")
				continue
			}

			payloads, err := c.decoder.Decode(img)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				att.Err = domain.DecodeError("decode raster", err)
				log.Warn().Str("strategy", s.Name).Str("variant", v.label).Err(err).Msg("decoder failed")
			}
			payloads = normalize(payloads)
			att.Found = len(payloads)
			res.Attempts = append(res.Attempts, att)

			if len(payloads) > 0 {
				res.Payloads = payloads
				res.Image = img
				res.Strategy = s.Name
				res.Variant = v.label
				log.Debug().Str("strategy", s.Name).Str("variant", v.label).Strs("payloads", payloads).Msg("decoded")
				return res
			}
			log.Debug().Str("strategy", s.Name).Str("variant", v.label).Msg("no symbol")
		}
	}
	return res
}

func (c *Cascade) prepare(p *page, s Strategy, v variant) (image.Image, error) {
	switch s.Kind {
	case KindNative:
		return p.nativeRaster()
	case KindRenderScale:
		return c.render(p, c.nativeDPI*v.value)
	case KindRenderDPI:
		return c.render(p, v.value)
	case KindCrop:
		native, err := p.nativeRaster()
		if err != nil {
			return nil, err
		}
		return imaging.Crop(native, CropRect(native.Bounds(), *s.Crop))
	case KindAffine:
		native, err := p.nativeRaster()
		if err != nil {
			return nil, err
		}
		return imaging.ScaleOnCanvas(native, v.value)
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown strategy kind %q", s.Kind), nil)
	}
}

func (c *Cascade) render(p *page, dpi float64) (image.Image, error) {
	img, err := p.src.Render(p.ref.Index, dpi)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("render page %d at %v dpi", p.ref.Index, dpi), err)
	}
	return img, nil
}

// CropRect places the crop window on an image with the given bounds. When the
// image is smaller than the window's far edge in either dimension the whole
// image is returned instead.
func CropRect(bounds image.Rectangle, w CropWindow) image.Rectangle {
	if bounds.Dx() < w.X+w.Width || bounds.Dy() < w.Y+w.Height {
		return bounds
	}
	min := bounds.Min.Add(image.Pt(w.X, w.Y))
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(w.Width, w.Height))}
}

// normalize drops empty payloads and duplicates, keeping first-seen order.
func normalize(payloads []string) []string {
	if len(payloads) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(payloads))
	out := make([]string, 0, len(payloads))
	for _, p := range payloads {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
