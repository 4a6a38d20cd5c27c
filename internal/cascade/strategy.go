package cascade

import (
	"fmt"
	"strconv"
)

// Kind selects how a strategy produces candidate rasters.
type Kind string

const (
	// KindNative renders the page once at the native resolution.
	KindNative Kind = "native"
	// KindRenderScale re-renders the page at nativeDPI*factor for each factor.
	KindRenderScale Kind = "render_scale"
	// KindRenderDPI re-renders the page at each absolute resolution.
	KindRenderDPI Kind = "render_dpi"
	// KindCrop crops a fixed window out of the native raster.
	KindCrop Kind = "crop"
	// KindAffine scales the native raster bilinearly onto a same-sized canvas.
	KindAffine Kind = "affine"
)

// CropWindow is a fixed crop rectangle anchored at (X, Y) in native raster pixels.
type CropWindow struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Strategy is one named, statically configured image-preparation recipe.
type Strategy struct {
	Name    string      `yaml:"name"`
	Kind    Kind        `yaml:"kind"`
	Factors []float64   `yaml:"factors,omitempty"`
	DPIs    []float64   `yaml:"dpis,omitempty"`
	Crop    *CropWindow `yaml:"crop,omitempty"`
}

// Default parameters, magnification before reduction and cheap renders first.
var (
	DefaultFactors = []float64{3.0, 2.0, 0.5, 0.25}
	DefaultDPIs    = []float64{72, 150, 300}
	DefaultCrop    = CropWindow{X: 150, Y: 50, Width: 200, Height: 200}
)

// DefaultStrategies returns the standard five-step cascade.
func DefaultStrategies() []Strategy {
	crop := DefaultCrop
	return []Strategy{
		{Name: "native", Kind: KindNative},
		{Name: "scale", Kind: KindRenderScale, Factors: append([]float64(nil), DefaultFactors...)},
		{Name: "resolution", Kind: KindRenderDPI, DPIs: append([]float64(nil), DefaultDPIs...)},
		{Name: "crop", Kind: KindCrop, Crop: &crop},
		{Name: "affine", Kind: KindAffine, Factors: append([]float64(nil), DefaultFactors...)},
	}
}

// Validate checks that the strategy carries the parameters its kind needs.
func (s Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strategy of kind %q has no name", s.Kind)
	}
	switch s.Kind {
	case KindNative:
		return nil
	case KindRenderScale, KindAffine:
		if len(s.Factors) == 0 {
			return fmt.Errorf("strategy %q: factors required", s.Name)
		}
		for _, f := range s.Factors {
			if f <= 0 {
				return fmt.Errorf("strategy %q: factor must be positive, got %v", s.Name, f)
			}
		}
	case KindRenderDPI:
		if len(s.DPIs) == 0 {
			return fmt.Errorf("strategy %q: dpis required", s.Name)
		}
		for _, d := range s.DPIs {
			if d <= 0 {
				return fmt.Errorf("strategy %q: dpi must be positive, got %v", s.Name, d)
			}
		}
	case KindCrop:
		if s.Crop == nil || s.Crop.Width <= 0 || s.Crop.Height <= 0 || s.Crop.X < 0 || s.Crop.Y < 0 {
			return fmt.Errorf("strategy %q: crop window must have a non-negative origin and positive size", s.Name)
		}
	default:
		return fmt.Errorf("strategy %q: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// variant is one concrete parameter set of a strategy.
type variant struct {
	label string
	value float64
}

func (s Strategy) variants() []variant {
	switch s.Kind {
	case KindRenderScale, KindAffine:
		out := make([]variant, 0, len(s.Factors))
		for _, f := range s.Factors {
			out = append(out, variant{label: "x" + formatFloat(f), value: f})
		}
		return out
	case KindRenderDPI:
		out := make([]variant, 0, len(s.DPIs))
		for _, d := range s.DPIs {
			out = append(out, variant{label: formatFloat(d) + "dpi", value: d})
		}
		return out
	default:
		return []variant{{label: string(s.Kind)}}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
