// Filter kinds, parameter snapshot and parameter domains
package algorithms

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// ErrInvalidParameter is returned for values that cannot be brought into
// a filter's domain (NaN, infinities, non-positive gamma, unknown kind).
var ErrInvalidParameter = errors.New("invalid parameter")

// Kind identifies one of the four adjustments.
type Kind int

const (
	Brightness Kind = iota
	Contrast
	Saturation
	Gamma
)

// Kinds lists every kind in pipeline order.
func Kinds() []Kind {
	return []Kind{Brightness, Contrast, Saturation, Gamma}
}

func (k Kind) String() string {
	switch k {
	case Brightness:
		return "brightness"
	case Contrast:
		return "contrast"
	case Saturation:
		return "saturation"
	case Gamma:
		return "gamma"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a name such as "contrast" to its Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(name, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown filter %q", ErrInvalidParameter, name)
}

// Parameters is a snapshot of the four adjustment values. It is passed by
// value into every render request.
type Parameters struct {
	Brightness int
	Contrast   int
	Saturation int
	Gamma      float64
}

// Identity returns the parameters for which every filter is a no-op.
func Identity() Parameters {
	return Parameters{Gamma: 1.0}
}

// IsIdentity reports whether the filter of kind k would leave its input
// unchanged.
func (p Parameters) IsIdentity(k Kind) bool {
	switch k {
	case Brightness:
		return p.Brightness == 0
	case Contrast:
		return p.Contrast == 0
	case Saturation:
		return p.Saturation == 0
	case Gamma:
		return p.Gamma == 1.0
	}
	return true
}

// Get returns the value of kind k as a float.
func (p Parameters) Get(k Kind) float64 {
	switch k {
	case Brightness:
		return float64(p.Brightness)
	case Contrast:
		return float64(p.Contrast)
	case Saturation:
		return float64(p.Saturation)
	case Gamma:
		return p.Gamma
	}
	return 0
}

// With returns a copy of p with kind k set to value, clamped into its
// domain.
func (p Parameters) With(k Kind, value float64) (Parameters, error) {
	v, err := Clamp(k, value)
	if err != nil {
		return p, err
	}

	switch k {
	case Brightness:
		p.Brightness = int(v)
	case Contrast:
		p.Contrast = int(v)
	case Saturation:
		p.Saturation = int(v)
	case Gamma:
		p.Gamma = v
	}
	return p, nil
}

// Validate rejects snapshots the filters cannot evaluate. Out-of-range
// integer values are accepted here; they saturate inside the filters.
func (p Parameters) Validate() error {
	if math.IsNaN(p.Gamma) || math.IsInf(p.Gamma, 0) || p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive and finite, got %v", ErrInvalidParameter, p.Gamma)
	}
	return nil
}

// ParameterInfo describes a parameter domain for UI generation and
// boundary clamping.
type ParameterInfo struct {
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Step        float64 `json:"step"`
	Default     float64 `json:"default"`
	Description string  `json:"description"`
}

// Contrast and saturation stop one short of 255: the factor
// (255+v)/(255-v) is undefined at v = 255.
const maxFactorParam = 254

var parameterInfo = map[Kind]ParameterInfo{
	Brightness: {
		Kind: Brightness, Name: "brightness",
		Min: -255, Max: 255, Step: 1, Default: 0,
		Description: "Offset added to every color channel",
	},
	Contrast: {
		Kind: Contrast, Name: "contrast",
		Min: -maxFactorParam, Max: maxFactorParam, Step: 1, Default: 0,
		Description: "Stretch of channel values around the average image brightness",
	},
	Saturation: {
		Kind: Saturation, Name: "saturation",
		Min: -maxFactorParam, Max: maxFactorParam, Step: 1, Default: 0,
		Description: "Stretch of channel values around each pixel's gray level",
	},
	Gamma: {
		Kind: Gamma, Name: "gamma",
		Min: 0.2, Max: 5.0, Step: 0.2, Default: 1.0,
		Description: "Power curve applied to normalized channel values",
	},
}

// Info returns the domain of kind k.
func Info(k Kind) ParameterInfo {
	return parameterInfo[k]
}

// Infos returns every domain in pipeline order.
func Infos() []ParameterInfo {
	return lo.Map(Kinds(), func(k Kind, _ int) ParameterInfo {
		return parameterInfo[k]
	})
}

// Clamp brings value into the domain of kind k. Integer kinds truncate
// toward zero. Gamma must be positive before clamping.
func Clamp(k Kind, value float64) (float64, error) {
	info, ok := parameterInfo[k]
	if !ok {
		return 0, fmt.Errorf("%w: unknown filter %v", ErrInvalidParameter, k)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParameter, info.Name, value)
	}
	if k == Gamma {
		if value <= 0 {
			return 0, fmt.Errorf("%w: gamma must be positive, got %v", ErrInvalidParameter, value)
		}
		return lo.Clamp(value, info.Min, info.Max), nil
	}
	return math.Trunc(lo.Clamp(value, info.Min, info.Max)), nil
}
