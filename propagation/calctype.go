package propagation

import (
	"fmt"

	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/parameter"
)

// CalcType selects how many ray slots an object uses
type CalcType uint8

const (
	// CalcNone is the unset state; propagation does not run
	CalcNone CalcType = iota
	// CalcIgnore issues no rays and holds both outputs at zero
	CalcIgnore
	// CalcSingleRay uses the direct ray only
	CalcSingleRay
	// CalcMultiRay uses the direct ray plus four peripheral rays
	CalcMultiRay
)

// NumRays returns the slot count for c
func (c CalcType) NumRays() int {
	switch c {
	case CalcSingleRay:
		return 1
	case CalcMultiRay:
		return parameter.MaxObstructionRays
	default:
		return 0
	}
}

func (c CalcType) String() string {
	switch c {
	case CalcNone:
		return config.CalcTypeNone
	case CalcIgnore:
		return config.CalcTypeIgnore
	case CalcSingleRay:
		return config.CalcTypeSingle
	case CalcMultiRay:
		return config.CalcTypeMulti
	default:
		return fmt.Sprintf("calc(%d)", uint8(c))
	}
}

// Next cycles Ignore -> Single -> Multi -> Ignore
func (c CalcType) Next() CalcType {
	switch c {
	case CalcIgnore:
		return CalcSingleRay
	case CalcSingleRay:
		return CalcMultiRay
	default:
		return CalcIgnore
	}
}

// ParseCalcType maps a config name to a CalcType; empty is CalcNone
// Accepted spellings are those of config.CanonicalCalcType
func ParseCalcType(s string) (CalcType, error) {
	name, ok := config.CanonicalCalcType(s)
	if !ok {
		return CalcNone, fmt.Errorf("unknown calc type %q", s)
	}
	switch name {
	case config.CalcTypeIgnore:
		return CalcIgnore, nil
	case config.CalcTypeSingle:
		return CalcSingleRay, nil
	case config.CalcTypeMulti:
		return CalcMultiRay, nil
	default:
		return CalcNone, nil
	}
}
