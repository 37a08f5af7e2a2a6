package kernel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/utils"
)

// Spec describes a kernel in a case file. Field is a scalar nodal field
// that replaces the constant pressure or temperature of the load kernels.
type Spec struct {
	Type     string             `json:"type"`
	Analysis string             `json:"analysis,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
	Field    *field.Field       `json:"-"`
}

func (s Spec) param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}

func (s Spec) required(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := s.Params[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) != 0 {
		sort.Strings(missing)
		return fmt.Errorf("kernel %s: missing parameters %s", s.Type, strings.Join(missing, ", "))
	}
	return nil
}

func (s Spec) elasticity() (*Elasticity, error) {
	if err := s.required("E", "nu"); err != nil {
		return nil, err
	}
	a, err := ParseAnalysis(s.Analysis)
	if err != nil {
		return nil, err
	}
	return NewElasticity(a, s.Params["E"], s.Params["nu"])
}

// New builds the kernel named by spec for a field of nVars variables.
func New(spec Spec, nVars int) (Kernel, error) {
	kind := strings.ToLower(spec.Type)
	if spec.Field != nil && kind != "pressure" && kind != "thermal_stress" {
		return nil, fmt.Errorf("kernel %s does not take a field", spec.Type)
	}
	switch kind {
	case "diffusion":
		return Diffusion{Coeff: spec.param("coeff", 1)}, nil
	case "mass":
		return Mass{Density: spec.param("density", 1)}, nil
	case "source":
		vals := make([]float64, nVars)
		for k := range vals {
			vals[k] = spec.param(fmt.Sprintf("value%d", k), spec.param("value", 0))
		}
		return Source{Values: vals}, nil
	case "elasticity":
		el, err := spec.elasticity()
		if err != nil {
			return nil, err
		}
		return el, nil
	case "shell":
		if err := spec.required("E", "nu", "thickness"); err != nil {
			return nil, err
		}
		if nVars != shellVars {
			return nil, utils.InvalidSizeError(shellVars, nVars)
		}
		return NewShell(spec.Params["E"], spec.Params["nu"], spec.Params["thickness"])
	case "gravity":
		if err := spec.required("density"); err != nil {
			return nil, err
		}
		return Gravity{
			Density:   spec.Params["density"],
			G:         spec.param("g", StandardGravity),
			Direction: int(spec.param("direction", float64(nVars-1))),
		}, nil
	case "pressure":
		if spec.Field == nil {
			if err := spec.required("value"); err != nil {
				return nil, err
			}
		}
		return Pressure{Value: spec.Params["value"], Field: spec.Field}, nil
	case "thermal_stress":
		el, err := spec.elasticity()
		if err != nil {
			return nil, err
		}
		required := []string{"alpha"}
		if spec.Field == nil {
			required = append(required, "temperature")
		}
		if err = spec.required(required...); err != nil {
			return nil, err
		}
		return ThermalStress{
			Elasticity:  el,
			Alpha:       spec.Params["alpha"],
			Reference:   spec.param("reference", 0),
			Temperature: spec.Params["temperature"],
			Field:       spec.Field,
		}, nil
	case "convection":
		if err := spec.required("h", "ambient"); err != nil {
			return nil, err
		}
		return ConvectiveBoundary{H: spec.Params["h"], Ambient: spec.Params["ambient"]}, nil
	}
	return nil, fmt.Errorf("unknown kernel type %q", spec.Type)
}
