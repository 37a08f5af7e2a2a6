package InputParameters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML case file
type CaseParameters struct {
	Title         string               `json:"Title"`
	Mesh          string               `json:"Mesh"`  // native mesh directory
	Procs         int                  `json:"Procs"` // ranks, must match the partition artifacts
	Analysis      string               `json:"Analysis"`
	Field         FieldParameters      `json:"Field"`
	Kernels       []KernelParameters   `json:"Kernels"`
	FixedDof      []FixedDofParameters `json:"FixedDof"`
	Time          TimeParameters       `json:"Time"`
	NumModes      int                  `json:"NumModes"`
	Output        string               `json:"Output"`
	Solver        SolverParameters     `json:"Solver"`
	InitialValues []float64            `json:"InitialValues"` // one per variable
}

type FieldParameters struct {
	Name    string `json:"Name"`
	NumVars int    `json:"NumVars"`
}

type KernelParameters struct {
	Region   string             `json:"Region"`
	Type     string             `json:"Type"`
	Analysis string             `json:"Analysis,omitempty"` // elasticity: PlaneStress, PlaneStrain, Solid
	Params   map[string]float64 `json:"Params,omitempty"`
	Field    string             `json:"Field,omitempty"` // globally ordered scalar field file for pressure and thermal_stress
}

type FixedDofParameters struct {
	Region string  `json:"Region"`
	Var    int     `json:"Var"`
	Value  float64 `json:"Value"`
}

type TimeParameters struct {
	Start float64 `json:"Start"`
	Final float64 `json:"Final"`
	Step  float64 `json:"Step"`
}

type SolverParameters struct {
	Tol     float64 `json:"Tol"`
	MaxIter int     `json:"MaxIter"`
}

const (
	Static  = "static"
	Dynamic = "dynamic"
	Modal   = "modal"
)

func (cp *CaseParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, cp); err != nil {
		return err
	}
	cp.Analysis = strings.ToLower(cp.Analysis)
	if cp.Analysis == "" {
		cp.Analysis = Static
	}
	if cp.Procs == 0 {
		cp.Procs = 1
	}
	if cp.Field.NumVars == 0 {
		cp.Field.NumVars = 1
	}
	if cp.Solver.Tol == 0 {
		cp.Solver.Tol = 1.e-10
	}
	if cp.Solver.MaxIter == 0 {
		cp.Solver.MaxIter = 10000
	}
	return cp.Validate()
}

func (cp *CaseParameters) Validate() error {
	switch {
	case cp.Mesh == "":
		return fmt.Errorf("no Mesh directory given")
	case cp.Procs < 1:
		return fmt.Errorf("Procs must be positive, got %d", cp.Procs)
	case cp.Field.Name == "":
		return fmt.Errorf("Field needs a Name")
	case cp.Field.NumVars < 1:
		return fmt.Errorf("Field %s: NumVars must be positive, got %d", cp.Field.Name, cp.Field.NumVars)
	case len(cp.Kernels) == 0:
		return fmt.Errorf("no Kernels given")
	case len(cp.InitialValues) != 0 && len(cp.InitialValues) != cp.Field.NumVars:
		return fmt.Errorf("%d InitialValues for %d variables", len(cp.InitialValues), cp.Field.NumVars)
	}
	for i, k := range cp.Kernels {
		if k.Region == "" || k.Type == "" {
			return fmt.Errorf("kernel %d needs a Region and a Type", i)
		}
	}
	for _, fd := range cp.FixedDof {
		if fd.Var < 0 || fd.Var >= cp.Field.NumVars {
			return fmt.Errorf("FixedDof on region %s: Var %d out of range [0,%d)", fd.Region, fd.Var, cp.Field.NumVars)
		}
	}
	switch cp.Analysis {
	case Static:
	case Dynamic:
		if cp.Time.Step <= 0 || cp.Time.Final < cp.Time.Start {
			return fmt.Errorf("invalid Time: [%g, %g] with step %g", cp.Time.Start, cp.Time.Final, cp.Time.Step)
		}
	case Modal:
		if cp.NumModes < 1 {
			return fmt.Errorf("modal analysis needs NumModes, got %d", cp.NumModes)
		}
	default:
		return fmt.Errorf("unknown Analysis %q", cp.Analysis)
	}
	return nil
}

func (cp *CaseParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("[%s]\t\t= Mesh\n", cp.Mesh)
	fmt.Printf("[%d]\t\t\t\t= Procs\n", cp.Procs)
	fmt.Printf("[%s]\t\t\t= Analysis\n", cp.Analysis)
	fmt.Printf("[%s, %d vars]\t\t= Field\n", cp.Field.Name, cp.Field.NumVars)
	switch cp.Analysis {
	case Dynamic:
		fmt.Printf("[%g, %g] dt = %g\t= Time\n", cp.Time.Start, cp.Time.Final, cp.Time.Step)
	case Modal:
		fmt.Printf("[%d]\t\t\t\t= NumModes\n", cp.NumModes)
	}
	fmt.Printf("%8.2e, %d\t\t= Solver Tol, MaxIter\n", cp.Solver.Tol, cp.Solver.MaxIter)
	for _, k := range cp.Kernels {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		params := make([]string, len(keys))
		for i, key := range keys {
			params[i] = fmt.Sprintf("%s=%g", key, k.Params[key])
		}
		if k.Field != "" {
			params = append(params, "field="+k.Field)
		}
		fmt.Printf("Kernels[%s] = %s %s [%s]\n", k.Region, k.Type, k.Analysis, strings.Join(params, " "))
	}
	for _, fd := range cp.FixedDof {
		fmt.Printf("FixedDof[%s] = var %d value %g\n", fd.Region, fd.Var, fd.Value)
	}
}
