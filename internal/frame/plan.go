package frame

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

var validate = validator.New()

// Plan describes one run of the frame: the data and the fits to try on it.
type Plan struct {
	Name    string               `yaml:"name" json:"name"`
	Index   []float64            `yaml:"index" json:"index" validate:"required,min=1"`
	Columns map[string][]float64 `yaml:"columns" json:"columns" validate:"required,min=1,dive,min=1"`
	Options PlanOptions          `yaml:"options" json:"options"`
	Fits    []FitSpec            `yaml:"fits" json:"fits" validate:"required,min=1,dive"`

	// Limit caps the summary rows per column; zero keeps all of them.
	Limit int `yaml:"limit" json:"limit" validate:"gte=0"`
}

// PlanOptions override the frame defaults. Unset fields keep them.
type PlanOptions struct {
	Methods       []string `yaml:"methods" json:"methods,omitempty" validate:"omitempty,dive,oneof=lm bfgs nelder-mead"`
	Fraction      *float64 `yaml:"fraction" json:"fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
	Overfit       *float64 `yaml:"overfit" json:"overfit,omitempty"`
	Sigma         *float64 `yaml:"sigma" json:"sigma,omitempty" validate:"omitempty,gt=0"`
	ErrorTo       *int     `yaml:"error_to" json:"error_to,omitempty" validate:"omitempty,gte=1"`
	MaxIterations *int     `yaml:"max_iterations" json:"max_iterations,omitempty" validate:"omitempty,gte=0"`
	Seed          *int64   `yaml:"seed" json:"seed,omitempty"`
}

// FitSpec is one family to try. Initial vectors come from Inits and from
// Degree for every entry of Degrees. A non-empty Breakpoints runs a
// piecewise fit per breakpoint set.
type FitSpec struct {
	Family      string      `yaml:"family" json:"family" validate:"required,oneof=polynomial inverse-x log xlog power-law"`
	Columns     []string    `yaml:"columns" json:"columns,omitempty"`
	Degrees     []int       `yaml:"degrees" json:"degrees,omitempty" validate:"required_without=Inits,dive,gte=0"`
	Inits       [][]float64 `yaml:"inits" json:"inits,omitempty" validate:"required_without=Degrees,dive,min=1"`
	Breakpoints [][]float64 `yaml:"breakpoints" json:"breakpoints,omitempty" validate:"omitempty,dive,min=1"`
}

// InitialParams lists the initial parameter vectors of the fit: Inits first, then one per degree.
func (s FitSpec) InitialParams() [][]float64 {
	out := make([][]float64, 0, len(s.Inits)+len(s.Degrees))
	for _, init := range s.Inits {
		out = append(out, append([]float64(nil), init...))
	}
	for _, d := range s.Degrees {
		out = append(out, fit.Degree(d))
	}
	return out
}

// LoadPlan reads and validates a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks struct constraints and that every column lines up with
// the index.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	for name, col := range p.Columns {
		if len(col) != len(p.Index) {
			return fmt.Errorf("%w: column %q has %d values for %d index entries",
				ErrInvalidPlan, name, len(col), len(p.Index))
		}
	}
	for i, fs := range p.Fits {
		for _, name := range fs.Columns {
			if _, ok := p.Columns[name]; !ok {
				return fmt.Errorf("%w: fits[%d] names unknown column %q", ErrInvalidPlan, i, name)
			}
		}
	}
	return nil
}

// Apply returns opts with the plan's overrides.
func (p *Plan) Apply(opts Options) (Options, error) {
	o := p.Options
	if len(o.Methods) > 0 {
		methods, err := optimization.ParseMethods(o.Methods)
		if err != nil {
			return opts, err
		}
		opts.Methods = methods
	}
	if o.Fraction != nil {
		opts.Fit.Fraction = *o.Fraction
	}
	if o.Overfit != nil {
		opts.Fit.Overfit = *o.Overfit
	}
	if o.Sigma != nil {
		opts.Fit.Sigma = *o.Sigma
	}
	if o.ErrorTo != nil {
		opts.Fit.ErrorTo = *o.ErrorTo
	}
	if o.MaxIterations != nil {
		opts.Fit.MaxIterations = *o.MaxIterations
	}
	if o.Seed != nil {
		opts.Fit.Seed = *o.Seed
	}
	return opts, nil
}
