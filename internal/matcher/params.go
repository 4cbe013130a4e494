package matcher

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"booksync/internal/services"
)

// Default values for the positional parameter vector.
const (
	DefaultMinScore          = 0.6
	DefaultMinMatchingWords  = 3
	DefaultRelativeWindow    = -1
	DefaultMinAnchorScore    = 0.8
	DefaultMaxQuoteMerges    = 4
	DefaultMaxSubtitleMerges = 4
)

// Params are the decoded matcher parameters. The vector form is
// [minScore, minMatchingWords, relativeSearchWindow, minAnchorScore, aux...]
// where aux[0] caps quote merges and aux[1] caps subtitle merges.
type Params struct {
	MinScore          float64 `param:"min_score" validate:"gte=0,lte=1"`
	MinMatchingWords  int     `param:"min_matching_words" validate:"gte=1"`
	RelativeWindow    float64 `param:"relative_search_window" validate:"lte=1"`
	MinAnchorScore    float64 `param:"min_anchor_score" validate:"gte=0,lte=1"`
	MaxQuoteMerges    int     `param:"max_quote_merges" validate:"gte=0,lte=32"`
	MaxSubtitleMerges int     `param:"max_subtitle_merges" validate:"gte=0,lte=32"`
	// Extra holds trailing values beyond the known positions. They are kept
	// for external analyzers, which receive the full vector.
	Extra []float64 `param:"-"`
}

// DefaultParams returns the parameter defaults.
func DefaultParams() Params {
	return Params{
		MinScore:          DefaultMinScore,
		MinMatchingWords:  DefaultMinMatchingWords,
		RelativeWindow:    DefaultRelativeWindow,
		MinAnchorScore:    DefaultMinAnchorScore,
		MaxQuoteMerges:    DefaultMaxQuoteMerges,
		MaxSubtitleMerges: DefaultMaxSubtitleMerges,
	}
}

// WindowEnabled reports whether the short-quote search window is active.
func (p Params) WindowEnabled() bool {
	return p.RelativeWindow >= 0
}

// Vector encodes the parameters back into positional form.
func (p Params) Vector() []float64 {
	out := []float64{
		p.MinScore,
		float64(p.MinMatchingWords),
		p.RelativeWindow,
		p.MinAnchorScore,
		float64(p.MaxQuoteMerges),
		float64(p.MaxSubtitleMerges),
	}
	return append(out, p.Extra...)
}

// ParamsFromVector decodes a positional vector. Missing positions take their
// defaults; integer positions must hold whole numbers.
func ParamsFromVector(vec []float64) (Params, error) {
	p := DefaultParams()
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, services.Wrap(services.ErrValidation, "matcher", "decode params", fmt.Sprintf("position %d is not finite", i), nil)
		}
	}
	floatAt := func(i int, dst *float64) {
		if i < len(vec) {
			*dst = vec[i]
		}
	}
	intAt := func(i int, dst *int) error {
		if i >= len(vec) {
			return nil
		}
		if vec[i] != math.Trunc(vec[i]) {
			return services.Wrap(services.ErrValidation, "matcher", "decode params", fmt.Sprintf("position %d must be a whole number, got %v", i, vec[i]), nil)
		}
		*dst = int(vec[i])
		return nil
	}

	floatAt(0, &p.MinScore)
	if err := intAt(1, &p.MinMatchingWords); err != nil {
		return Params{}, err
	}
	floatAt(2, &p.RelativeWindow)
	floatAt(3, &p.MinAnchorScore)
	if err := intAt(4, &p.MaxQuoteMerges); err != nil {
		return Params{}, err
	}
	if err := intAt(5, &p.MaxSubtitleMerges); err != nil {
		return Params{}, err
	}
	if len(vec) > 6 {
		p.Extra = append([]float64(nil), vec[6:]...)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

var paramValidator = newParamValidator()

func newParamValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("param")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	err := paramValidator.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return services.Wrap(services.ErrValidation, "matcher", "validate params", "", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fe.Field()+" "+friendlyMessage(fe))
	}
	return services.Wrap(services.ErrValidation, "matcher", "validate params", strings.Join(problems, "; "), nil)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must not exceed " + e.Param()
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}
