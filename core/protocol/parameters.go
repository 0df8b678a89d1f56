package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-session/internal/utils"
)

const (
	ParamTemperature       = "temperature"
	ParamTopP              = "top_p"
	ParamMinP              = "min_p"
	ParamTopK              = "top_k"
	ParamFrequencyPenalty  = "frequency_penalty"
	ParamPresencePenalty   = "presence_penalty"
	ParamRepetitionPenalty = "repetition_penalty"
)

// ParameterNames lists the supported model parameters in wire order.
var ParameterNames = []string{
	ParamTemperature,
	ParamTopP,
	ParamMinP,
	ParamTopK,
	ParamFrequencyPenalty,
	ParamPresencePenalty,
	ParamRepetitionPenalty,
}

var ErrUnknownParameter = errors.New("unknown model parameter")

// ModelParameters are optional sampling knobs forwarded with a user
// message. A nil field is absent and leaves the backend default in place.
type ModelParameters struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	MinP              *float64 `json:"min_p,omitempty"`
	TopK              *float64 `json:"top_k,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
}

func (p *ModelParameters) field(name string) (**float64, bool) {
	switch name {
	case ParamTemperature:
		return &p.Temperature, true
	case ParamTopP:
		return &p.TopP, true
	case ParamMinP:
		return &p.MinP, true
	case ParamTopK:
		return &p.TopK, true
	case ParamFrequencyPenalty:
		return &p.FrequencyPenalty, true
	case ParamPresencePenalty:
		return &p.PresencePenalty, true
	case ParamRepetitionPenalty:
		return &p.RepetitionPenalty, true
	}
	return nil, false
}

// Set stores value under the wire name. Non-finite values clear the
// parameter instead.
func (p *ModelParameters) Set(name string, value float64) error {
	field, ok := p.field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	if !isFinite(value) {
		*field = nil
		return nil
	}
	*field = utils.Ptr(value)
	return nil
}

func (p *ModelParameters) Unset(name string) error {
	field, ok := p.field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	*field = nil
	return nil
}

// Get returns the value stored under the wire name and whether it is
// present and finite.
func (p ModelParameters) Get(name string) (float64, bool) {
	field, ok := p.field(name)
	if !ok || *field == nil || !isFinite(**field) {
		return 0, false
	}
	return **field, true
}

// Sanitized returns a copy that only holds finite values. The copy does not
// share pointers with p.
func (p ModelParameters) Sanitized() ModelParameters {
	var clean ModelParameters
	for _, name := range ParameterNames {
		if value, ok := p.Get(name); ok {
			_ = clean.Set(name, value)
		}
	}
	return clean
}

// Merge returns p with every present value of override applied on top.
func (p ModelParameters) Merge(override ModelParameters) ModelParameters {
	merged := p.Sanitized()
	for _, name := range ParameterNames {
		if value, ok := override.Get(name); ok {
			_ = merged.Set(name, value)
		}
	}
	return merged
}

// Values returns the present parameters keyed by wire name.
func (p ModelParameters) Values() map[string]float64 {
	values := map[string]float64{}
	for _, name := range ParameterNames {
		if value, ok := p.Get(name); ok {
			values[name] = value
		}
	}
	return values
}

func (p ModelParameters) IsZero() bool {
	return len(p.Values()) == 0
}

// ParseModelParameters builds parameters from settings form values keyed by
// wire name. Blank or non-numeric values are treated as absent; unknown
// names are reported but do not stop the remaining values from being parsed.
func ParseModelParameters(values map[string]string) (ModelParameters, error) {
	var (
		params ModelParameters
		errs   []error
	)
	for name, raw := range values {
		name = strings.TrimSpace(name)
		if _, ok := params.field(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, name))
			continue
		}

		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		_ = params.Set(name, value)
	}
	return params, errors.Join(errs...)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
