package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestModelParametersSetAndGet(t *testing.T) {
	var params ModelParameters
	if err := params.Set(ParamTemperature, 0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value, ok := params.Get(ParamTemperature); !ok || value != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v (present=%t)", value, ok)
	}

	if err := params.Set(ParamTemperature, math.NaN()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := params.Get(ParamTemperature); ok {
		t.Fatalf("expected NaN to clear temperature")
	}

	if err := params.Set("creativity", 1); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestModelParametersMerge(t *testing.T) {
	var defaults ModelParameters
	_ = defaults.Set(ParamTemperature, 0.8)
	_ = defaults.Set(ParamTopP, 0.95)

	var override ModelParameters
	_ = override.Set(ParamTopP, 0.5)
	override.MinP = new(float64)
	*override.MinP = math.NaN()

	merged := defaults.Merge(override)
	expected := map[string]float64{ParamTemperature: 0.8, ParamTopP: 0.5}
	values := merged.Values()
	if len(values) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, values)
	}
	for name, value := range expected {
		if values[name] != value {
			t.Fatalf("expected %s=%v, got %v", name, value, values[name])
		}
	}

	*merged.TopP = 0.1
	if value, _ := override.Get(ParamTopP); value != 0.5 {
		t.Fatalf("expected merge result not to alias the override")
	}
}

func TestParseModelParameters(t *testing.T) {
	params, err := ParseModelParameters(map[string]string{
		ParamTemperature:       "0.7",
		ParamTopK:              " 40 ",
		ParamMinP:              "",
		ParamFrequencyPenalty:  "lots",
		ParamRepetitionPenalty: "NaN",
		"unknown":              "1",
	})
	if !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected unknown parameter to be reported, got %v", err)
	}

	values := params.Values()
	if len(values) != 2 || values[ParamTemperature] != 0.7 || values[ParamTopK] != 40 {
		t.Fatalf("expected temperature and top_k only, got %v", values)
	}
	if params.IsZero() {
		t.Fatalf("expected parsed parameters not to be zero")
	}
	if !(ModelParameters{}).IsZero() {
		t.Fatalf("expected empty parameters to be zero")
	}
}
