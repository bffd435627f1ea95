// Package predict holds the inference boundary used by vehicle sessions.
//
// A Predictor maps one positional feature vector to a class label. The hub
// runs two of them per record: one for the maintenance failure type and one
// for the engine condition.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Model names used in errors, logs and remote routes.
const (
	ModelMaintenance = "maintenance"
	ModelEngine      = "engine"
)

// ErrInference is the class every InferenceError matches with errors.Is.
var ErrInference = errors.New("INFERENCE_FAILED")

// Predictor turns a feature vector into a label.
type Predictor interface {
	Predict(ctx context.Context, vector []float64) (string, error)
}

// InferenceError reports a model that could not produce a label.
type InferenceError struct {
	Model  string
	Reason string
	Err    error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s model: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s model: %s", e.Model, e.Reason)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInference) match any InferenceError.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

// Pair runs the maintenance and engine predictors for one record.
type Pair struct {
	Maintenance Predictor
	Engine      Predictor
}

// NewRulesPair returns the built-in rule based predictors.
func NewRulesPair() Pair {
	return Pair{
		Maintenance: MaintenanceRules{},
		Engine:      EngineRules{},
	}
}

// Predict labels both vectors of rec. The first failure wins.
func (p Pair) Predict(ctx context.Context, rec telemetry.Record) (telemetry.Prediction, error) {
	failure, err := p.Maintenance.Predict(ctx, rec.Maintenance[:])
	if err != nil {
		return telemetry.Prediction{}, err
	}

	condition, err := p.Engine.Predict(ctx, rec.Engine[:])
	if err != nil {
		return telemetry.Prediction{}, err
	}

	return telemetry.Prediction{FailureType: failure, EngineCondition: condition}, nil
}

func checkVector(model string, vector []float64, want int) error {
	if len(vector) != want {
		return &InferenceError{
			Model:  model,
			Reason: fmt.Sprintf("expected %d features, got %d", want, len(vector)),
		}
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InferenceError{
				Model:  model,
				Reason: fmt.Sprintf("feature %d is not finite", i),
			}
		}
	}
	return nil
}
