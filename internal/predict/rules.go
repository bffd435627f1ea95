//
//
package predict

import (
	"context"
	"math"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Maintenance failure labels.
const (
	NoFailure              = "No Failure"
	HeatDissipationFailure = "Heat Dissipation Failure"
	PowerFailure           = "Power Failure"
	OverstrainFailure      = "Overstrain Failure"
	ToolWearFailure        = "Tool Wear Failure"
)

// Engine condition labels.
const (
	EngineNormal    = "1"
	EngineAttention = "0"
)

// Maintenance vector positions.
const (
	idxAirTemp = iota
	idxProcessTemp
	idxRotationalSpeed
	idxTorque
	idxToolWear
	idxTempDifference
	idxEnergy
)

// Engine vector positions.
const (
	idxEngineRPM = iota
	idxLubOilPressure
	idxFuelPressure
	idxCoolantPressure
	idxLubOilTemp
	idxCoolantTemp
)

// Failure mode thresholds from the AI4I 2020 failure definitions.
const (
	heatMaxTempDifference = 8.6
	heatMaxSpeed          = 1380.0
	powerMinWatts         = 3500.0
	powerMaxWatts         = 9000.0
	overstrainLimit       = 11000.0
	toolWearMin           = 200.0
	toolWearMax           = 240.0
)

// MaintenanceRules classifies the maintenance vector by failure mode.
// Checks run in a fixed order and the first match is returned.
type MaintenanceRules struct{}

func (MaintenanceRules) Predict(ctx context.Context, vector []float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &InferenceError{Model: ModelMaintenance, Reason: "cancelled", Err: err}
	}
	if err := checkVector(ModelMaintenance, vector, telemetry.MaintenanceFeatures); err != nil {
		return "", err
	}

	speed := vector[idxRotationalSpeed]
	torque := vector[idxTorque]
	wear := vector[idxToolWear]

	if vector[idxTempDifference] < heatMaxTempDifference && speed < heatMaxSpeed {
		return HeatDissipationFailure, nil
	}

	watts := torque * speed * 2 * math.Pi / 60
	if watts < powerMinWatts || watts > powerMaxWatts {
		return PowerFailure, nil
	}

	if wear*torque > overstrainLimit {
		return OverstrainFailure, nil
	}

	if wear >= toolWearMin && wear <= toolWearMax {
		return ToolWearFailure, nil
	}

	return NoFailure, nil
}

// ExpandEngineFeatures appends the eight pairwise interaction terms to a
// 6-value engine vector. The result has 14 values.
func ExpandEngineFeatures(v []float64) []float64 {
	out := make([]float64, 0, telemetry.EngineFeatures+8)
	out = append(out, v...)
	return append(out,
		v[idxLubOilPressure]*v[idxLubOilTemp],
		v[idxCoolantPressure]*v[idxCoolantTemp],
		v[idxLubOilTemp]*v[idxCoolantTemp],
		v[idxLubOilPressure]*v[idxCoolantPressure],
		v[idxEngineRPM]*v[idxLubOilTemp],
		v[idxEngineRPM]*v[idxCoolantTemp],
		v[idxEngineRPM]*v[idxLubOilPressure],
		v[idxEngineRPM]*v[idxCoolantPressure],
	)
}

// Positions in the expanded engine vector.
const (
	idxLubOilPressureTemp = telemetry.EngineFeatures + iota
	idxCoolantPressureTemp
	idxLubOilCoolantTemp
	idxLubOilCoolantPressure
	idxRPMLubOilTemp
	idxRPMCoolantTemp
	idxRPMLubOilPressure
	idxRPMCoolantPressure
)

type engineCheck struct {
	name  string
	index int
	below float64 // flag when value < below (0 disables)
	above float64 // flag when value > above (0 disables)
}

var engineChecks = []engineCheck{
	{name: "engine_rpm", index: idxEngineRPM, below: 450, above: 2000},
	{name: "lub_oil_pressure", index: idxLubOilPressure, below: 2.5, above: 6.5},
	{name: "fuel_pressure", index: idxFuelPressure, below: 4, above: 21},
	{name: "coolant_pressure", index: idxCoolantPressure, below: 1.2, above: 4.8},
	{name: "lub_oil_temp", index: idxLubOilTemp, above: 88},
	{name: "coolant_temp", index: idxCoolantTemp, above: 88},
	{name: "oil_film", index: idxLubOilPressureTemp, below: 190},
	{name: "cooling_load", index: idxCoolantPressureTemp, above: 420},
	{name: "thermal_load", index: idxLubOilCoolantTemp, above: 7600},
	{name: "rpm_oil_pressure", index: idxRPMLubOilPressure, below: 1100},
}

// engineAttentionScore is the number of flagged checks that marks an engine
// for attention.
const engineAttentionScore = 2

// EngineRules scores the expanded engine vector against operating bounds.
type EngineRules struct{}

func (EngineRules) Predict(ctx context.Context, vector []float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &InferenceError{Model: ModelEngine, Reason: "cancelled", Err: err}
	}
	if err := checkVector(ModelEngine, vector, telemetry.EngineFeatures); err != nil {
		return "", err
	}

	if len(EngineFlags(vector)) >= engineAttentionScore {
		return EngineAttention, nil
	}
	return EngineNormal, nil
}

// EngineFlags returns the names of the checks a 6-value engine vector trips.
func EngineFlags(vector []float64) []string {
	features := ExpandEngineFeatures(vector)

	var flags []string
	for _, c := range engineChecks {
		v := features[c.index]
		if (c.below != 0 && v < c.below) || (c.above != 0 && v > c.above) {
			flags = append(flags, c.name)
		}
	}
	return flags
}
