package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Vector lengths fixed by the producer protocol.
const (
	MaintenanceFeatures = 7
	EngineFeatures      = 6
)

// Record is one telemetry sample. Both vectors are positional.
//
// Maintenance: air temp [K], process temp [K], rotational speed [rpm],
// torque [Nm], tool wear [min], temp difference [K], energy.
// Engine: rpm, lub oil pressure, fuel pressure, coolant pressure,
// lub oil temp, coolant temp.
type Record struct {
	Maintenance [MaintenanceFeatures]float64 `json:"predictive_model_input"`
	Engine      [EngineFeatures]float64      `json:"engine_condition_input"`
}

// Prediction is the pair of labels derived from one Record.
type Prediction struct {
	FailureType     string `json:"failure_type"`
	EngineCondition string `json:"engine_condition"`
}

// Message is the producer → hub frame.
type Message struct {
	VehicleID   string    `json:"vehicle_id,omitempty"`
	Maintenance []float64 `json:"predictive_model_input"`
	Engine      []float64 `json:"engine_condition_input"`
}

// Reply is the hub → producer success frame. Monitors receive the same shape.
type Reply struct {
	VehicleID       string `json:"vehicle_id"`
	FailureType     string `json:"Predicted Failure Type"`
	EngineCondition string `json:"Predicted Engine Condition"`
}

// ErrorReply is the hub → producer rejection frame.
type ErrorReply struct {
	Error string `json:"error"`
}

// NewMessage builds the wire frame for a record.
func NewMessage(vehicleID string, rec Record) Message {
	return Message{
		VehicleID:   vehicleID,
		Maintenance: rec.Maintenance[:],
		Engine:      rec.Engine[:],
	}
}

// NewReply builds the reply frame for a prediction.
func NewReply(vehicleID string, p Prediction) Reply {
	return Reply{
		VehicleID:       vehicleID,
		FailureType:     p.FailureType,
		EngineCondition: p.EngineCondition,
	}
}

// Decode parses and validates a producer frame.
// fallbackID is used when the frame carries no vehicle_id.
func Decode(data []byte, fallbackID string) (string, Record, error) {
	var rec Record

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", rec, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if err := copyVector(rec.Maintenance[:], msg.Maintenance, "predictive_model_input"); err != nil {
		return "", rec, err
	}
	if err := copyVector(rec.Engine[:], msg.Engine, "engine_condition_input"); err != nil {
		return "", rec, err
	}

	id := strings.TrimSpace(msg.VehicleID)
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return "", rec, &ValidationError{Field: "vehicle_id", Reason: "missing and no connection identity available"}
	}

	return id, rec, nil
}

func copyVector(dst, src []float64, field string) error {
	if src == nil {
		return &ValidationError{Field: field, Reason: "missing"}
	}
	if len(src) != len(dst) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("expected %d values, got %d", len(dst), len(src))}
	}
	copy(dst, src)
	return nil
}
