// Package telemetry defines the vehicle telemetry wire model.
//
// Producers send a Message with a 7-value maintenance vector and a 6-value
// engine vector. The hub answers with a Reply carrying both predicted labels,
// or an ErrorReply when the frame is rejected. Monitors receive Reply frames.
package telemetry
