package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/audit"
	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/state"
	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Predictor labels one telemetry record. predict.Pair satisfies it.
type Predictor interface {
	Predict(ctx context.Context, rec telemetry.Record) (telemetry.Prediction, error)
}

// VehicleSessionState is the lifecycle state of a producer session.
type VehicleSessionState int32

const (
	VehicleConnected VehicleSessionState = iota
	VehicleAwaitingMessage
	VehicleValidating
	VehiclePredicting
	VehiclePublishing
	VehicleClosed
)

func (s VehicleSessionState) String() string {
	switch s {
	case VehicleConnected:
		return "connected"
	case VehicleAwaitingMessage:
		return "awaiting_message"
	case VehicleValidating:
		return "validating"
	case VehiclePredicting:
		return "predicting"
	case VehiclePublishing:
		return "publishing"
	case VehicleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// VehicleSession serves one telemetry producer. Each message is validated,
// predicted, stored and broadcast, then answered; a bad message gets an
// error reply and the connection stays open.
type VehicleSession struct {
	ID     string
	Remote string

	conn      *websocket.Conn
	store     *state.Store
	hub       *Hub
	predictor Predictor
	opts      SessionOptions

	log     zerolog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger

	state     atomic.Int32
	mu        sync.Mutex
	vehicleID string
	closeOnce sync.Once
}

// State returns the current session state.
func (v *VehicleSession) State() VehicleSessionState {
	return VehicleSessionState(v.state.Load())
}

func (v *VehicleSession) setState(s VehicleSessionState) {
	v.state.Store(int32(s))
}

// VehicleID returns the last vehicle id this session reported for.
func (v *VehicleSession) VehicleID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vehicleID
}

// Close closes the underlying connection; Serve then returns.
func (v *VehicleSession) Close() {
	v.closeOnce.Do(func() { _ = v.conn.Close() })
}

// Serve reads messages until the connection closes or keepalive expires.
func (v *VehicleSession) Serve(ctx context.Context) error {
	defer v.setState(VehicleClosed)
	defer v.Close()

	dead := make(chan error, 1)
	ka := keepalive.Watch(v.conn, keepalive.Config{
		Interval: v.opts.ProbeInterval,
		Timeout:  v.opts.ProbeTimeout,
	}, v.opts.WriteWait, func(reason error) {
		dead <- reason
		v.Close()
	})
	go func() { _ = ka.Run(ctx) }()
	defer ka.Stop()

	stop := context.AfterFunc(ctx, v.Close)
	defer stop()

	for {
		v.setState(VehicleAwaitingMessage)
		msgType, data, err := v.conn.ReadMessage()
		if err != nil {
			select {
			case reason := <-dead:
				return reason
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		ka.Ack()

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := v.handle(ctx, data); err != nil {
			return err
		}
	}
}

// handle processes one producer frame. Only a failed reply ends the session.
func (v *VehicleSession) handle(ctx context.Context, data []byte) error {
	v.setState(VehicleValidating)
	id, rec, err := telemetry.Decode(data, v.Remote)
	if err != nil {
		v.metrics.Message(metrics.ResultInvalid)
		return v.reject(id, err)
	}

	v.mu.Lock()
	v.vehicleID = id
	v.mu.Unlock()

	v.setState(VehiclePredicting)
	pctx := ctx
	if v.opts.PredictTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, v.opts.PredictTimeout)
		defer cancel()
	}
	start := time.Now()
	prediction, err := v.predictor.Predict(pctx, rec)
	if err != nil {
		v.metrics.ObservePredict(metrics.ResultInference, time.Since(start))
		v.metrics.Message(metrics.ResultInference)
		return v.reject(id, err)
	}
	v.metrics.ObservePredict(metrics.ResultOK, time.Since(start))

	v.setState(VehiclePublishing)
	st := v.store.Put(id, rec, prediction)
	v.metrics.SetKnownVehicles(v.store.Len())
	delivered := v.hub.Publish(st)
	v.metrics.Message(metrics.ResultOK)

	v.log.Debug().
		Str("vehicle", id).
		Str("failure_type", prediction.FailureType).
		Str("engine_condition", prediction.EngineCondition).
		Int("monitors", delivered).
		Msg("telemetry processed")

	return v.reply(st.Reply())
}

func (v *VehicleSession) reject(vehicleID string, cause error) error {
	v.audit.LogRejection(v.ID, vehicleID, cause)

	var verr *telemetry.ValidationError
	if errors.As(cause, &verr) {
		v.log.Warn().Err(cause).Msg("rejected telemetry")
	} else {
		v.log.Error().Err(cause).Str("vehicle", vehicleID).Msg("prediction failed")
	}

	return v.reply(telemetry.ErrorReply{Error: cause.Error()})
}

func (v *VehicleSession) reply(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	if v.opts.WriteWait > 0 {
		_ = v.conn.SetWriteDeadline(time.Now().Add(v.opts.WriteWait))
	}
	if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}
