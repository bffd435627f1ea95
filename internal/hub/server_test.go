package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/predict"
	"github.com/mukundvijay123/5thSemEL/internal/state"
	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

var testSessionOpts = SessionOptions{
	ProbeInterval:   time.Second,
	ProbeTimeout:    5 * time.Second,
	WriteWait:       time.Second,
	PredictTimeout:  time.Second,
	MaxMessageBytes: 64 << 10,
}

func startServer(t *testing.T, p Predictor, opts SessionOptions) (*Server, *httptest.Server) {
	t.Helper()

	s := NewServer(state.NewStore(), p, Options{QueueSize: 64, SendTimeout: time.Second}, opts,
		Deps{Log: zerolog.Nop(), Metrics: metrics.New(nil)})

	mux := http.NewServeMux()
	mux.HandleFunc("/vehicle", s.HandleVehicle)
	mux.HandleFunc("/monitor", s.HandleMonitor)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
		srv.Close()
	})
	return s, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func frame(id string) map[string]any {
	m := map[string]any{
		"predictive_model_input": []float64{298, 309, 1500, 40, 10, 11, 60000},
		"engine_condition_input": []float64{700, 3.5, 12, 3, 80, 78},
	}
	if id != "" {
		m["vehicle_id"] = id
	}
	return m
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestVehicleRoundTrip(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)
	vehicle := dial(t, srv, "/vehicle")

	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	reply := readReply(t, vehicle)

	assert.Equal(t, "truck-1", reply["vehicle_id"])
	assert.Equal(t, predict.NoFailure, reply["Predicted Failure Type"])
	assert.Equal(t, predict.EngineNormal, reply["Predicted Engine Condition"])

	st, ok := s.Store().Get("truck-1")
	require.True(t, ok)
	assert.Equal(t, 1500.0, st.Telemetry.Maintenance[2])
}

func TestVehicleFallbackIdentity(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)
	vehicle := dial(t, srv, "/vehicle")

	require.NoError(t, vehicle.WriteJSON(frame("")))
	reply := readReply(t, vehicle)

	want := vehicle.LocalAddr().String()
	assert.Equal(t, want, reply["vehicle_id"])
	_, ok := s.Store().Get(want)
	assert.True(t, ok)
}

func TestVehicleInvalidMessageKeepsConnection(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)
	vehicle := dial(t, srv, "/vehicle")

	bad := frame("truck-1")
	bad["predictive_model_input"] = []float64{1, 2, 3, 4, 5, 6}
	require.NoError(t, vehicle.WriteJSON(bad))

	reply := readReply(t, vehicle)
	require.Contains(t, reply, "error")
	assert.Contains(t, reply["error"], "predictive_model_input")
	assert.Equal(t, 0, s.Store().Len())

	require.NoError(t, vehicle.WriteMessage(websocket.TextMessage, []byte("{not json")))
	reply = readReply(t, vehicle)
	assert.Contains(t, reply, "error")

	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	reply = readReply(t, vehicle)
	assert.Equal(t, "truck-1", reply["vehicle_id"])
	assert.Equal(t, 1, s.Store().Len())
}

type brokenPredictor struct{}

func (brokenPredictor) Predict(context.Context, telemetry.Record) (telemetry.Prediction, error) {
	return telemetry.Prediction{}, &predict.InferenceError{Model: predict.ModelEngine, Reason: "model unavailable"}
}

func TestVehiclePredictorFailure(t *testing.T) {
	s, srv := startServer(t, brokenPredictor{}, testSessionOpts)
	monitor := dial(t, srv, "/monitor")
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	vehicle := dial(t, srv, "/vehicle")
	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))

	reply := readReply(t, vehicle)
	assert.Contains(t, reply["error"], "model unavailable")
	assert.Equal(t, 0, s.Store().Len())

	// Nothing reaches monitors for a failed prediction.
	require.NoError(t, monitor.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := monitor.ReadMessage()
	assert.Error(t, err)
}

func TestMonitorSnapshotThenLive(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)
	s.Store().Put("b", telemetry.Record{}, telemetry.Prediction{FailureType: predict.PowerFailure, EngineCondition: "0"})
	s.Store().Put("a", telemetry.Record{}, telemetry.Prediction{FailureType: predict.NoFailure, EngineCondition: "1"})

	monitor := dial(t, srv, "/monitor")

	first := readReply(t, monitor)
	second := readReply(t, monitor)
	assert.Equal(t, "a", first["vehicle_id"])
	assert.Equal(t, "b", second["vehicle_id"])
	assert.Equal(t, predict.PowerFailure, second["Predicted Failure Type"])

	vehicle := dial(t, srv, "/vehicle")
	require.NoError(t, vehicle.WriteJSON(frame("c")))
	readReply(t, vehicle)

	live := readReply(t, monitor)
	assert.Equal(t, "c", live["vehicle_id"])
}

func TestMonitorReceivesUpdatesInOrder(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)

	monitors := []*websocket.Conn{dial(t, srv, "/monitor"), dial(t, srv, "/monitor")}
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	vehicle := dial(t, srv, "/vehicle")
	var want []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("v-%02d", i)
		want = append(want, id)
		require.NoError(t, vehicle.WriteJSON(frame(id)))
		readReply(t, vehicle)
	}

	for _, m := range monitors {
		var got []string
		for range want {
			got = append(got, readReply(t, m)["vehicle_id"].(string))
		}
		assert.Equal(t, want, got)
	}
}

func TestBrokenMonitorDoesNotAffectOthers(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)

	healthy := dial(t, srv, "/monitor")
	broken := dial(t, srv, "/monitor")
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	// Drop the TCP connection without a close handshake.
	require.NoError(t, broken.UnderlyingConn().Close())

	vehicle := dial(t, srv, "/vehicle")
	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	assert.Equal(t, "truck-1", readReply(t, vehicle)["vehicle_id"])
	assert.Equal(t, "truck-1", readReply(t, healthy)["vehicle_id"])

	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestVehicleResendIsIdempotent(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)
	vehicle := dial(t, srv, "/vehicle")

	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	first := readReply(t, vehicle)
	before, ok := s.Store().Get("truck-1")
	require.True(t, ok)

	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	second := readReply(t, vehicle)
	after, ok := s.Store().Get("truck-1")
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Store().Len())
	assert.Equal(t, before.Telemetry, after.Telemetry)
	assert.Equal(t, before.Prediction, after.Prediction)
}

func TestMonitorDisconnectDeregisters(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)

	monitor := dial(t, srv, "/monitor")
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, monitor.Close())
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Publishing afterwards only reaches live monitors.
	vehicle := dial(t, srv, "/vehicle")
	require.NoError(t, vehicle.WriteJSON(frame("truck-1")))
	assert.Equal(t, "truck-1", readReply(t, vehicle)["vehicle_id"])
}

func TestMonitorKeepaliveExpiry(t *testing.T) {
	opts := testSessionOpts
	opts.ProbeInterval = 20 * time.Millisecond
	opts.ProbeTimeout = 100 * time.Millisecond

	s, srv := startServer(t, predict.NewRulesPair(), opts)

	// A client that never reads never answers pings.
	_ = dial(t, srv, "/monitor")
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestVehicleKeepaliveExpiry(t *testing.T) {
	opts := testSessionOpts
	opts.ProbeInterval = 20 * time.Millisecond
	opts.ProbeTimeout = 100 * time.Millisecond

	s, srv := startServer(t, predict.NewRulesPair(), opts)

	// A vehicle that never reads never answers pings.
	_ = dial(t, srv, "/vehicle")
	require.Eventually(t, func() bool { return s.Vehicles() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Vehicles() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerCloseEndsSessions(t *testing.T) {
	s, srv := startServer(t, predict.NewRulesPair(), testSessionOpts)

	vehicle := dial(t, srv, "/vehicle")
	monitor := dial(t, srv, "/monitor")
	require.Eventually(t, func() bool {
		return s.Vehicles() == 1 && s.Hub().Subscribers() == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	for _, c := range []*websocket.Conn{vehicle, monitor} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := c.ReadMessage()
		assert.Error(t, err)
	}
	assert.Equal(t, 0, s.Vehicles())
}

func TestSessionStateStrings(t *testing.T) {
	assert.Equal(t, "awaiting_message", VehicleAwaitingMessage.String())
	assert.Equal(t, "publishing", VehiclePublishing.String())
	assert.Equal(t, "streaming", MonitorStreaming.String())
	assert.Equal(t, "closed", MonitorClosed.String())
}
