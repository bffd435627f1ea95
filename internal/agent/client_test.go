package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukundvijay123/5thSemEL/internal/hub"
	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
	"github.com/mukundvijay123/5thSemEL/internal/predict"
	"github.com/mukundvijay123/5thSemEL/internal/state"
	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

func testOptions(url string) Options {
	return Options{
		URL:           url,
		VehicleID:     "truck-7",
		SendInterval:  20 * time.Millisecond,
		BackoffBase:   5 * time.Second,
		BackoffMax:    30 * time.Second,
		ProbeInterval: time.Second,
		ProbeTimeout:  5 * time.Second,
		WriteWait:     time.Second,
	}
}

// recordingSleeper captures backoff delays and cancels the run after limit.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	if len(r.delays) >= r.limit {
		r.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// scriptedDialer fails or dials for real according to script; calls past
// the end of the script fail.
type scriptedDialer struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func (d *scriptedDialer) DialContext(ctx context.Context, url string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.mu.Lock()
	i := d.calls
	d.calls++
	d.mu.Unlock()

	if i < len(d.script) && d.script[i] {
		return websocket.DefaultDialer.DialContext(ctx, url, h)
	}
	return nil, nil, errors.New("connection refused")
}

type countingSource struct {
	calls atomic.Int64
}

func (s *countingSource) Next() telemetry.Record {
	s.calls.Add(1)
	return telemetry.Record{}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestBackoffSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &countingSource{}
	c := New(testOptions("ws://127.0.0.1:1/vehicle"), src, zerolog.Nop(), nil)
	c.dialer = &scriptedDialer{}
	sleeper := &recordingSleeper{limit: 5, cancel: cancel}
	c.sleep = sleeper.sleep

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, sleeper.recorded())
	assert.Equal(t, int64(0), src.calls.Load(), "nothing is produced while disconnected")
	assert.Equal(t, Disconnected, c.State())
}

func TestBackoffResetsAfterConnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(testOptions(wsURL(srv, "/vehicle")), NewSyntheticSource(1), zerolog.Nop(), nil)
	c.dialer = &scriptedDialer{script: []bool{false, false, true, false}}
	sleeper := &recordingSleeper{limit: 4, cancel: cancel}
	c.sleep = sleeper.sleep

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.Equal(t, []time.Duration{
		5 * time.Second,
		10 * time.Second,
		5 * time.Second,
		10 * time.Second,
	}, sleeper.recorded())
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestKeepaliveExpiryBacksOff(t *testing.T) {
	// The hub end upgrades and then never reads, so pings go unanswered.
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-release
		_ = conn.Close()
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := testOptions(wsURL(srv, "/vehicle"))
	opts.ProbeInterval = 20 * time.Millisecond
	opts.ProbeTimeout = 100 * time.Millisecond

	logs := &lockedBuffer{}
	c := New(opts, NewSyntheticSource(3), zerolog.New(logs), nil)
	sleeper := &recordingSleeper{limit: 1, cancel: cancel}
	c.sleep = sleeper.sleep

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.recorded())
	assert.GreaterOrEqual(t, time.Since(start), opts.ProbeTimeout)
	assert.Greater(t, c.Sent(), int64(0))
	assert.Contains(t, logs.String(), keepalive.ErrTimeout.Error())
}

func TestStreamsToHub(t *testing.T) {
	store := state.NewStore()
	server := hub.NewServer(store, predict.NewRulesPair(),
		hub.Options{QueueSize: 16, SendTimeout: time.Second},
		hub.SessionOptions{
			ProbeInterval:   time.Second,
			ProbeTimeout:    5 * time.Second,
			WriteWait:       time.Second,
			PredictTimeout:  time.Second,
			MaxMessageBytes: 64 << 10,
		},
		hub.Deps{Log: zerolog.Nop()})

	mux := http.NewServeMux()
	mux.HandleFunc("/vehicle", server.HandleVehicle)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Close(ctx)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(testOptions(wsURL(srv, "/vehicle")), NewSyntheticSource(7), zerolog.Nop(), nil)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return c.Replies() >= 3
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, Connected, c.State())

	st, ok := store.Get("truck-7")
	require.True(t, ok)
	assert.NotEmpty(t, st.Prediction.FailureType)
	assert.GreaterOrEqual(t, c.Sent(), c.Replies())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, Disconnected, c.State())
}

func TestHandleReplyCountsErrors(t *testing.T) {
	c := New(testOptions("ws://unused"), NewSyntheticSource(1), zerolog.Nop(), nil)

	c.handleReply([]byte(`{"error":"invalid telemetry"}`))
	c.handleReply([]byte(`{"vehicle_id":"a","Predicted Failure Type":"No Failure","Predicted Engine Condition":"1"}`))
	c.handleReply([]byte(`not json`))

	assert.Equal(t, int64(3), c.Replies())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{BackingOff, "backing_off"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}
