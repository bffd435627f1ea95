package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// maxRemoteResponse bounds the inference service reply body.
const maxRemoteResponse = 64 << 10

// RemoteRequest is the inference service request body.
type RemoteRequest struct {
	Features []float64 `json:"features"`
}

// RemoteResponse is the inference service reply body.
type RemoteResponse struct {
	Label string `json:"label"`
	Error string `json:"error,omitempty"`
}

// Remote calls an external inference service:
// POST {BaseURL}/predict/{Model} with {"features": [...]} and expects {"label": "..."}.
type Remote struct {
	BaseURL  string
	Model    string
	Features int
	Client   *http.Client
}

// NewRemote creates a client for one model of the inference service.
func NewRemote(baseURL, model string, features int, timeout time.Duration) *Remote {
	return &Remote{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Model:    model,
		Features: features,
		Client:   &http.Client{Timeout: timeout},
	}
}

// NewRemotePair returns remote predictors for both models.
func NewRemotePair(baseURL string, timeout time.Duration) Pair {
	return Pair{
		Maintenance: NewRemote(baseURL, ModelMaintenance, telemetry.MaintenanceFeatures, timeout),
		Engine:      NewRemote(baseURL, ModelEngine, telemetry.EngineFeatures, timeout),
	}
}

func (r *Remote) Predict(ctx context.Context, vector []float64) (string, error) {
	if err := checkVector(r.Model, vector, r.Features); err != nil {
		return "", err
	}

	body, err := json.Marshal(RemoteRequest{Features: vector})
	if err != nil {
		return "", &InferenceError{Model: r.Model, Reason: "encode request", Err: err}
	}

	url := fmt.Sprintf("%s/predict/%s", r.BaseURL, r.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &InferenceError{Model: r.Model, Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", &InferenceError{Model: r.Model, Reason: "service unavailable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return "", &InferenceError{Model: r.Model, Reason: "read response", Err: err}
	}

	var out RemoteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &InferenceError{Model: r.Model, Reason: fmt.Sprintf("service returned %d", resp.StatusCode)}
		}
		return "", &InferenceError{Model: r.Model, Reason: "decode response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("service returned %d", resp.StatusCode)
		if out.Error != "" {
			reason = fmt.Sprintf("%s: %s", reason, out.Error)
		}
		return "", &InferenceError{Model: r.Model, Reason: reason}
	}

	if out.Label == "" {
		return "", &InferenceError{Model: r.Model, Reason: "empty label"}
	}
	return out.Label, nil
}
