package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/observability"
)

// Native connects to the Health Auto Export TCP server (JSON-RPC 2.0) running
// on the phone. Each call opens a new TCP connection; the server closes the
// socket after sending the response.
type Native struct {
	host    string
	port    int
	timeout time.Duration
	log     *slog.Logger

	available  atomic.Bool
	authorized atomic.Bool
}

// jsonRPCRequest is a JSON-RPC 2.0 request.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// callToolParams wraps the tool name and arguments for the callTool method.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// jsonRPCResponse is a JSON-RPC 2.0 response.
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// jsonRPCError is the error object in a JSON-RPC 2.0 response.
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// heartRateWindow bounds how far back Sample looks for the current heart rate.
const heartRateWindow = time.Minute

// HAE workout activity types.
const (
	haeWalking = "HKWorkoutActivityTypeWalking"
	haeRunning = "HKWorkoutActivityTypeRunning"
)

var (
	errUnavailable   = errors.New("health auto export server unavailable")
	errNotAuthorized = errors.New("health access not authorized")
)

// NewNative creates a platform for the HAE server at host:port. Every call is
// bounded by timeout.
func NewNative(host string, port int, timeout time.Duration, log *slog.Logger) *Native {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Native{host: host, port: port, timeout: timeout, log: log}
}

func (n *Native) Mode() string { return "native" }

func (n *Native) IsAvailable() bool { return n.available.Load() }

// IsAuthorized reports whether the last RequestAuthorization succeeded.
// Reads and writes are refused until it does.
func (n *Native) IsAuthorized() bool { return n.authorized.Load() }

func (n *Native) addr() string {
	return net.JoinHostPort(n.host, fmt.Sprintf("%d", n.port))
}

// Ping checks whether the server accepts connections and records the result.
func (n *Native) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.addr())
	if err != nil {
		n.log.Debug("health server unreachable", "addr", n.addr(), "error", err)
		n.available.Store(false)
		return false
	}
	conn.Close() //nolint:errcheck
	n.available.Store(true)
	return true
}

// RequestAuthorization re-pings the server and issues a read over the last
// minute. HAE grants health store access on the device, so a successful
// read is the authorization signal. A failure revokes earlier grants.
func (n *Native) RequestAuthorization(ctx context.Context) bool {
	if !n.Ping(ctx) {
		n.authorized.Store(false)
		return false
	}
	end := time.Now()
	if _, err := n.fetchMetric(ctx, models.HAEMetricStepCount, end.Add(-time.Minute), end); err != nil {
		n.log.Error("health authorization failed", "error", err)
		n.authorized.Store(false)
		return false
	}
	n.authorized.Store(true)
	n.log.Info("health access authorized", "read", ReadScopes, "write", WriteScopes)
	return true
}

// QuerySteps sums step samples in the range.
func (n *Native) QuerySteps(ctx context.Context, start, end time.Time) (float64, bool) {
	v, ok := n.sumMetric(ctx, models.HAEMetricStepCount, start, end)
	observability.RecordHealthQuery("steps", ok)
	return v, ok
}

// QueryDistance sums walking and running distance in the range, in km.
func (n *Native) QueryDistance(ctx context.Context, start, end time.Time) (float64, bool) {
	v, ok := n.sumMetric(ctx, models.HAEMetricDistance, start, end)
	observability.RecordHealthQuery("distance", ok)
	return v, ok
}

// QueryHeartRate returns the most recent heart rate sample in the range.
func (n *Native) QueryHeartRate(ctx context.Context, start, end time.Time) (float64, bool) {
	v, ok := n.latestHeartRate(ctx, start, end)
	observability.RecordHealthQuery("heart_rate", ok)
	return v, ok
}

func (n *Native) latestHeartRate(ctx context.Context, start, end time.Time) (float64, bool) {
	metric, err := n.queryMetric(ctx, models.HAEMetricHeartRate, start, end)
	if err != nil {
		n.logQueryError(models.HAEMetricHeartRate, err)
		return 0, false
	}
	if metric == nil {
		return 0, false
	}

	var latest models.HAEHeartRateDataPoint
	found := false
	for _, raw := range metric.Data {
		var p models.HAEHeartRateDataPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			n.log.Warn("skipping malformed heart rate sample", "error", err)
			continue
		}
		if p.Avg <= 0 {
			continue
		}
		if !found || p.Date.After(latest.Date.Time) {
			latest = p
			found = true
		}
	}
	return latest.Avg, found
}

func (n *Native) sumMetric(ctx context.Context, name string, start, end time.Time) (float64, bool) {
	metric, err := n.queryMetric(ctx, name, start, end)
	if err != nil {
		n.logQueryError(name, err)
		return 0, false
	}
	if metric == nil || len(metric.Data) == 0 {
		return 0, false
	}

	var total float64
	for _, raw := range metric.Data {
		var p models.HAEMetricDataPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			n.log.Warn("skipping malformed sample", "metric", name, "error", err)
			continue
		}
		total += p.Qty
	}
	if name == models.HAEMetricDistance {
		total = models.HAEQuantity{Qty: total, Units: metric.Units}.Kilometers()
	}
	return total, true
}

func (n *Native) logQueryError(metric string, err error) {
	if errors.Is(err, errUnavailable) || errors.Is(err, errNotAuthorized) {
		return
	}
	n.log.Error("health query failed", "metric", metric, "error", err)
}

// SaveWorkout writes w to the health store. Duration is sent in seconds and
// distance in meters.
func (n *Native) SaveWorkout(ctx context.Context, w Workout) bool {
	if !n.IsAvailable() || !n.IsAuthorized() {
		return false
	}
	activity := haeWalking
	if w.Type == WorkoutRunning {
		activity = haeRunning
	}
	args := map[string]any{
		"activityType": activity,
		"start":        w.Start.Format(models.HAETimeLayout),
		"end":          w.End.Format(models.HAETimeLayout),
		"duration":     w.Duration * 60,
		"distance":     w.Distance * 1000,
		"energyBurned": 0,
	}
	if _, err := n.callTool(ctx, "save_workout", args); err != nil {
		n.log.Error("saving workout to health store failed", "error", err)
		return false
	}
	return true
}

// Sample runs the three queries concurrently. Heart rate is the latest value
// in the minute before end. Steps and distance cover only (start, end], cut
// on whole seconds to match HAE's timestamp resolution, so readings for
// adjacent windows never count the same sample twice.
func (n *Native) Sample(ctx context.Context, start, end time.Time) Reading {
	from, to := countWindow(start, end)
	var (
		wg                sync.WaitGroup
		hr, steps, dist   float64
		hrOK, stOK, dstOK bool
	)
	wg.Add(1)
	go func() { defer wg.Done(); hr, hrOK = n.QueryHeartRate(ctx, end.Add(-heartRateWindow), end) }()
	if !to.Before(from) {
		wg.Add(2)
		go func() { defer wg.Done(); steps, stOK = n.QuerySteps(ctx, from, to) }()
		go func() { defer wg.Done(); dist, dstOK = n.QueryDistance(ctx, from, to) }()
	}
	wg.Wait()

	// Zero readings are reported as absent.
	return Reading{
		At:        end,
		HeartRate: ptr(hr, hrOK && hr != 0),
		Steps:     ptr(steps, stOK && steps != 0),
		Distance:  ptr(dist, dstOK && dist != 0),
	}
}

// countWindow maps (start, end] onto the inclusive whole-second range HAE
// filters on. The result is empty (to before from) when no whole second ends
// inside the window.
func countWindow(start, end time.Time) (from, to time.Time) {
	return start.Truncate(time.Second).Add(time.Second), end.Truncate(time.Second)
}

// QueryWorkouts fetches the workouts recorded in the range, with per-minute
// heart rate and step samples.
func (n *Native) QueryWorkouts(ctx context.Context, start, end time.Time) ([]models.HAEWorkout, error) {
	if !n.IsAuthorized() && !n.RequestAuthorization(ctx) {
		return nil, errNotAuthorized
	}
	args := map[string]any{
		"start":               start.Format(models.HAETimeLayout),
		"end":                 end.Format(models.HAETimeLayout),
		"includeMetadata":     true,
		"includeRoutes":       false,
		"metadataAggregation": "minutes",
	}
	result, err := n.callTool(ctx, "workouts", args)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var payload models.HAEPayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("parsing workouts result: %w", err)
	}
	return payload.Data.Workouts, nil
}

// queryMetric fetches one metric's raw samples once access is authorized. A
// nil metric means the server returned no data for it.
func (n *Native) queryMetric(ctx context.Context, name string, start, end time.Time) (*models.HAEMetric, error) {
	if !n.IsAuthorized() {
		return nil, errNotAuthorized
	}
	return n.fetchMetric(ctx, name, start, end)
}

func (n *Native) fetchMetric(ctx context.Context, name string, start, end time.Time) (*models.HAEMetric, error) {
	if !n.IsAvailable() {
		return nil, errUnavailable
	}
	args := map[string]any{
		"start":     start.Format(models.HAETimeLayout),
		"end":       end.Format(models.HAETimeLayout),
		"metrics":   name,
		"aggregate": false,
	}
	result, err := n.callTool(ctx, "health_metrics", args)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var payload models.HAEPayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("parsing %s result: %w", name, err)
	}
	for i := range payload.Data.Metrics {
		if payload.Data.Metrics[i].Name == name {
			return &payload.Data.Metrics[i], nil
		}
	}
	return nil, nil
}

// callTool sends a JSON-RPC callTool request and returns the result.
func (n *Native) callTool(ctx context.Context, toolName string, args map[string]any) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "callTool",
		Params: callToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	addr := n.addr()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// HAE server uses newline-delimited JSON-RPC framing.
	reqData = append(reqData, '\n')

	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// HAE server closes the connection after sending the response, so read until EOF.
	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if len(respData) == 0 {
		return nil, fmt.Errorf("empty response from %s", addr)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("HAE error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}
