// Package oracle wraps the external decision service behind a bounded,
// validate-everything adapter. The adapter never mutates policy and never
// retries within a cycle; any failure resolves to a no-decision result.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/limitwarden/limitwarden/internal/metrics"
)

// DefaultTimeout bounds one oracle call.
const DefaultTimeout = 2 * time.Second

// Valid ranges for oracle-supplied numbers. Values outside these bounds mark
// the whole response invalid; external floats are never trusted unchecked.
const (
	minRPS   = 1.0
	maxRPS   = 1000.0
	minBurst = 5
	maxBurst = 5000
)

// Config holds the oracle endpoint settings.
type Config struct {
	BaseURL string        // Generation endpoint base, e.g. http://localhost:11434.
	Model   string        // Model name passed through to the service.
	Timeout time.Duration // Per-call deadline; DefaultTimeout when zero.
}

// Client issues single bounded calls to the decision service.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient constructs a Client from cfg.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// generateRequest is the wire request for the generation endpoint.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the wire response envelope.
type generateResponse struct {
	Response string `json:"response"`
}

// rawDecision mirrors the JSON object the service is asked to emit.
type rawDecision struct {
	Action             string   `json:"action"`
	NewRPS             *float64 `json:"new_rps"`
	NewBurst           *float64 `json:"new_burst"`
	Confidence         *float64 `json:"confidence"`
	Reason             string   `json:"reason"`
	GovernanceRequired bool     `json:"governance_required"`
}

// Consult issues exactly one call for the given context and returns a tagged
// result. Timeouts, transport errors, unparseable bodies, and out-of-range
// values each map to their own status; none of them is retried here.
func (c *Client) Consult(ctx context.Context, in Context) Result {
	if c == nil || c.baseURL == "" {
		return c.finish(Result{Status: StatusTransportError, Err: errors.New("oracle: no endpoint configured")})
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, errMarshal := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(in),
		Stream: false,
		Options: map[string]any{
			"temperature": 0.0,
			"num_predict": 150,
		},
	})
	if errMarshal != nil {
		return c.finish(Result{Status: StatusTransportError, Err: errMarshal})
	}

	req, errReq := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if errReq != nil {
		return c.finish(Result{Status: StatusTransportError, Err: errReq})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		if errors.Is(errDo, context.DeadlineExceeded) || callCtx.Err() != nil {
			return c.finish(Result{Status: StatusTimeout, Err: errDo})
		}
		return c.finish(Result{Status: StatusTransportError, Err: errDo})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.finish(Result{Status: StatusTransportError, Err: fmt.Errorf("oracle: status %d", resp.StatusCode)})
	}

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return c.finish(Result{Status: StatusTransportError, Err: errRead})
	}

	var envelope generateResponse
	if errUnmarshal := json.Unmarshal(body, &envelope); errUnmarshal != nil {
		return c.finish(Result{Status: StatusParseFailure, Err: errUnmarshal})
	}

	raw, errExtract := extractDecision(envelope.Response)
	if errExtract != nil {
		return c.finish(Result{Status: StatusParseFailure, Err: errExtract})
	}

	decision, errValidate := validateDecision(raw, in.CurrentLimit)
	if errValidate != nil {
		return c.finish(Result{Status: StatusInvalid, Err: errValidate})
	}
	return c.finish(Result{Status: StatusDecision, Decision: decision})
}

// finish records the outcome metric and logs non-decision results.
func (c *Client) finish(r Result) Result {
	metrics.OracleCallsTotal.WithLabelValues(r.Status.String()).Inc()
	if r.Status != StatusDecision {
		log.WithError(r.Err).WithField("status", r.Status.String()).Debug("oracle: no decision")
	}
	return r
}

// buildPrompt renders the context for the generation endpoint. The exact
// wording is a policy input, not engine behavior; the contract is only that
// the service answers with the JSON object validateDecision accepts.
func buildPrompt(in Context) string {
	var b strings.Builder
	b.WriteString("You tune API rate limits. Analyze this traffic and return ONLY a JSON object ")
	b.WriteString(`like {"action":"up","new_rps":25.0,"new_burst":75,"confidence":0.85,"reason":"...","governance_required":false}.`)
	fmt.Fprintf(&b, "\nTIER: %s (revenue $%.3f per request)", in.Tier, in.RevenueWeight)
	fmt.Fprintf(&b, "\nENDPOINT: %s", in.Endpoint)
	fmt.Fprintf(&b, "\nCURRENT LIMIT: %.1f RPS", in.CurrentLimit)
	fmt.Fprintf(&b, "\nOBSERVED: %.2f RPS, utilization %.0f%%, blocked %.0f%%, surge probability %.2f",
		in.CurrentRPS, in.Utilization*100, in.BlockedRatio*100, in.SurgeProbability)
	b.WriteString("\nActions: up, down, or same. new_rps must stay within 1..1000.")
	return b.String()
}

// extractDecision pulls the first JSON object out of the response text. The
// service sometimes wraps the object in prose.
func extractDecision(text string) (rawDecision, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return rawDecision{}, errors.New("oracle: no JSON object in response")
	}
	var raw rawDecision
	if errUnmarshal := json.Unmarshal([]byte(text[start:end+1]), &raw); errUnmarshal != nil {
		return rawDecision{}, fmt.Errorf("oracle: decode decision: %w", errUnmarshal)
	}
	return raw, nil
}

// validateDecision bounds-checks every externally supplied field.
func validateDecision(raw rawDecision, currentLimit float64) (Decision, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw.Action)))
	switch action {
	case ActionUp, ActionDown, ActionSame:
	default:
		return Decision{}, fmt.Errorf("oracle: invalid action %q", raw.Action)
	}

	newRPS := currentLimit
	if raw.NewRPS != nil {
		newRPS = *raw.NewRPS
	}
	if newRPS < minRPS || newRPS > maxRPS {
		return Decision{}, fmt.Errorf("oracle: rps %.2f out of range", newRPS)
	}

	newBurst := int(newRPS * 3)
	if raw.NewBurst != nil {
		newBurst = int(*raw.NewBurst)
	}
	if newBurst < minBurst || newBurst > maxBurst {
		return Decision{}, fmt.Errorf("oracle: burst %d out of range", newBurst)
	}

	if raw.Confidence == nil {
		return Decision{}, errors.New("oracle: missing confidence")
	}
	confidence := *raw.Confidence
	if confidence < 0 || confidence > 1 {
		return Decision{}, fmt.Errorf("oracle: confidence %.2f out of range", confidence)
	}

	reason := strings.TrimSpace(raw.Reason)
	if len(reason) > 120 {
		reason = reason[:120]
	}

	return Decision{
		Action:             action,
		NewRPS:             newRPS,
		NewBurst:           newBurst,
		Confidence:         confidence,
		Reasoning:          reason,
		GovernanceRequired: raw.GovernanceRequired,
	}, nil
}
