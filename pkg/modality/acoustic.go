package modality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/medinsight/pkg/utils"
)

// Tier is the anomaly bucket of an acoustic embedding.
type Tier string

const (
	TierHigh     Tier = "High"
	TierModerate Tier = "Moderate"
	TierLow      Tier = "Low"
)

// Default norm thresholds. They were picked by inspection of sample
// recordings and should be recalibrated per acoustic model.
const (
	DefaultHighThreshold = 15.0
	DefaultLowThreshold  = 5.0
)

var tierInterpretations = map[Tier]string{
	TierHigh:     "Strong deviation from the baseline acoustic profile; findings may indicate respiratory distress and warrant prompt clinical correlation.",
	TierModerate: "Moderate acoustic irregularities detected; consider follow-up auscultation.",
	TierLow:      "Acoustic profile within the expected range; no significant anomaly detected.",
}

// Interpretation returns the clinical reading of a tier.
func (t Tier) Interpretation() string {
	return tierInterpretations[t]
}

// ClassifyNorm buckets an L2 norm: above high is High, above low is
// Moderate, anything else is Low.
func ClassifyNorm(norm, high, low float64) Tier {
	switch {
	case norm > high:
		return TierHigh
	case norm > low:
		return TierModerate
	default:
		return TierLow
	}
}

// AcousticResult adds the tier and norm to a Result. Tier is empty when the
// result is degraded.
type AcousticResult struct {
	Result
	Tier Tier    `json:"tier,omitempty"`
	Norm float64 `json:"norm"`
}

// AcousticAnalyzer scores audio by the magnitude of its acoustic-model
// embedding. The score is a heuristic proxy, not a trained classifier.
type AcousticAnalyzer struct {
	client  *InferenceClient
	fetcher *Fetcher
	path    string
	timeout time.Duration
	high    float64
	low     float64
	logger  *slog.Logger
}

// NewAcousticAnalyzer creates an AcousticAnalyzer. Non-positive thresholds
// fall back to the defaults.
func NewAcousticAnalyzer(client *InferenceClient, fetcher *Fetcher, path string, timeout time.Duration, high, low float64, logger *slog.Logger) *AcousticAnalyzer {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	if low <= 0 {
		low = DefaultLowThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AcousticAnalyzer{
		client:  client,
		fetcher: fetcher,
		path:    path,
		timeout: timeout,
		high:    high,
		low:     low,
		logger:  logger,
	}
}

// Analyze fetches the audio at ref and classifies its embedding norm.
func (a *AcousticAnalyzer) Analyze(ctx context.Context, ref string) (res AcousticResult) {
	defer utils.RecoverWithCallback(func(err error) {
		res = AcousticResult{Result: Degrade(AcousticUnavailable, err.Error())}
	})

	if strings.TrimSpace(ref) == "" {
		return AcousticResult{Result: Degrade(NoAcoustic, "no audio reference")}
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		a.logger.Warn("Audio fetch failed", "ref", ref, "error", err)
		return AcousticResult{Result: Degrade(AcousticUnavailable, err.Error())}
	}

	name := payload.Name
	if name == "" || name == "." || name == "/" {
		name = "patient_audio.wav"
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := a.client.PostFile(ctx, a.path, "file", name, payload.ContentType, payload.Data, &out); err != nil {
		a.logger.Error("Acoustic embedding failed", "error", err)
		return AcousticResult{Result: Degrade(AcousticUnavailable, err.Error())}
	}
	if len(out.Embedding) == 0 {
		return AcousticResult{Result: Degrade(AcousticUnavailable, "empty embedding")}
	}

	return a.Assess(out.Embedding)
}

// Assess classifies an embedding with the analyzer's thresholds.
func (a *AcousticAnalyzer) Assess(embedding []float32) AcousticResult {
	norm := utils.Magnitude(embedding)
	tier := ClassifyNorm(norm, a.high, a.low)
	summary := fmt.Sprintf("Anomaly tier: %s (signal norm %.2f). %s", tier, norm, tier.Interpretation())
	return AcousticResult{Result: OK(summary), Tier: tier, Norm: norm}
}
