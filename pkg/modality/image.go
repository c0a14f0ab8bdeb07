package modality

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/medinsight/pkg/utils"
)

// DefaultImageLabels is the closed label set for zero-shot classification.
var DefaultImageLabels = []string{"Normal", "Fracture", "Pneumonia", "Infection", "Tumor", "Hemorrhage"}

// ImageResult holds the findings of the visual question answering call and
// the zero-shot label. Label is NoLabel when classification failed.
type ImageResult struct {
	Findings Result `json:"findings"`
	Label    string `json:"label"`
}

// ImagePaths are the service endpoints used by ImageAnalyzer.
type ImagePaths struct {
	Vision   string
	ZeroShot string
}

// ImageAnalyzer runs visual question answering and zero-shot labelling
// against one image. The two calls fail independently.
type ImageAnalyzer struct {
	client          *InferenceClient
	fetcher         *Fetcher
	paths           ImagePaths
	visionTimeout   time.Duration
	zeroShotTimeout time.Duration
	labels          []string
	logger          *slog.Logger
}

// NewImageAnalyzer creates an ImageAnalyzer. An empty labels slice uses
// DefaultImageLabels.
func NewImageAnalyzer(client *InferenceClient, fetcher *Fetcher, paths ImagePaths, visionTimeout, zeroShotTimeout time.Duration, labels []string, logger *slog.Logger) *ImageAnalyzer {
	if len(labels) == 0 {
		labels = DefaultImageLabels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageAnalyzer{
		client:          client,
		fetcher:         fetcher,
		paths:           paths,
		visionTimeout:   visionTimeout,
		zeroShotTimeout: zeroShotTimeout,
		labels:          labels,
		logger:          logger,
	}
}

// Analyze describes the image at ref, answering prompt or
// DefaultVisionPrompt when prompt is empty.
func (a *ImageAnalyzer) Analyze(ctx context.Context, ref, prompt string) (res ImageResult) {
	defer utils.RecoverWithCallback(func(err error) {
		res = ImageResult{Findings: Degrade(ImageUnavailable, err.Error()), Label: NoLabel}
	})

	if strings.TrimSpace(ref) == "" {
		return ImageResult{Findings: Degrade(NoImage, "no image reference"), Label: NoLabel}
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultVisionPrompt
	}

	imageURL, err := resolveImage(ctx, a.fetcher, ref)
	if err != nil {
		a.logger.Warn("Image fetch failed", "ref", ref, "error", err)
		return ImageResult{Findings: Degrade(ImageUnavailable, err.Error()), Label: NoLabel}
	}

	res.Label = NoLabel
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Findings = a.describe(ctx, imageURL, prompt)
	}()
	go func() {
		defer wg.Done()
		res.Label = a.classify(ctx, imageURL)
	}()
	wg.Wait()
	return res
}

// resolveImage returns a URL the inference service can load. Remote URLs
// pass through and anything else is inlined as a data: URI.
func resolveImage(ctx context.Context, fetcher *Fetcher, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	payload, err := fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(payload), nil
}

func (a *ImageAnalyzer) describe(ctx context.Context, imageURL, prompt string) (res Result) {
	defer utils.RecoverWithCallback(func(err error) { res = Degrade(ImageUnavailable, err.Error()) })

	ctx, cancel := withTimeout(ctx, a.visionTimeout)
	defer cancel()

	req := map[string]string{"prompt": prompt, "image_url": imageURL}
	var sb strings.Builder
	err := a.client.PostStream(ctx, a.paths.Vision, req, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		a.logger.Error("Visual question answering failed", "error", err)
		return Degrade(ImageUnavailable, err.Error())
	}

	findings := strings.TrimSpace(sb.String())
	if findings == "" {
		return Degrade(ImageUnavailable, "empty findings")
	}
	return OK(findings)
}

func (a *ImageAnalyzer) classify(ctx context.Context, imageURL string) (label string) {
	defer utils.RecoverWithCallback(func(error) { label = NoLabel })

	ctx, cancel := withTimeout(ctx, a.zeroShotTimeout)
	defer cancel()

	req := struct {
		ImageURL   string   `json:"image_url"`
		Candidates []string `json:"candidates"`
	}{ImageURL: imageURL, Candidates: a.labels}

	var out struct {
		Prediction string `json:"prediction"`
	}
	if err := a.client.PostJSON(ctx, a.paths.ZeroShot, req, &out); err != nil {
		a.logger.Warn("Zero-shot classification failed", "error", err)
		return NoLabel
	}
	if strings.TrimSpace(out.Prediction) == "" {
		return NoLabel
	}
	return strings.TrimSpace(out.Prediction)
}
