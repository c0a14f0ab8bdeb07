package modality

import (
	"log/slog"
	"net/http"

	"github.com/soundprediction/medinsight/pkg/config"
)

// Analyzers groups the four modality analyzers of a research request.
type Analyzers struct {
	Speech   *SpeechAnalyzer
	Acoustic *AcousticAnalyzer
	Image    *ImageAnalyzer
	Document *DocumentAnalyzer

	// Summary reads single medical images outside of research runs.
	Summary *ReportSummarizer
}

// NewAnalyzers builds all analyzers over a shared inference client and
// fetcher. A nil httpClient uses a default client; per-call deadlines come
// from cfg.
func NewAnalyzers(cfg config.ModalityConfig, httpClient *http.Client, logger *slog.Logger) *Analyzers {
	if logger == nil {
		logger = slog.Default()
	}
	client := NewInferenceClient(cfg.BaseURL, cfg.APIKey, httpClient)
	fetcher := NewFetcher(httpClient, 0, cfg.AllowLocalFiles)

	speech := NewSpeechAnalyzer(client, fetcher, cfg.SpeechPath, cfg.SpeechTimeout, logger.With("analyzer", "speech"))
	acoustic := NewAcousticAnalyzer(client, fetcher, cfg.AcousticPath, cfg.AcousticTimeout,
		cfg.AcousticHighThreshold, cfg.AcousticLowThreshold, logger.With("analyzer", "acoustic"))
	image := NewImageAnalyzer(client, fetcher, ImagePaths{Vision: cfg.VisionPath, ZeroShot: cfg.ZeroShotPath},
		cfg.VisionTimeout, cfg.ZeroShotTimeout, cfg.ImageLabels, logger.With("analyzer", "image"))
	document := NewDocumentAnalyzer(fetcher, cfg.MaxDocumentChars, cfg.DocumentTimeout, logger.With("analyzer", "document"))

	summary := NewReportSummarizer(client, fetcher, SummaryPaths{Document: cfg.VisionPath, Dermatology: cfg.DermatologyPath},
		cfg.SummaryTimeout, logger.With("analyzer", "summary"))

	return &Analyzers{
		Speech:   speech,
		Acoustic: acoustic,
		Image:    image,
		Document: document,
		Summary:  summary,
	}
}
