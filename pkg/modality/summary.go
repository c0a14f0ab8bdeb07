package modality

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const documentAnalystPrompt = `You are an Expert Medical Document Analyst.
Your task is to analyze the provided image, which could be a doctor's handwritten prescription, a clinical note, or a laboratory blood report.

Goals:
1. Summarize the content clearly.
2. If it's a doctor's note, describe the symptoms mentioned and the prescribed solution/medications.
3. If it's a lab report, highlight any critical values or results that are outside the normal range.
4. Interpret handwriting as accurately as possible.
5. Only report values that appear in the document.

Output Format:
- Use Markdown for clarity (Headers, Bullet points).
- Start with a "Summary" section.
- Include a "Critical Findings" section if any abnormalities are detected.
- Conclude with a "Recommendations" section based strictly on the document's content.

Keep the tone professional and informative.`

const dermatologyPrompt = `You are an expert Indian dermatologist. ` +
	`Analyze the provided skin image and give a detailed clinical assessment. Include: ` +
	`1. Description of visible lesions (color, shape, distribution, texture). ` +
	`2. Most likely diagnosis (with differential diagnoses). ` +
	`3. Recommended lab investigations or tests if needed. ` +
	`4. Suggested treatment approach (topical/systemic). ` +
	`5. Urgency level (routine / urgent / emergency). ` +
	`Consider Indian skin types (Fitzpatrick III-VI) and common tropical dermatological conditions.`

// ErrNoReportImage is returned when a summary is requested without an image.
var ErrNoReportImage = errors.New("image_url is required")

// SummaryPaths are the service endpoints used by ReportSummarizer.
type SummaryPaths struct {
	// Document reads prescriptions, clinical notes and lab reports.
	Document string
	// Dermatology is the skin specialist model.
	Dermatology string
}

// ReportSummarizer streams a written summary of a single medical image,
// such as a photographed lab report or a skin lesion. Unlike the analyzers
// it reports failures to the caller, since its output is the response.
type ReportSummarizer struct {
	client  *InferenceClient
	fetcher *Fetcher
	paths   SummaryPaths
	timeout time.Duration
	logger  *slog.Logger
}

// NewReportSummarizer creates a ReportSummarizer.
func NewReportSummarizer(client *InferenceClient, fetcher *Fetcher, paths SummaryPaths, timeout time.Duration, logger *slog.Logger) *ReportSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportSummarizer{client: client, fetcher: fetcher, paths: paths, timeout: timeout, logger: logger}
}

// Summarize streams the summary of the image at ref to fn, chunk by chunk.
// The dermatology model is used when specialist is set.
func (s *ReportSummarizer) Summarize(ctx context.Context, ref string, specialist bool, fn func(chunk string) error) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrNoReportImage
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	imageURL, err := resolveImage(ctx, s.fetcher, ref)
	if err != nil {
		s.logger.Warn("Report image fetch failed", "ref", ref, "error", err)
		return err
	}

	path, prompt := s.paths.Document, documentAnalystPrompt
	if specialist {
		path, prompt = s.paths.Dermatology, dermatologyPrompt
	}
	req := map[string]string{"prompt": prompt, "image_url": imageURL}
	if err := s.client.PostStream(ctx, path, req, fn); err != nil {
		s.logger.Error("Report summary failed", "path", path, "error", err)
		return err
	}
	return nil
}
