// Package modality analyzes the raw inputs of a research request (speech,
// acoustic signal, image, document) through remote inference services.
//
// Analyzers never return errors. Every failure, including a panic inside an
// analyzer, becomes a degraded Result whose Value is a human-readable
// placeholder, so callers can treat every field as present text.
package modality

// Placeholder values produced by degraded analyzers.
const (
	NoAudio             = "No audio provided."
	AudioFailed         = "Audio processing failed or silent."
	NoAcoustic          = "No acoustic signal provided."
	AcousticUnavailable = "Acoustic analysis unavailable."
	NoImage             = "No image provided."
	ImageUnavailable    = "Image analysis unavailable."
	NoDocument          = "No document provided."
	DocumentFailed      = "Document extraction failed."

	// NoLabel is the image label used when classification is unavailable.
	NoLabel = "N/A"

	// DefaultVisionPrompt is asked when the request carries no prompt.
	DefaultVisionPrompt = "Describe the medical findings in detail."
)

// Result is the outcome of one analysis. A degraded Result holds its
// placeholder in Value and the cause in Reason.
type Result struct {
	Value    string `json:"value"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// OK wraps a successful value.
func OK(value string) Result {
	return Result{Value: value}
}

// Degrade builds a degraded Result with the given placeholder and reason.
func Degrade(placeholder, reason string) Result {
	return Result{Value: placeholder, Degraded: true, Reason: reason}
}

// Usable reports whether the Result carries real content.
func (r Result) Usable() bool {
	return !r.Degraded && r.Value != ""
}
