package research

import (
	"fmt"
	"strings"

	"github.com/soundprediction/medinsight/pkg/modality"
	"github.com/soundprediction/medinsight/pkg/prompts"
	"github.com/soundprediction/medinsight/pkg/research/websearch"
	"github.com/soundprediction/medinsight/pkg/utils"
)

// NoResearchData is the search summary when no query could be built.
const NoResearchData = "No sufficient data to research."

// Request lists the inputs of a research run. Every field is optional.
type Request struct {
	ImageRef    string `json:"image_url,omitempty"`
	AudioRef    string `json:"audio_url,omitempty"`
	DocumentRef string `json:"document_url,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// State accumulates the outputs of a research run. Each analyzer branch
// owns a disjoint set of fields; the search and synthesis steps only read
// them after the branches have joined.
type State struct {
	Request

	// speech branch
	Transcript modality.Result

	// acoustic branch
	AcousticSummary modality.Result
	AcousticTier    modality.Tier

	// image branch
	ImageFindings modality.Result
	ImageLabel    string

	// document branch
	DocumentText modality.Result

	SearchQuery    string
	SearchSummary  string
	SearchDegraded bool

	FinalReport string
}

// BuildSearchQuery derives the web-search query from the merged state.
// Parts are taken in priority order: image label, image findings,
// transcript, acoustic tier. When none applies the request prompt is used.
// An empty result means there is nothing to search for.
func BuildSearchQuery(s *State) string {
	var parts []string

	if s.ImageLabel != "" && s.ImageLabel != modality.NoLabel {
		parts = append(parts, fmt.Sprintf("%s treatment guidelines", s.ImageLabel))
	}
	if s.ImageFindings.Usable() && len([]rune(s.ImageFindings.Value)) > 20 {
		parts = append(parts, fmt.Sprintf("medical consensus on %s", utils.Truncate(s.ImageFindings.Value, 100)))
	}
	if s.Transcript.Usable() {
		parts = append(parts, fmt.Sprintf("symptoms: %s", utils.Truncate(s.Transcript.Value, 100)))
	}
	if s.AcousticSummary.Usable() && (s.AcousticTier == modality.TierHigh || s.AcousticTier == modality.TierModerate) {
		parts = append(parts, fmt.Sprintf("%s respiratory acoustic anomaly", s.AcousticTier))
	}

	if len(parts) == 0 {
		return strings.TrimSpace(s.Prompt)
	}
	return strings.Join(parts, " ")
}

// FormatResults renders search hits as a markdown list.
func FormatResults(results []websearch.Result) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- **[%s](%s)**: %s...\n", r.Title, r.URL, utils.Truncate(r.Content, 300))
	}
	return sb.String()
}

// ReportInputs selects the fields offered to the report prompt. Degraded
// values are left out.
func (s *State) ReportInputs() prompts.ReportInputs {
	in := prompts.ReportInputs{Prompt: strings.TrimSpace(s.Prompt)}
	// inline data: URIs are not worth quoting back to the model
	if strings.HasPrefix(s.ImageRef, "http://") || strings.HasPrefix(s.ImageRef, "https://") {
		in.ImageRef = s.ImageRef
	}
	if s.Transcript.Usable() {
		in.Transcript = s.Transcript.Value
	}
	if s.AcousticSummary.Usable() {
		in.AcousticSummary = s.AcousticSummary.Value
	}
	if s.ImageFindings.Usable() {
		in.ImageFindings = s.ImageFindings.Value
		in.ImageLabel = s.ImageLabel
	}
	if s.DocumentText.Usable() {
		in.DocumentText = s.DocumentText.Value
	}
	if !s.SearchDegraded {
		in.SearchSummary = strings.TrimSpace(s.SearchSummary)
	}
	return in
}
