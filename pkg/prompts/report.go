package prompts

import (
	"fmt"
	"strings"

	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/types"
)

const reportSystemPrompt = `You are a Medical Research Assistant.
Create a concise medical report from the provided inputs (Audio, Acoustic signal, Image, Document) and research.
Structure:
1. Patient Overview (Symptoms)
2. Findings (Image/Document/Acoustic)
3. Research Insight (Brief)
4. Recommendations
Keep it professional but brief.`

// ReportInputs are the merged research fields offered to the report prompt.
// Empty fields are left out; callers blank any field that only holds a
// placeholder.
type ReportInputs struct {
	ImageRef        string
	Transcript      string
	AcousticSummary string
	ImageFindings   string
	ImageLabel      string
	DocumentText    string
	SearchSummary   string
	Prompt          string
}

// ResearchReport builds the messages for the final research report.
func ResearchReport(in ReportInputs) []types.Message {
	parts := []string{"-- INPUTS --"}

	if in.Prompt != "" {
		parts = append(parts, fmt.Sprintf("[Request]: %s", in.Prompt))
	}
	if in.ImageRef != "" {
		parts = append(parts, fmt.Sprintf("[Image URL]: %s", in.ImageRef))
	}
	if in.Transcript != "" {
		parts = append(parts, fmt.Sprintf("\n-- AUDIO TRANSCRIPT --\n%s", in.Transcript))
	}
	if in.AcousticSummary != "" {
		parts = append(parts, fmt.Sprintf("\n-- ACOUSTIC ASSESSMENT --\n%s", in.AcousticSummary))
	}
	if in.ImageFindings != "" {
		label := in.ImageLabel
		if label == "" {
			label = "N/A"
		}
		parts = append(parts, fmt.Sprintf("\n-- IMAGE ANALYSIS (Label: %s) --\n%s", label, in.ImageFindings))
	}
	if in.DocumentText != "" {
		parts = append(parts, fmt.Sprintf("\n-- DOCUMENT CONTENT --\n%s", in.DocumentText))
	}
	if in.SearchSummary != "" {
		parts = append(parts, fmt.Sprintf("\n-- MEDICAL RESEARCH --\n%s", in.SearchSummary))
	}

	return []types.Message{
		nlp.NewSystemMessage(reportSystemPrompt),
		nlp.NewUserMessage(strings.Join(parts, "\n")),
	}
}
