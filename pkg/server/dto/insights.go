package dto

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ExpertCheckRequest stores a senior doctor's insight.
type ExpertCheckRequest struct {
	CheckText  string   `json:"check_text" binding:"required"`
	Category   string   `json:"category"`
	HospitalID string   `json:"hospital_id,omitempty"`
	Medication []string `json:"medication,omitempty"`
	LabTest    []string `json:"lab_test,omitempty"`
}

// Validate performs validation on ExpertCheckRequest
func (r *ExpertCheckRequest) Validate() error {
	if strings.TrimSpace(r.CheckText) == "" {
		return errors.New("check_text cannot be empty")
	}
	if utf8.RuneCountInString(r.CheckText) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// JoinedMedication returns the medication list as stored.
func (r *ExpertCheckRequest) JoinedMedication() string {
	return joinList(r.Medication)
}

// JoinedLabTest returns the lab-test list as stored.
func (r *ExpertCheckRequest) JoinedLabTest() string {
	return joinList(r.LabTest)
}

func joinList(items []string) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

// ExpertCheckResponse acknowledges a stored insight.
type ExpertCheckResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ExpertChatRequest asks for a streamed expert answer. HospitalID restricts
// the search to one hospital.
type ExpertChatRequest struct {
	Query      string `json:"query" binding:"required"`
	Category   string `json:"category,omitempty"`
	HospitalID string `json:"hospital_id,omitempty"`
}

// Validate performs validation on ExpertChatRequest
func (r *ExpertChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if utf8.RuneCountInString(r.Query) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// DeepResearchRequest lists the research inputs. All fields are optional.
// PDFURL is accepted as an alias of DocumentURL and VisionPrompt of Prompt.
type DeepResearchRequest struct {
	ImageURL     string `json:"image_url,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`
	DocumentURL  string `json:"document_url,omitempty"`
	PDFURL       string `json:"pdf_url,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	VisionPrompt string `json:"vision_prompt,omitempty"`
}

// Validate performs validation on DeepResearchRequest
func (r *DeepResearchRequest) Validate() error {
	if utf8.RuneCountInString(r.Prompt)+utf8.RuneCountInString(r.VisionPrompt) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// Document returns the document reference, preferring DocumentURL.
func (r *DeepResearchRequest) Document() string {
	if r.DocumentURL != "" {
		return r.DocumentURL
	}
	return r.PDFURL
}

// EffectivePrompt returns Prompt, falling back to VisionPrompt.
func (r *DeepResearchRequest) EffectivePrompt() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	return r.VisionPrompt
}

// SummarizeReportRequest asks for a streamed summary of one medical image.
type SummarizeReportRequest struct {
	ImageURL          string `json:"image_url" binding:"required"`
	UseSkinSpecialist bool   `json:"use_skin_specialist,omitempty"`
}

// Validate performs validation on SummarizeReportRequest
func (r *SummarizeReportRequest) Validate() error {
	if strings.TrimSpace(r.ImageURL) == "" {
		return errors.New("image_url cannot be empty")
	}
	return nil
}
