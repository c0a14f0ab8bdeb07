// Package synth turns retrieved insights into a streamed, grounded answer.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/prompts"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/soundprediction/medinsight/pkg/types"
	"github.com/soundprediction/medinsight/pkg/utils"
)

// Synthesizer streams model output as protocol events.
type Synthesizer struct {
	generator nlp.Generator
	logger    *slog.Logger
}

// New creates a Synthesizer. A nil logger uses slog.Default().
func New(generator nlp.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{generator: generator, logger: logger}
}

// Stream answers query from matches. It sends token events as the model
// produces them, then one metadata event and done. When generation fails an
// error event is sent instead of metadata and done, and the error is
// returned. A non-nil error is also returned if the sink rejects an event.
func (s *Synthesizer) Stream(ctx context.Context, query string, matches []types.Match, sink stream.Sink) error {
	em := stream.NewEmitter(sink)

	if err := s.generate(ctx, prompts.ExpertAnswer(query, BuildContext(matches)), em); err != nil {
		return err
	}

	meds, labs := CollectMetadata(matches)
	if err := em.Send(stream.Metadata(meds, labs)); err != nil {
		return err
	}
	return em.Close()
}

// StreamReport streams a completion for messages followed by done. On
// failure an error event is sent and the error returned.
func (s *Synthesizer) StreamReport(ctx context.Context, messages []types.Message, sink stream.Sink) error {
	em := stream.NewEmitter(sink)
	if err := s.generate(ctx, messages, em); err != nil {
		return err
	}
	return em.Close()
}

func (s *Synthesizer) generate(ctx context.Context, messages []types.Message, em *stream.Emitter) error {
	var sinkErr error
	err := s.generator.Stream(ctx, messages, func(chunk string) error {
		if chunk == "" {
			return nil
		}
		if err := em.Send(stream.Token(chunk)); err != nil {
			sinkErr = err
			return err
		}
		return nil
	})
	if sinkErr != nil {
		return sinkErr
	}
	if err != nil {
		s.logger.Error("Generation failed mid-stream", "error", err)
		if sendErr := em.Fail(err); sendErr != nil {
			return sendErr
		}
		return fmt.Errorf("generation failed: %w", err)
	}
	return nil
}

// BuildContext renders matches as numbered experience sections. Restricted
// fields are only included when the match is unmasked.
func BuildContext(matches []types.Match) string {
	if len(matches) == 0 {
		return prompts.NoExperienceContext
	}

	var sb strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&sb, "\n--- Experience %d (%s) ---\n", i+1, m.SourceLabel)
		fmt.Fprintf(&sb, "Insight: %s\n", m.Text)
		if visible(m.Medication) {
			fmt.Fprintf(&sb, "Medication Used: %s\n", m.Medication)
		}
		if visible(m.LabTest) {
			fmt.Fprintf(&sb, "Lab Tests Ordered: %s\n", m.LabTest)
		}
	}
	return sb.String()
}

// CollectMetadata returns the unmasked medications and lab tests across
// matches, split on commas, trimmed and de-duplicated in first-seen order.
// Both slices are non-nil.
func CollectMetadata(matches []types.Match) (medications, labTests []string) {
	meds := utils.NewOrderedSet()
	labs := utils.NewOrderedSet()
	for _, m := range matches {
		if visible(m.Medication) {
			meds.Add(utils.SplitList(m.Medication, ",")...)
		}
		if visible(m.LabTest) {
			labs.Add(utils.SplitList(m.LabTest, ",")...)
		}
	}
	return meds.Items(), labs.Items()
}

func visible(field string) bool {
	return field != "" && field != types.RestrictedSentinel
}
