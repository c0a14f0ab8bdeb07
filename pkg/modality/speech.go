package modality

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/medinsight/pkg/utils"
)

// recognizerTokens are emitted by alignment-based decoders and carry no text.
var recognizerTokens = []string{"<epsilon>", "<blank>", "<pad>", "<s>", "</s>", "<unk>"}

// SpeechAnalyzer transcribes audio through the remote speech service.
type SpeechAnalyzer struct {
	client  *InferenceClient
	fetcher *Fetcher
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSpeechAnalyzer creates a SpeechAnalyzer posting to path.
func NewSpeechAnalyzer(client *InferenceClient, fetcher *Fetcher, path string, timeout time.Duration, logger *slog.Logger) *SpeechAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechAnalyzer{client: client, fetcher: fetcher, path: path, timeout: timeout, logger: logger}
}

// Analyze fetches the audio at ref and returns its cleaned transcript.
func (a *SpeechAnalyzer) Analyze(ctx context.Context, ref string) (res Result) {
	defer utils.RecoverWithCallback(func(err error) { res = Degrade(AudioFailed, err.Error()) })

	if strings.TrimSpace(ref) == "" {
		return Degrade(NoAudio, "no audio reference")
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		a.logger.Warn("Audio fetch failed", "ref", ref, "error", err)
		return Degrade(AudioFailed, err.Error())
	}

	name := payload.Name
	if name == "" || name == "." || name == "/" {
		name = "patient_audio.wav"
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	var out struct {
		Transcription string `json:"transcription"`
	}
	if err := a.client.PostFile(ctx, a.path, "file", name, contentType, payload.Data, &out); err != nil {
		a.logger.Error("Transcription failed", "error", err)
		return Degrade(AudioFailed, err.Error())
	}

	text := CleanTranscript(out.Transcription)
	if text == "" {
		return Degrade(AudioFailed, "empty transcription")
	}
	return OK(text)
}

// CleanTranscript removes recognizer tokens, collapses runs of a repeated
// word to its first occurrence (case-insensitive) and normalizes whitespace.
func CleanTranscript(raw string) string {
	for _, tok := range recognizerTokens {
		raw = strings.ReplaceAll(raw, tok, " ")
	}

	words := strings.Fields(raw)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := len(out); n > 0 && strings.EqualFold(out[n-1], w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
