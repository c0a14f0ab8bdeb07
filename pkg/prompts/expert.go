// Package prompts builds the chat messages sent to the language models.
package prompts

import (
	"fmt"

	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/types"
)

// NoExperienceContext is the context block used when retrieval found nothing.
const NoExperienceContext = "No specific past experiences found for this query."

const expertSystemPrompt = `You are an Expert Medical AI assistant for doctors.
Use the retrieved experiences from senior doctors to answer the user's query.
If an experience is from the SAME hospital (same-scope), you may recommend the specific medications and lab tests it mentions.
If an experience is from a DIFFERENT hospital (global), summarize the clinical insight or approach only. Its medications and lab tests are restricted: never guess or invent them.
Provide a concise, professional medical answer.`

// ExpertAnswer builds the messages for a grounded expert answer.
func ExpertAnswer(query, contextBlock string) []types.Message {
	if contextBlock == "" {
		contextBlock = NoExperienceContext
	}
	userPrompt := fmt.Sprintf(`Context:
%s

User Query: %s`, contextBlock, query)

	return []types.Message{
		nlp.NewSystemMessage(expertSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}
