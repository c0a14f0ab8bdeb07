package medinsight

import (
	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/research"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat QUERY",
	Short: "Ask for an expert answer and print the NDJSON event stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run a deep research request and print the NDJSON event stream",
	RunE:  runResearch,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize IMAGE",
	Short: "Summarize a medical report or skin image and print the NDJSON event stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	rootCmd.AddCommand(chatCmd, researchCmd, summarizeCmd)

	addStoreFlags(chatCmd)
	chatCmd.Flags().String("scope", "", "Hospital of the asking user")
	chatCmd.Flags().String("hospital", "", "Restrict the search to this hospital")
	chatCmd.Flags().String("category", "", "Restrict to a category")

	addStoreFlags(researchCmd)
	researchCmd.Flags().String("image", "", "Image URL or path")
	researchCmd.Flags().String("audio", "", "Audio URL or path")
	researchCmd.Flags().String("document", "", "Document (PDF or text) URL or path")
	researchCmd.Flags().String("prompt", "", "Question about the inputs")

	addStoreFlags(summarizeCmd)
	summarizeCmd.Flags().Bool("skin", false, "Use the skin specialist model")
}

func runChat(cmd *cobra.Command, args []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	hospital, _ := cmd.Flags().GetString("hospital")
	category, _ := cmd.Flags().GetString("category")

	client, done, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	return client.ExpertChat(cmd.Context(), medinsight.ChatRequest{
		Query:      args[0],
		UserScope:  scope,
		HospitalID: hospital,
		Category:   category,
	}, stream.NewNDJSONWriter(cmd.OutOrStdout()))
}

func runResearch(cmd *cobra.Command, args []string) error {
	var req research.Request
	req.ImageRef, _ = cmd.Flags().GetString("image")
	req.AudioRef, _ = cmd.Flags().GetString("audio")
	req.DocumentRef, _ = cmd.Flags().GetString("document")
	req.Prompt, _ = cmd.Flags().GetString("prompt")

	client, done, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	return client.DeepResearch(cmd.Context(), req, stream.NewNDJSONWriter(cmd.OutOrStdout()))
}

func runSummarize(cmd *cobra.Command, args []string) error {
	skin, _ := cmd.Flags().GetBool("skin")

	client, done, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	return client.SummarizeReport(cmd.Context(), medinsight.SummaryRequest{
		ImageRef:       args[0],
		SkinSpecialist: skin,
	}, stream.NewNDJSONWriter(cmd.OutOrStdout()))
}
