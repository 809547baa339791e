package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

var (
	retrieveK    int
	retrieveJSON bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Show the passages most similar to a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "k", "k", 0, "number of passages (0 = configured default)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output passages as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}
	retrieval, err := r.Retrieval(cmd.Context())
	if err != nil {
		return err
	}

	chunks, err := retrieval.Retrieve(cmd.Context(), args[0], retrieveK)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return outputPassagesJSON(cmd, chunks)
	}
	outputPassages(cmd, chunks)
	return nil
}

type passageJSON struct {
	ChunkID  string  `json:"chunk_id"`
	Source   string  `json:"source"`
	Sequence int     `json:"sequence"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

func outputPassagesJSON(cmd *cobra.Command, chunks []domain.RetrievedChunk) error {
	out := make([]passageJSON, len(chunks))
	for i, rc := range chunks {
		out[i] = passageJSON{
			ChunkID:  rc.Chunk.ID,
			Source:   rc.Chunk.Source(),
			Sequence: rc.Chunk.SequenceIndex,
			Score:    rc.Score,
			Content:  rc.Chunk.Content,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal passages: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputPassages(cmd *cobra.Command, chunks []domain.RetrievedChunk) {
	if len(chunks) == 0 {
		cmd.Println("No passages found.")
		return
	}

	for i, rc := range chunks {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, sourceName(rc.Chunk), rc.Chunk.SequenceIndex, rc.Score)
		cmd.Printf("      %s\n\n", snippet(rc.Chunk.Content, 240))
	}
}

func sourceName(c domain.Chunk) string {
	if s := c.Source(); s != "" {
		return s
	}
	return c.DocumentID
}

// snippet collapses whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
