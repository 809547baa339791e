package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexis/internal/adapters/driving/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval and answers over HTTP",
	Long: `Starts a JSON HTTP API on the given address:

  GET  /health            service and index status
  POST /api/v1/retrieve   {"question": "...", "k": 5}
  POST /api/v1/answer     {"question": "...", "attachment": {...}, "history": [...]}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	r, err := currentRuntime()
	if err != nil {
		return err
	}

	retrieval, err := r.Retrieval(cmd.Context())
	if err != nil {
		return err
	}
	answers, err := r.Answers(cmd.Context())
	if err != nil {
		return err
	}

	server, err := api.NewServer(&api.Ports{
		Retrieval: retrieval,
		Answers:   answers,
		Index:     r,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Listening on %s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
