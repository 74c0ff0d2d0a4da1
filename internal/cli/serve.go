package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/server"
	"github.com/ppiankov/clarifai/internal/state"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the streaming analysis endpoint",
	Long: `Serve starts the HTTP server:
  POST /api/clarify   {"content": "..."} -> text/event-stream of step events
  GET  /api/graph     the pipeline topology as a Mermaid diagram
  GET  /healthz       liveness probe

Example:
  clarifai serve
  clarifai serve --addr :9000 --verification web`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := newLocalPipeline(cmd)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		runCfg := state.ConfigurationFrom(cfg)
		logger.Info("pipeline configured",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("verification", runCfg.ClaimVerificationSource),
			zap.Bool("cache", cfg.Cache.Enabled))

		return server.New(p, cfg.Server, runCfg, logger).ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	addRunFlags(serveCmd.Flags())
}
