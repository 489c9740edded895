package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgPkg "github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/llm"
	"github.com/kamillle/rag-sample/pkg/logger"
	"github.com/kamillle/rag-sample/pkg/rag"
	"github.com/kamillle/rag-sample/pkg/retriever"
	"github.com/kamillle/rag-sample/pkg/store"
	"github.com/kamillle/rag-sample/pkg/synth"
	"github.com/kamillle/rag-sample/server"
)

type serverCommander struct {
	configPath string
	addr       string
	debug      bool
	logger     *zap.Logger
}

const serverLongDesc string = `Serve the past-answer QA web service.

Loads the persisted index once at startup, then answers questions posted to
/ask (and over the /ws websocket) from the past answers most similar to them.`

const serverShortDesc string = "Serve the past-answer QA web service"

func newServerCmd() *cobra.Command {
	cmder := &serverCommander{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         serverShortDesc,
		Long:          serverLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&cmder.addr, "addr", "a", "", "Address to listen on (overrides config)")
	cmd.Flags().BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newServerCmd().ExecuteContext(ctx); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func (c *serverCommander) run(ctx context.Context) error {
	cfg, err := cfgPkg.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("  %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	c.logger = logger.New(logger.Options{
		Debug:  c.debug || cfg.Log.Debug,
		Format: cfg.Log.Format,
	})
	defer c.logger.Sync()

	engine, err := c.newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{Addr: cfg.Server.Addr}, engine, c.logger)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// newEngine loads the index and wires the query pipeline. It must finish
// before the server accepts requests.
func (c *serverCommander) newEngine(ctx context.Context, cfg *cfgPkg.Config) (*rag.Engine, error) {
	indexStore, closeStore, err := store.Open(ctx, cfg, c.logger)
	if err != nil {
		return nil, err
	}
	idx, err := indexStore.Load(ctx)
	closeStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	embedder, err := llm.NewEmbedder(cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if idx.Model() != "" && idx.Model() != embedder.Model() {
		c.logger.Warn("index was built with a different embedding model",
			zap.String("index_model", idx.Model()),
			zap.String("embedder_model", embedder.Model()),
		)
	}

	completer, err := llm.NewCompleter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}

	templates, err := synth.LoadTemplates(cfg.Server.QATemplateFile, cfg.Server.RefineTemplateFile)
	if err != nil {
		return nil, err
	}

	r, err := retriever.New(retriever.RetrieverConfig{
		TopK:             cfg.Retrieval.TopK,
		SimilarityCutoff: cfg.Retrieval.SimilarityCutoff,
	}, embedder, idx, c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Info("index loaded",
		zap.String("index_id", idx.ID()),
		zap.Int("nodes", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
		zap.Int("top_k", cfg.Retrieval.TopK),
		zap.Float32("similarity_cutoff", cfg.Retrieval.SimilarityCutoff),
	)

	refiner := synth.NewRefiner(completer, templates, c.logger)
	return rag.New(rag.ConfigFromConfig(cfg), r, refiner, c.logger), nil
}
