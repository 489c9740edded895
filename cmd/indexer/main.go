package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgPkg "github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/indexer"
	"github.com/kamillle/rag-sample/pkg/llm"
	"github.com/kamillle/rag-sample/pkg/loader"
	"github.com/kamillle/rag-sample/pkg/logger"
	"github.com/kamillle/rag-sample/pkg/processor"
	"github.com/kamillle/rag-sample/pkg/store"
)

type indexerCommander struct {
	configPath string
	sourceDir  string
	storageDir string
	debug      bool
	logger     *zap.Logger
}

const indexerLongDesc string = `Build the vector index of past answers.

Reads every supported document below the source directory, splits it into
nodes, embeds each node once and saves the index to the configured storage.
The previous index is left untouched if any step fails.`

const indexerShortDesc string = "Build the vector index of past answers"

func newIndexerCmd() *cobra.Command {
	cmder := &indexerCommander{}

	cmd := &cobra.Command{
		Use:           "indexer",
		Short:         indexerShortDesc,
		Long:          indexerLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&cmder.sourceDir, "source", "", "Source document directory (overrides config)")
	cmd.Flags().StringVar(&cmder.storageDir, "storage", "", "Index storage directory (overrides config)")
	cmd.Flags().BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newIndexerCmd().ExecuteContext(ctx); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func (c *indexerCommander) run(ctx context.Context) error {
	cfg, err := cfgPkg.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.sourceDir != "" {
		cfg.Source.Dir = c.sourceDir
	}
	if c.storageDir != "" {
		cfg.Storage.Dir = c.storageDir
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

	embedder, err := llm.NewEmbedder(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	indexStore, closeStore, err := store.Open(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize: cfg.Processor.ChunkSize,
	})

	var bar *progressbar.ProgressBar
	builder := indexer.NewBuilder(indexer.BuilderConfig{
		SourceDir: cfg.Source.Dir,
		RateLimit: cfg.Embedder.RateLimit,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total, "Embedding nodes...")
			}
			bar.Set(done)
		},
	}, loader.New(c.logger), &chunker, embedder, indexStore, c.logger)

	color.Blue("\nIndexing %s with %s\n", cfg.Source.Dir, embedder.Model())

	_, stats, err := builder.Build(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	color.Green("\n✓ Indexed %d documents into %d nodes (dimension %d) in %s\n",
		stats.Documents, stats.Nodes, stats.Dimension, stats.Elapsed.Round(time.Millisecond))
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetItsString("nodes"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
