// Package backfillcmder provides the `snipstash backfill` CLI command.
package backfillcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/backfill"
	"github.com/snipstash/snipstash/pkg/config"
	"github.com/snipstash/snipstash/pkg/dotdir"
	"github.com/snipstash/snipstash/pkg/embeddings"
	embeddingutils "github.com/snipstash/snipstash/pkg/embeddings/utils"
	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/storage/postgres"
	"github.com/snipstash/snipstash/pkg/storage/sqlite"
)

const backfillLongDesc string = `Re-embed snippets with missing or stale vectors.

Scans the snippet store for records that have no embedding (an embedding
provider failure at write time) or whose embedding came from a different
model version, recomputes their vectors and commits them. Records whose
text changes mid-run are skipped and picked up by the next run.

Examples:
  snipstash backfill
  snipstash backfill --dry-run
  snipstash backfill --sqlite ./snippets.db
  snipstash backfill --storage postgres --embedding-model nomic-embed-text`

const backfillShortDesc string = "Re-embed snippets with missing or stale vectors"

type backfillCommander struct {
	storageProvider   string
	sqlitePath        string
	postgresDSN       string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	dryRun            bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

var backfillFlags = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

// NewBackfillCmd creates the backfill cobra command.
func NewBackfillCmd() *cobra.Command {
	cmder := &backfillCommander{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: backfillShortDesc,
		Long:  backfillLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd)
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Report candidates without writing")

	return cmd
}

func (c *backfillCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.DefaultFlagSet(), backfillFlags)

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		Dimensions:   int(v.GetUint("embedding.dimensions")),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	store, err := c.newStore(v, embedder)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run mode — no changes will be written")
	}

	b := backfill.NewBackfiller(store, embedder, c.logger, backfill.Options{
		DryRun: c.dryRun,
	})

	result, err := b.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return nil
}

func (c *backfillCommander) newStore(v *viper.Viper, embedder embeddings.Embedder) (storage.Store, error) {
	switch provider := v.GetString("storage.provider"); provider {
	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			dir, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving snipstash directory: %w", err)
			}
			path = filepath.Join(dir, "snipstash.db")
		}
		return sqlite.NewStore(path, embedder, c.logger)

	case "postgres":
		return postgres.NewStore(v.GetString("storage.postgres_dsn"), embedder, c.logger)

	default:
		// A memory store has nothing persisted to backfill.
		return nil, fmt.Errorf("backfill requires a persistent store, got provider: %s", provider)
	}
}
