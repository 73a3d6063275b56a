// Package servecmder provides the serve command that runs the snipstash API
// server, wiring the configured store, embedder, matcher and event publisher.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/api"
	"github.com/snipstash/snipstash/api/mcp"
	"github.com/snipstash/snipstash/pkg/config"
	"github.com/snipstash/snipstash/pkg/dotdir"
	"github.com/snipstash/snipstash/pkg/embeddings"
	embeddingutils "github.com/snipstash/snipstash/pkg/embeddings/utils"
	"github.com/snipstash/snipstash/pkg/eventstream"
	"github.com/snipstash/snipstash/pkg/eventstream/kafka"
	"github.com/snipstash/snipstash/pkg/eventstream/nop"
	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/search"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/storage/inmemory"
	"github.com/snipstash/snipstash/pkg/storage/postgres"
	"github.com/snipstash/snipstash/pkg/storage/sqlite"
	"github.com/snipstash/snipstash/pkg/vector"
	"github.com/snipstash/snipstash/pkg/vector/bruteforce"
	"github.com/snipstash/snipstash/pkg/vector/qdrant"
	"github.com/snipstash/snipstash/pkg/vector/sqlitevec"
)

const serveLongDesc string = `Run the snipstash API server.

Backends are selected through config, environment or flags:
  snipstash serve
  snipstash serve --storage sqlite --sqlite ./snippets.db
  snipstash serve --matcher qdrant --qdrant-addr localhost:6334
  snipstash serve --embedding-provider hashed --events-provider kafka`

const serveShortDesc string = "Run the snipstash API server"

type ServeCommander struct {
	listen            string
	storageProvider   string
	sqlitePath        string
	postgresDSN       string
	matcherProvider   string
	qdrantAddr        string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	eventsProvider    string
	kafkaBrokers      string

	configDir string
	debug     bool
	logger    *zap.Logger
}

// serveFlags are the registry keys the serve command registers and binds.
var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagMatcherProvider,
	config.FlagQdrantAddr,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagMatcherProvider, &cmder.matcherProvider)
	config.AddStringFlag(cmd, fs, config.FlagQdrantAddr, &cmder.qdrantAddr)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, fs, config.FlagKafkaBrokers, &cmder.kafkaBrokers)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.DefaultFlagSet(), serveFlags)

	ctx := cmd.Context()

	embedder, err := c.newEmbedder(v)
	if err != nil {
		return err
	}
	defer embedder.Close()

	store, err := c.newStore(v, embedder)
	if err != nil {
		return err
	}
	defer store.Close()

	index, matcher, err := c.newMatcher(ctx, v, store)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	publisher, err := c.newPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	searcher := search.NewSearcher(embedder, store, matcher, c.logger)

	apiServer := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, store, searcher, publisher, index, c.logger)

	c.logger.Info("starting api server",
		zap.String("listen", v.GetString("api.listen")),
		zap.String("storage", v.GetString("storage.provider")),
		zap.String("matcher", v.GetString("matcher.provider")),
		zap.String("embedding_model", embedder.ModelVersion()),
	)

	// Channel to capture errors from server goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if v.GetBool("mcp.enabled") {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Searcher: searcher,
			Logger:   c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}

		httpServer := &http.Server{
			Addr:    v.GetString("mcp.listen"),
			Handler: mcpServer.Handler(),
		}
		defer httpServer.Close()

		c.logger.Info("starting mcp server",
			zap.String("listen", v.GetString("mcp.listen")),
		)

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("MCP server error: %w", err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) newEmbedder(v *viper.Viper) (embeddings.Embedder, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		Dimensions:   int(v.GetUint("embedding.dimensions")),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

func (c *ServeCommander) newStore(v *viper.Viper, embedder embeddings.Embedder) (storage.Store, error) {
	switch provider := v.GetString("storage.provider"); provider {
	case "memory":
		c.logger.Info("using in-memory snippet store")
		return inmemory.NewStore(embedder, c.logger), nil

	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			var err error
			path, err = c.dotdirPath("snipstash.db")
			if err != nil {
				return nil, err
			}
		}
		c.logger.Info("using sqlite snippet store", zap.String("path", path))
		return sqlite.NewStore(path, embedder, c.logger)

	case "postgres":
		return postgres.NewStore(v.GetString("storage.postgres_dsn"), embedder, c.logger)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}

// newMatcher builds the search matcher. Index backends are hydrated from the
// store's vectors at startup so the index never outlives its records.
func (c *ServeCommander) newMatcher(ctx context.Context, v *viper.Viper, store storage.Store) (vector.Index, search.Matcher, error) {
	dims := v.GetUint("embedding.dimensions")

	switch provider := v.GetString("matcher.provider"); provider {
	case "builtin":
		return nil, search.NewStoreMatcher(store, bruteforce.NewRanker()), nil

	case "sqlitevec":
		path := v.GetString("matcher.sqlite_path")
		if path == "" {
			var err error
			path, err = c.dotdirPath("vectors.db")
			if err != nil {
				return nil, nil, err
			}
		}
		index, err := sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     path,
			Dimensions: dims,
		}, c.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating sqlite-vec index: %w", err)
		}
		if err := c.hydrateIndex(ctx, index, store); err != nil {
			index.Close()
			return nil, nil, err
		}
		return index, search.NewIndexMatcher(index), nil

	case "qdrant":
		index, err := qdrant.NewIndex(ctx, qdrant.Config{
			Addr:       v.GetString("matcher.qdrant_addr"),
			Collection: v.GetString("matcher.qdrant_collection"),
			Dimensions: dims,
		}, c.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating qdrant index: %w", err)
		}
		if err := c.hydrateIndex(ctx, index, store); err != nil {
			index.Close()
			return nil, nil, err
		}
		return index, search.NewIndexMatcher(index), nil

	default:
		return nil, nil, fmt.Errorf("unsupported matcher provider: %s", provider)
	}
}

func (c *ServeCommander) hydrateIndex(ctx context.Context, index vector.Index, store storage.Store) error {
	candidates, err := store.AllVectors(ctx)
	if err != nil {
		return fmt.Errorf("reading vectors for index hydration: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}
	if err := index.Add(ctx, candidates); err != nil {
		return fmt.Errorf("hydrating index: %w", err)
	}

	c.logger.Info("hydrated vector index", zap.Int("vectors", len(candidates)))
	return nil
}

func (c *ServeCommander) newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(v.GetStringSlice("events.brokers")),
			Topic:   v.GetString("events.topic"),
		}, c.logger)

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", provider)
	}
}

// splitBrokers normalizes broker lists that arrive either as a TOML array or
// as a single comma-separated flag/env value.
func splitBrokers(raw []string) []string {
	var brokers []string
	for _, entry := range raw {
		for _, b := range strings.Split(entry, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	return brokers
}

func (c *ServeCommander) dotdirPath(filename string) (string, error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return "", fmt.Errorf("resolving snipstash directory: %w", err)
	}
	return filepath.Join(dir, filename), nil
}
