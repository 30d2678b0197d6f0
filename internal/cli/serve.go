package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcbpeek/pcbpeek/internal/config"
	"github.com/pcbpeek/pcbpeek/internal/server"
	"github.com/pcbpeek/pcbpeek/pkg/cache"
	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
	"github.com/pcbpeek/pcbpeek/pkg/store"
)

// serveCommand creates the HTTP server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			rc := cache.Cache(cache.NewNullCache())
			if cfg.Cache.Dir != "" {
				rc, err = cache.NewFileCache(cfg.Cache.Dir)
				if err != nil {
					return fmt.Errorf("init render cache: %w", err)
				}
			}
			defer rc.Close()
			runner := pipeline.NewRunner(rc, nil, c.Logger)

			var st store.Store
			switch cfg.Store.Backend {
			case "redis":
				st, err = store.NewRedisStore(ctx, store.RedisConfig{
					Addr:     cfg.Store.RedisAddr,
					Password: cfg.Store.RedisPassword,
					DB:       cfg.Store.RedisDB,
				})
				if err != nil {
					return err
				}
			default:
				st = store.NewMemoryStore()
			}
			defer st.Close()

			var hist store.History = store.NullHistory{}
			if cfg.History.MongoURI != "" {
				mh, err := store.NewMongoHistory(ctx, store.MongoConfig{
					URI:        cfg.History.MongoURI,
					Database:   cfg.History.Database,
					Collection: cfg.History.Collection,
				})
				if err != nil {
					return err
				}
				defer mh.Close(ctx)
				hist = mh
				c.Logger.Info("history recording enabled", "database", cfg.History.Database)
			}

			srv := server.New(runner, st, hist, cfg, c.Logger)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
