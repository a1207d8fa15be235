package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zerotrust-lab/pep-go/internal/config"
	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/ids"
	"github.com/zerotrust-lab/pep-go/internal/keys"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
	"github.com/zerotrust-lab/pep-go/internal/pdp"
	"github.com/zerotrust-lab/pep-go/internal/server"
	"github.com/zerotrust-lab/pep-go/internal/store"
)

func cmdServe() *cobra.Command {
	var cfgPath string
	var logJSON bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the enforcement gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logJSON {
				slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := store.NewPostgres(ctx, cfg.DB.URL, cfg.DB.MaxConns)
			if err != nil {
				return err
			}
			defer db.Close()

			ks := keys.NewSource(cfg.JWKSURL(), keys.Options{
				CacheTTL:    cfg.IdP.JWKSCacheTTL,
				CacheMax:    cfg.IdP.JWKSCacheMax,
				FetchPerMin: cfg.IdP.JWKSPerMin,
			})

			rules := make([]netzone.Rule, 0, len(cfg.ZoneRules))
			for _, r := range cfg.ZoneRules {
				rules = append(rules, netzone.Rule{Prefix: r.Prefix, Zone: netzone.Zone(r.Zone)})
			}

			h := server.BuildRouter(server.Deps{
				Verifier: identity.NewVerifier(ks, cfg.AllowedIssuers()),
				IDS:      ids.NewClient(cfg.IDS.URL, cfg.IDS.Timeout),
				PDP:      pdp.NewClient(cfg.PDP.URL, cfg.PDP.Timeout),
				DB:       db,
				Zones:    netzone.NewClassifier(rules),
			}, server.Options{
				EnableCORS: true,
				StoreIP:    cfg.IDS.StoreIP,
				StorePort:  cfg.IDS.StorePort,
			})

			srv := &http.Server{Addr: cfg.Listen, Handler: h}

			slog.Info("pep listening",
				"addr", cfg.Listen, "pdp", cfg.PDP.URL, "ids", cfg.IDS.URL)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			})
			return g.Wait()
		},
	}
	c.Flags().StringVar(&cfgPath, "config", "", "config file path (optional, PEP_* env vars apply either way)")
	c.Flags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
	return c
}
