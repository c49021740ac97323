package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/api"
	"github.com/BhargavCodes/ai-vault/internal/auth"
	"github.com/BhargavCodes/ai-vault/internal/logger"
	"github.com/BhargavCodes/ai-vault/internal/models"
)

func newStubCmd(rt *runtime) *cobra.Command {
	var (
		addr      string
		seedAdmin string
	)
	cmd := &cobra.Command{
		Use:         "stub",
		Short:       "Run an in-memory backend for local development",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.cfg
			log, err := logger.New(logger.Options{Debug: cfg.BasicConfig.Debug, Console: true})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			state := api.NewState()
			if seedAdmin != "" {
				name, password, ok := strings.Cut(seedAdmin, ":")
				if !ok || name == "" || password == "" {
					return fmt.Errorf("--seed-admin expects name:password")
				}
				if _, err := state.CreateUser(name, 30, password, models.UserRoleAdmin); err != nil {
					return fmt.Errorf("seed admin: %w", err)
				}
			}

			if !cfg.BasicConfig.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := api.NewHandler(state, auth.NewService(cfg.Stub.JWTSecret, cfg.StubTokenTTL()), log)
			if addr == "" {
				addr = cfg.Stub.Address
			}
			srv := &http.Server{Addr: addr, Handler: handler.Router()}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.Info("stub backend listening", zap.String("addr", addr))
			fmt.Fprintf(rt.out, "Stub backend listening on %s\n", addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (config stub.address when empty)")
	cmd.Flags().StringVar(&seedAdmin, "seed-admin", "", "create an admin account, name:password")
	return cmd
}
