// Package cli is the vault command line.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BhargavCodes/ai-vault/internal/app"
	"github.com/BhargavCodes/ai-vault/internal/config"
)

const skipApp = "skip-app"

// runtime is the state shared by one command invocation.
type runtime struct {
	configPath string
	backendURL string
	debug      bool

	cfg *config.Config
	app *app.App
	out    io.Writer
	in     io.Reader
	reader *bufio.Reader

	unsubscribe func()
}

// Execute runs the vault command tree against os.Args.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	rt := &runtime{in: in, out: out}
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	defer rt.close()
	return root.ExecuteContext(ctx)
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "vault",
		Short:         "AI document vault client",
		Long:          "vault uploads documents to the AI vault backend, runs analysis on them and chats about their contents.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if rt.backendURL != "" {
				cfg.BasicConfig.BackendURL = rt.backendURL
			}
			if rt.debug {
				cfg.BasicConfig.Debug = true
			}
			rt.cfg = cfg
			if cmd.Annotations[skipApp] != "" {
				return nil
			}
			a, err := app.Init(cmd.Context(), cfg, app.WithConsole())
			if err != nil {
				return err
			}
			rt.app = a
			rt.unsubscribe = a.Notifier.Subscribe(newPrinter(rt.out, cfg.BasicConfig.Debug).print)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", os.Getenv("VAULT_CONFIG"), "path to config file")
	root.PersistentFlags().StringVar(&rt.backendURL, "backend", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newSignupCmd(rt),
		newPasswordCmd(rt),
		newAvatarCmd(rt),
		newFilesCmd(rt),
		newAdminCmd(rt),
		newThemeCmd(rt),
		newStubCmd(rt),
	)
	return root
}

func (rt *runtime) close() {
	if rt.unsubscribe != nil {
		rt.unsubscribe()
		rt.unsubscribe = nil
	}
	if rt.app != nil {
		_ = rt.app.Close()
		rt.app = nil
	}
}

// requireLogin fails early when no session was restored.
func (rt *runtime) requireLogin() error {
	if !rt.app.Session.Snapshot().Authenticated() {
		return fmt.Errorf("not logged in; run `vault login` first")
	}
	return nil
}
