package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"relay.dev/relay/internal/admin"
	"relay.dev/relay/internal/config"
	"relay.dev/relay/internal/event"
	"relay.dev/relay/internal/proxy"
	"relay.dev/relay/internal/ratelimit"
)

var (
	cfgFile   string
	debug     bool
	adminAddr string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "A transparent reverse proxy for the Minecraft Java Edition protocol",
	RunE:  run,
}

// Execute is the cmd/relay entry point's only export.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "path to config.yml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable development-mode console logging")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "admin-addr", "", "loopback address for the admin introspection endpoint (disabled if empty)")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("admin-addr", rootCmd.PersistentFlags().Lookup("admin-addr"))
}

const banner = `  ___      _
 | _ \___ | |__ _ _  _
 |   / -_)| / _' | || |
 |_|_\___||_\__,_|\_, |
                  |__/   minecraft reverse proxy`

func run(_ *cobra.Command, _ []string) error {
	if err := initLogger(debug); err != nil {
		return fmt.Errorf("relay: initializing logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	color.Cyan.Println(banner)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		zap.L().Fatal("failed to load config", zap.String("path", cfgFile), zap.Error(err))
	}

	bus := event.NewBus()
	// Five logins per minute per source IP after an initial burst of ten;
	// see internal/ratelimit for the mcplaynetwork-gate-arm precedent this
	// follows.
	limiter := ratelimit.New(rate.Every(12*time.Second), 10, 10*time.Minute)
	p := proxy.New(cfg, bus, limiter)

	var adminSrv *admin.Server
	if adminAddr != "" {
		adminSrv = admin.New(adminAddr, p)
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				zap.L().Error("admin endpoint stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s, ok := <-sig
		if !ok {
			return
		}
		zap.L().Info("received signal, shutting down", zap.String("signal", s.String()))
		cancel()
		if adminSrv != nil {
			_ = adminSrv.Shutdown()
		}
	}()
	defer func() { signal.Stop(sig); close(sig) }()

	zap.L().Info("relay starting", zap.String("listen", cfg.ListenAddress()))
	if err := p.Run(ctx); err != nil {
		zap.L().Error("proxy stopped", zap.Error(err))
		return err
	}
	return nil
}

func initLogger(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	return nil
}
