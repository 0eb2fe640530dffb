package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/glideidentity/phone-auth-core/api"
	"github.com/glideidentity/phone-auth-core/cmd/flags"
	"github.com/glideidentity/phone-auth-core/common"
	"github.com/glideidentity/phone-auth-core/httpserver"
	"github.com/glideidentity/phone-auth-core/provider"
	"github.com/glideidentity/phone-auth-core/registry"
	"github.com/glideidentity/phone-auth-core/statusproxy"
)

var appFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.EnvFileFlag,
	flags.GlideAPIKeyFlag,
	flags.GlideBaseURLFlag,
	flags.GlideEnvHeaderFlag,
	flags.AllowedOriginsFlag,
	flags.DefaultPLMNFlag,
	flags.SessionTTLFlag,
	flags.SweepIntervalFlag,
	flags.ForceSecureCookiesFlag,
	flags.LogServiceFlagFn(common.PackageName),
}, flags.CommonFlags...)

func main() {
	// A local .env is picked up when present; explicit --env-file wins.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "authserver",
		Usage: "Serve the carrier phone-auth session API",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			if envFile := cCtx.String(flags.EnvFileFlag.Name); envFile != "" {
				if err := godotenv.Overload(envFile); err != nil {
					return fmt.Errorf("loading env file %s: %w", envFile, err)
				}
			}

			logger := flags.SetupLogger(cCtx)

			apiKey := cCtx.String(flags.GlideAPIKeyFlag.Name)
			if apiKey == "" {
				apiKey = os.Getenv("GLIDE_API_KEY")
			}
			if apiKey == "" {
				logger.Warn("No provider API key configured, auth calls will fail until one is set")
			}

			providerOpts := []provider.Option{}
			if baseURL := cCtx.String(flags.GlideBaseURLFlag.Name); baseURL != "" {
				providerOpts = append(providerOpts, provider.WithBaseURL(baseURL))
			}
			providerClient := provider.NewHTTPClient(apiKey, providerOpts...)

			defaultPLMN, err := parsePLMN(cCtx.String(flags.DefaultPLMNFlag.Name))
			if err != nil {
				return err
			}

			reg := registry.New(cCtx.Duration(flags.SessionTTLFlag.Name), cCtx.Duration(flags.SweepIntervalFlag.Name), logger)
			reg.Start()
			defer reg.Stop()

			proxyOpts := []statusproxy.Option{}
			if env := cCtx.String(flags.GlideEnvHeaderFlag.Name); env != "" {
				proxyOpts = append(proxyOpts, statusproxy.WithEnvironmentHeader(env))
			}
			proxy := statusproxy.New(reg, logger, proxyOpts...)

			handler, err := httpserver.NewHandler(providerClient, reg, proxy, logger, httpserver.HandlerConfig{
				DefaultPLMN:        defaultPLMN,
				ForceSecureCookies: cCtx.Bool(flags.ForceSecureCookiesFlag.Name),
			})
			if err != nil {
				logger.Error("Failed to create handler", "err", err)
				return err
			}

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// parsePLMN parses "MCC/MNC". Empty input disables the fallback.
func parsePLMN(s string) (*api.PLMN, error) {
	if s == "" {
		return nil, nil
	}
	mcc, mnc, ok := strings.Cut(s, "/")
	if !ok || mcc == "" || mnc == "" {
		return nil, fmt.Errorf("invalid default-plmn %q, expected MCC/MNC", s)
	}
	return &api.PLMN{MCC: mcc, MNC: mnc}, nil
}
