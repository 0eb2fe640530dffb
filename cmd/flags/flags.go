package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/glideidentity/phone-auth-core/api"
	"github.com/glideidentity/phone-auth-core/common"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJSONFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUIDFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		AllowedOrigins:           cCtx.StringSlice(AllowedOriginsFlag.Name),
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:4567",
	Usage: "address to listen on for the phone-auth API",
}

var EnvFileFlag = &cli.StringFlag{
	Name:  "env-file",
	Value: "",
	Usage: "load environment variables from this file before reading flags",
}

var GlideAPIKeyFlag = &cli.StringFlag{
	Name:    "glide-api-key",
	Value:   "",
	Usage:   "API key for the identity provider",
	EnvVars: []string{"GLIDE_API_KEY"},
}

var GlideBaseURLFlag = &cli.StringFlag{
	Name:    "glide-base-url",
	Value:   "",
	Usage:   "override the identity provider base URL",
	EnvVars: []string{"GLIDE_BASE_URL"},
}

var GlideEnvHeaderFlag = &cli.StringFlag{
	Name:    "glide-env-header",
	Value:   "",
	Usage:   "value for the X-Glide-Environment header on status polls (sandbox deployments)",
	EnvVars: []string{"GLIDE_ENV"},
}

var AllowedOriginsFlag = &cli.StringSliceFlag{
	Name:  "allowed-origins",
	Usage: "origins allowed to call the API with credentials (CORS)",
}

var DefaultPLMNFlag = &cli.StringFlag{
	Name:  "default-plmn",
	Value: "310/260",
	Usage: "fallback carrier as MCC/MNC when GetPhoneNumber has no phone number; empty disables the fallback",
}

var SessionTTLFlag = &cli.DurationFlag{
	Name:  "session-ttl",
	Value: 5 * time.Minute,
	Usage: "lifetime of a session registry entry",
}

var SweepIntervalFlag = &cli.DurationFlag{
	Name:  "sweep-interval",
	Value: time.Minute,
	Usage: "how often expired registry entries are swept",
}

var ForceSecureCookiesFlag = &cli.BoolFlag{
	Name:  "force-secure-cookies",
	Value: false,
	Usage: "mark binding cookies Secure even when X-Forwarded-Proto is absent",
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJSONFlag,
	LogDebugFlag,
	LogUIDFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
