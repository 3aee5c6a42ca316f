// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/petra-storage/petra/pkg/gateway/api"
	"github.com/petra-storage/petra/pkg/gateway/filter"
	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/store"
	"github.com/petra-storage/petra/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type GatewayServerOpts struct {
	IP        string
	HTTPPort  int
	DebugPort int
	LogLevel  string

	DataDir string

	RootAccessKey   string
	RootSecretKey   string
	RootAccountID   string
	RootDisplayName string
	RootEmail       string

	RateLimitEnabled bool
	RateLimitBurst   int
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the S3 gateway server",
	Long: `Start a Petra gateway server that handles:
- S3-compatible REST API with Signature V2 authentication
- Bucket and object ACL evaluation
- Local metadata/object storage`,
	Run: runGatewayServer,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)

	f := gatewayCmd.Flags()
	f.String("ip", "0.0.0.0", "IP address to bind to")
	f.Int("http_port", 8080, "HTTP port for the S3 API")
	f.Int("debug_port", 8081, "Debug HTTP port (metrics, health)")
	f.String("log_level", "info", "Log level (debug, info, warn, error, fatal)")

	f.String("data_dir", "/tmp/petra/data", "Directory for the metadata/object store")

	f.String("root_access_key", "", "Access key of the seeded root user")
	f.String("root_secret_key", "", "Secret key of the seeded root user (use env var PETRA_ROOT_SECRET_KEY)")
	f.String("root_account_id", "petra-root", "Canonical account id of the root user")
	f.String("root_display_name", "root", "Display name of the root user")
	f.String("root_email", "", "Email address of the root user")

	f.Bool("rate_limit_enabled", true, "Enable request rate limiting")
	f.Int("rate_limit_burst", 50, "Burst size for rate limiting")

	viper.BindPFlags(f)
}

func runGatewayServer(cmd *cobra.Command, args []string) {
	utils.LoadConfiguration("gateway", false)
	opts := loadGatewayOpts(cmd)

	if level, err := zerolog.ParseLevel(opts.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	backend, err := store.OpenLevelDB(opts.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Str("data_dir", opts.DataDir).Msg("failed to open store")
	}
	defer backend.Close()

	iamManager := iam.NewManager(seedCredentials(cmd.Context(), opts))

	chain := filter.NewChain()
	authnFilter := filter.NewAuthenticationFilter(iamManager)
	authzFilter := filter.NewAuthorizationFilter(backend)
	chain.AddFilter(filter.NewRequestIDFilter())
	chain.AddFilter(filter.NewParserFilter())
	if opts.RateLimitEnabled {
		rateLimitCfg := filter.DefaultRateLimitConfig()
		rateLimitCfg.Burst = opts.RateLimitBurst
		chain.AddFilter(filter.NewRateLimitFilter(rateLimitCfg))
	}
	chain.AddFilter(authnFilter)
	chain.AddFilter(authzFilter)

	gateway := api.NewGateway(backend, iamManager, chain)

	registry := prometheus.NewRegistry()
	registry.MustRegister(chain.Collectors()...)
	registry.MustRegister(authnFilter.Collectors()...)
	registry.MustRegister(authzFilter.Collectors()...)
	registry.MustRegister(gateway.Collectors()...)

	debugMux := http.NewServeMux()
	debugMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	debugMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := startHTTPServer(gateway, opts.IP, opts.HTTPPort)
	debugServer := startHTTPServer(debugMux, opts.IP, opts.DebugPort)

	waitForShutdown()

	httpServer.Shutdown(cmd.Context())
	debugServer.Shutdown(cmd.Context())
}

func loadGatewayOpts(cmd *cobra.Command) GatewayServerOpts {
	f := NewFlagLoader(cmd)

	return GatewayServerOpts{
		IP:        f.String("ip"),
		HTTPPort:  f.Int("http_port"),
		DebugPort: f.Int("debug_port"),
		LogLevel:  f.String("log_level"),

		DataDir: f.String("data_dir"),

		RootAccessKey:   f.String("root_access_key"),
		RootSecretKey:   f.String("root_secret_key"),
		RootAccountID:   f.String("root_account_id"),
		RootDisplayName: f.String("root_display_name"),
		RootEmail:       f.String("root_email"),

		RateLimitEnabled: f.Bool("rate_limit_enabled"),
		RateLimitBurst:   f.Int("rate_limit_burst"),
	}
}

// seedCredentials builds the credential directory. Without a configured
// root user the gateway still serves anonymous traffic against public ACLs.
func seedCredentials(ctx context.Context, opts GatewayServerOpts) *iam.MemoryStore {
	credStore := iam.NewMemoryStore()

	if opts.RootAccessKey == "" || opts.RootSecretKey == "" {
		logger.Warn().Msg("no root credentials configured, only anonymous access is possible")
		return credStore
	}

	root := &iam.Identity{
		Name: opts.RootDisplayName,
		Account: &iam.Account{
			ID:           opts.RootAccountID,
			DisplayName:  opts.RootDisplayName,
			EmailAddress: opts.RootEmail,
		},
		Credentials: []*iam.Credential{
			{AccessKey: opts.RootAccessKey, SecretKey: opts.RootSecretKey},
		},
	}
	if err := credStore.CreateUser(ctx, root); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed root user")
	}
	logger.Info().Str("access_key", opts.RootAccessKey).Msg("seeded root user")

	return credStore
}

func startHTTPServer(handler http.Handler, ip string, port int) *http.Server {
	listener, err := net.Listen("tcp", utils.JoinHostPort(ip, port))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create HTTP listener")
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		logger.Info().Str("http_addr", utils.JoinHostPort(ip, port)).Msg("Starting HTTP server")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()
	return httpServer
}

func waitForShutdown() {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-stopChan
}
