// Command tokenward-probe validates a JWT from the command line and can run a
// one-shot refresh against a live exchange endpoint.
//
// Run:
//
//	go run ./cmd/tokenward-probe -token <JWT> -issuer https://auth.example.com -audience admin-console
//
//	# with a refresh round-trip and persisted pair
//	TOKENWARD_ENDPOINT=https://api.example.com/api/v2/user/refresh \
//	go run ./cmd/tokenward-probe -token <JWT> -refresh-token <RT> -do-refresh
//
// Redis is used for persistence when -redis-addr or TOKENWARD_REDIS_ADDR is
// set; otherwise an embedded miniredis instance is started.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	tokenward "github.com/tokenward/tokenward"
	"github.com/tokenward/tokenward/metrics/export/prometheus"
)

type probeEnv struct {
	RedisAddr string `envconfig:"REDIS_ADDR"`
	Endpoint  string `envconfig:"ENDPOINT"`
	Issuer    string `envconfig:"ISSUER"`
	Audience  string `envconfig:"AUDIENCE"`
}

func main() {
	var env probeEnv
	if err := envconfig.Process("tokenward", &env); err != nil {
		fmt.Fprintf(os.Stderr, "reading environment failed: %v\n", err)
		os.Exit(2)
	}

	var (
		accessToken  = flag.String("token", "", "access token to validate (required)")
		refreshToken = flag.String("refresh-token", "", "refresh token for the exchange endpoint")
		endpoint     = flag.String("endpoint", env.Endpoint, "refresh exchange endpoint URL")
		issuer       = flag.String("issuer", env.Issuer, "expected issuer claim")
		audience     = flag.String("audience", env.Audience, "expected audience claim")
		redisAddr    = flag.String("redis-addr", env.RedisAddr, "redis address; empty starts embedded miniredis")
		doRefresh    = flag.Bool("do-refresh", false, "run a one-shot refresh after validating")
		showMetrics  = flag.Bool("metrics", false, "print the metrics snapshot on exit")
		timeout      = flag.Duration("timeout", 10*time.Second, "refresh request timeout")
	)
	flag.Parse()

	if *accessToken == "" {
		fmt.Fprintln(os.Stderr, "-token is required")
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := *redisAddr
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Fatal("starting miniredis failed", zap.Error(err))
		}
		addr = mr.Addr()
		cleanup = mr.Close
		logger.Info("using embedded miniredis", zap.String("addr", addr))
	} else {
		cleanup = func() {}
		logger.Info("using redis", zap.String("addr", addr))
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	cfg := tokenward.DefaultConfig()
	cfg.Validator.ExpectedIssuer = *issuer
	cfg.Validator.ExpectedAudience = *audience
	cfg.Validator.ValidateIssuer = *issuer != ""
	cfg.Validator.ValidateAudience = *audience != ""
	cfg.Refresh.Timeout = *timeout
	if *endpoint != "" {
		cfg.Refresh.Endpoint = *endpoint
	}
	cfg.Lifecycle.PersistOnRefresh = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	keeper, err := tokenward.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Fatal("building keeper failed", zap.Error(err))
	}
	defer func() { _ = keeper.Close() }()

	ctx := context.Background()

	result := keeper.Validator().Validate(*accessToken)
	printResult(result)

	if !result.IsValid && tokenward.ShouldForceReauth(result.ErrorKind) && !*doRefresh {
		logger.Warn("token requires re-authentication", zap.String("kind", result.ErrorKind.String()))
	}

	if *doRefresh {
		if *refreshToken == "" {
			logger.Fatal("-do-refresh requires -refresh-token")
		}

		outcome, err := keeper.RefreshTokens(ctx, *refreshToken)
		if err != nil {
			logger.Fatal("refresh failed", zap.Error(err))
		}
		if !outcome.Succeeded {
			logger.Fatal("refresh rejected", zap.String("error", outcome.ErrorMessage))
		}

		logger.Info("refresh succeeded",
			zap.Duration("expires_in", outcome.ExpiresIn),
			zap.Bool("rotated_refresh_token", outcome.RefreshToken != ""),
		)

		refreshed := keeper.Validator().Validate(outcome.AccessToken)
		printResult(refreshed)
	}

	if *showMetrics {
		exporter := prometheus.NewPrometheusExporter(keeper)
		fmt.Print(exporter.Render())
	}
}

func printResult(result tokenward.ValidationResult) {
	fmt.Printf("valid:          %v\n", result.IsValid)
	fmt.Printf("error kind:     %s\n", result.ErrorKind)
	fmt.Printf("expired:        %v\n", result.IsExpired)
	fmt.Printf("needs refresh:  %v\n", result.NeedsRefresh)
	fmt.Printf("time to expiry: %s\n", result.TimeToExpiry)
	if result.Payload != nil {
		fmt.Printf("subject:        %s\n", result.Payload.Subject)
		fmt.Printf("issuer:         %s\n", result.Payload.Issuer)
		fmt.Printf("audience:       %s\n", result.Payload.Audience)
		fmt.Printf("email:          %s\n", result.Payload.Email)
		fmt.Printf("session id:     %s\n", result.Payload.SessionID)
	}
	fmt.Println()
}
