package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/platform/config"
	"github.com/pinaka-makhana/storefront/internal/platform/money"
	"github.com/pinaka-makhana/storefront/internal/platform/observability"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
	"github.com/pinaka-makhana/storefront/internal/restclient"
	"github.com/pinaka-makhana/storefront/internal/smoke"
)

func main() {
	baseURL := flag.String("base-url", "", "backend REST API base URL (defaults to STOREFRONT_BACKEND_BASE_URL)")
	scenario := flag.String("scenario", "all", "connection, cart, coupon or all")
	uniqueEmail := flag.Bool("unique-email", false, "register a fresh shopper instead of the default account")
	couponCode := flag.String("coupon", smoke.DefaultCouponCode, "coupon code for the coupon scenario")
	amount := flag.String("amount", "1000", "order amount in rupees for the coupon scenario")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("smoketest")

	target := strings.TrimSpace(*baseURL)
	if target == "" {
		target, err = config.BackendBaseURL()
		if err != nil {
			logger.Fatal("failed to read configuration", zap.Error(err))
		}
	}

	orderAmount, err := decimal.NewFromString(strings.TrimSpace(*amount))
	if err != nil {
		logger.Fatal("invalid --amount", zap.Error(err))
	}

	client, err := restclient.New(target,
		restclient.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		restclient.WithLogger(logger.Named("backend")),
	)
	if err != nil {
		logger.Fatal("invalid backend base url", zap.Error(err))
	}
	api := backend.New(client)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = requestctx.WithLogger(ctx, logger)

	shopper := smoke.DefaultShopper()
	if *uniqueEmail {
		shopper.Email = "smoke-" + uuid.NewString()[:8] + "@test.com"
	}

	switch *scenario {
	case "all", "connection", "cart", "coupon":
	default:
		logger.Fatal("unknown --scenario", zap.String("scenario", *scenario))
	}
	runAll := *scenario == "all"
	failed := false
	logger.Info("smoke run started", zap.String("backend", client.BaseURL()), zap.String("scenario", *scenario))

	if runAll || *scenario == "connection" {
		report, err := smoke.Connection(ctx, api, false)
		if err != nil {
			failed = true
			logger.Error("connection check failed", zap.Error(err), zap.Bool("backendDown", restclient.IsNetwork(err)))
		} else {
			logger.Info("connection ok", zap.Int("products", report.Products), zap.Bool("authResponds", report.AuthResponds))
		}
	}

	if runAll || *scenario == "cart" {
		report, err := smoke.RegisterLoginCart(ctx, api, shopper)
		for _, step := range report.Steps {
			logger.Debug("step", zap.String("name", step.Name), zap.Duration("duration", step.Duration), zap.String("detail", step.Detail))
		}
		if err != nil {
			failed = true
			var stepErr *smoke.StepError
			step := "unknown"
			if errors.As(err, &stepErr) {
				step = stepErr.Step
			}
			logger.Error("cart flow failed", zap.String("step", step), zap.Error(err))
		} else {
			logger.Info("cart flow ok", zap.String("shopper", observability.MaskEmail(shopper.Email)), zap.Int("steps", len(report.Steps)))
		}
	}

	if runAll || *scenario == "coupon" {
		quote, err := smoke.CouponTotal(ctx, api, *couponCode, orderAmount)
		if err != nil {
			failed = true
			logger.Error("coupon check failed", zap.String("code", *couponCode), zap.Error(err))
		} else {
			logger.Info("coupon ok",
				zap.String("code", quote.Code),
				zap.String("discount", money.FormatINR(quote.Discount)),
				zap.String("total", money.FormatINR(quote.Total)),
			)
		}
	}

	if failed {
		os.Exit(1)
	}
}
