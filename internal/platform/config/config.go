package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultBasePath             = "/api"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 60 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultEnvironment          = "local"
	defaultBackendBaseURL       = "http://localhost:8081/api"
	defaultBackendTimeout       = 20 * time.Second
	defaultRazorpayKeyID        = "rzp_test_key"
	defaultPaytmMerchantID      = "test_merchant"
	defaultGooglePayMerchantID  = "12345678901234567890"
	defaultGooglePayEnvironment = "TEST"
	defaultUPIPayeeVPA          = "merchant@upi"
	defaultMerchantName         = "Pinaka Makhana Store"
	defaultMerchantURL          = "https://pinakamakhana.com"
	defaultRazorpayScriptURL    = "https://checkout.razorpay.com/v1/checkout.js"
	defaultGooglePayScriptURL   = "https://pay.google.com/gp/p/js/pay.js"
	defaultPaytmScriptBaseURL   = "https://securegw-stage.paytm.in/merchantpgpui/checkoutjs/merchants"
	defaultAttemptTTL           = 30 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = 15 * time.Minute
	defaultPaymentTopic         = "payment-events"
	defaultSecretsFallbackFile  = ".secrets.local"
)

// Config is the gateway runtime configuration grouped by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Backend     BackendConfig
	Payments    PaymentsConfig
	Idempotency IdempotencyConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Secrets     SecretsConfig
}

type ServerConfig struct {
	Port         string
	BasePath     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the storefront REST API every call funnels through.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PaymentsConfig holds merchant identifiers for the payment providers.
// Non-production fallbacks are applied when the environment leaves them unset.
type PaymentsConfig struct {
	RazorpayKeyID        string
	PaytmMerchantID      string
	GooglePayMerchantID  string
	GooglePayEnvironment string
	UPIPayeeVPA          string
	MerchantName         string
	MerchantURL          string
	RazorpayScriptURL    string
	GooglePayScriptURL   string
	PaytmScriptBaseURL   string
	AttemptTTL           time.Duration
}

type IdempotencyConfig struct {
	Header          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// FirestoreConfig enables the Firestore idempotency store when ProjectID is set.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig enables payment outcome publication when ProjectID is set.
type PubSubConfig struct {
	ProjectID    string
	PaymentTopic string
}

type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists every missing or invalid field.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failed secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved to empty values.
// Names are redacted in Error so the message is safe to log.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	redacted := make([]string, 0, len(e.names))
	for _, name := range e.names {
		redacted = append(redacted, redact(name))
	}
	sort.Strings(redacted)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(redacted, ", "))
}

func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the dotenv path; "" disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies explicit values that win over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "Payments.RazorpayKeyID") that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// Lookup returns a single value using the same precedence as Load
// (explicit map, then process environment, then dotenv).
func Lookup(key string, opts ...Option) (string, bool, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", false, err
	}
	value, ok := lookup(key)
	return value, ok, nil
}

// BackendBaseURL returns the backend base URL Load would use, without resolving
// secrets or validating the rest of the configuration.
func BackendBaseURL(opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", err
	}
	return stringWithDefault(lookup, "STOREFRONT_BACKEND_BASE_URL", defaultBackendBaseURL), nil
}

// Load reads the gateway configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := options.lookupFunc()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			BasePath:     stringWithDefault(lookup, "STOREFRONT_SERVER_BASE_PATH", defaultBasePath),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Backend: BackendConfig{
			BaseURL: stringWithDefault(lookup, "STOREFRONT_BACKEND_BASE_URL", defaultBackendBaseURL),
			Timeout: durationWithDefault(lookup, "STOREFRONT_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Payments: PaymentsConfig{
			RazorpayKeyID:        stringWithDefault(lookup, "STOREFRONT_RAZORPAY_KEY_ID", defaultRazorpayKeyID),
			PaytmMerchantID:      stringWithDefault(lookup, "STOREFRONT_PAYTM_MERCHANT_ID", defaultPaytmMerchantID),
			GooglePayMerchantID:  stringWithDefault(lookup, "STOREFRONT_GOOGLEPAY_MERCHANT_ID", defaultGooglePayMerchantID),
			GooglePayEnvironment: strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_GOOGLEPAY_ENVIRONMENT", defaultGooglePayEnvironment)),
			UPIPayeeVPA:          stringWithDefault(lookup, "STOREFRONT_UPI_PAYEE_VPA", defaultUPIPayeeVPA),
			MerchantName:         stringWithDefault(lookup, "STOREFRONT_MERCHANT_NAME", defaultMerchantName),
			MerchantURL:          stringWithDefault(lookup, "STOREFRONT_MERCHANT_URL", defaultMerchantURL),
			RazorpayScriptURL:    stringWithDefault(lookup, "STOREFRONT_RAZORPAY_SCRIPT_URL", defaultRazorpayScriptURL),
			GooglePayScriptURL:   stringWithDefault(lookup, "STOREFRONT_GOOGLEPAY_SCRIPT_URL", defaultGooglePayScriptURL),
			PaytmScriptBaseURL:   stringWithDefault(lookup, "STOREFRONT_PAYTM_SCRIPT_BASE_URL", defaultPaytmScriptBaseURL),
			AttemptTTL:           durationWithDefault(lookup, "STOREFRONT_PAYMENT_ATTEMPT_TTL", defaultAttemptTTL),
		},
		Idempotency: IdempotencyConfig{
			Header:          stringWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:             durationWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval: durationWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_PUBSUB_PROJECT_ID", ""),
			PaymentTopic: stringWithDefault(lookup, "STOREFRONT_PUBSUB_PAYMENT_TOPIC", defaultPaymentTopic),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "STOREFRONT_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		},
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Payments.RazorpayKeyID", &cfg.Payments.RazorpayKeyID},
		{"Payments.PaytmMerchantID", &cfg.Payments.PaytmMerchantID},
		{"Payments.GooglePayMerchantID", &cfg.Payments.GooglePayMerchantID},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	cfg.Server.BasePath = normalizeBasePath(cfg.Server.BasePath)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, name := range options.requiredSecrets {
		name = strings.TrimSpace(name)
		if name != "" && resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{names: missing}
	}

	return cfg, nil
}

// IsProduction reports whether non-production payment fallbacks must be rejected.
func (c Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
}

func (o loaderOptions) lookupFunc() (func(string) (string, bool), error) {
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "Backend.BaseURL")
	}
	if cfg.Backend.Timeout <= 0 {
		invalid = append(invalid, "Backend.Timeout")
	}
	if cfg.Payments.AttemptTTL <= 0 {
		invalid = append(invalid, "Payments.AttemptTTL")
	}
	switch cfg.Payments.GooglePayEnvironment {
	case "TEST", "PRODUCTION":
	default:
		invalid = append(invalid, "Payments.GooglePayEnvironment")
	}
	if cfg.IsProduction() {
		if cfg.Payments.RazorpayKeyID == defaultRazorpayKeyID {
			invalid = append(invalid, "Payments.RazorpayKeyID")
		}
		if cfg.Payments.PaytmMerchantID == defaultPaytmMerchantID {
			invalid = append(invalid, "Payments.PaytmMerchantID")
		}
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func normalizeBasePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return ""
	}
	return "/" + strings.Trim(path, "/")
}

func redact(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}
