package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"poolpay/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	DatabaseURL     string
	JWTSigningKey   string
	TokenTTL        time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// RegistryRef names this deployment's own service registry. Pools
	// reference local services through it.
	RegistryRef domain.RegistryRef

	// ForeignRegistries maps registry refs to the base URLs of remote
	// deployments whose services can join local pools.
	ForeignRegistries map[domain.RegistryRef]string

	// AuditBuffer switches the audit publisher to a buffered async sink when
	// positive. Zero keeps the default synchronous commit-order emit.
	AuditBuffer int
}

var TokenTTL = 15 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("POOLPAY_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	environment := os.Getenv("POOLPAY_ENV")
	if environment == "" {
		environment = "development"
	}

	tokenTTL := TokenTTL
	if s := os.Getenv("TOKEN_TTL"); s != "" {
		if duration, err := time.ParseDuration(s); err == nil {
			tokenTTL = duration
		}
	}
	requestTimeout := 30 * time.Second
	if s := os.Getenv("REQUEST_TIMEOUT"); s != "" {
		if duration, err := time.ParseDuration(s); err == nil {
			requestTimeout = duration
		}
	}
	shutdownTimeout := 10 * time.Second
	if s := os.Getenv("SHUTDOWN_TIMEOUT"); s != "" {
		if duration, err := time.ParseDuration(s); err == nil {
			shutdownTimeout = duration
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	auditBuffer := 0
	if s := os.Getenv("POOLPAY_AUDIT_BUFFER"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			auditBuffer = n
		}
	}

	registryRef := domain.RegistryRef(os.Getenv("POOLPAY_REGISTRY_REF"))
	if registryRef == "" {
		registryRef = "local"
	}

	return Server{
		Addr:              addr,
		Environment:       environment,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSigningKey:     jwtSigningKey,
		TokenTTL:          tokenTTL,
		RequestTimeout:    requestTimeout,
		ShutdownTimeout:   shutdownTimeout,
		RegistryRef:       registryRef,
		ForeignRegistries: parseRegistries(os.Getenv("POOLPAY_FOREIGN_REGISTRIES")),
		AuditBuffer:       auditBuffer,
	}
}

// parseRegistries parses "ref=url,ref=url" pairs. Malformed pairs are skipped
// rather than failing startup.
func parseRegistries(raw string) map[domain.RegistryRef]string {
	registries := make(map[domain.RegistryRef]string)
	for pair := range strings.SplitSeq(raw, ",") {
		ref, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ref == "" || url == "" {
			continue
		}
		registries[domain.RegistryRef(ref)] = url
	}
	return registries
}
