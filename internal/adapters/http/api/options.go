package api

import (
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// defaultMaxBodyBytes caps webhook bodies when no limit is configured.
const defaultMaxBodyBytes int64 = 1 << 20

// Option applies a configuration option to the Server.
type Option func(*config)

type config struct {
	webhookSecrets map[model.SourceSystem]string
	webhookTenants map[model.SourceSystem]string
	sessionSecret  []byte
	maxBodyBytes   int64
	logger         logger.Logger
}

func newConfig(opts []Option) config {
	c := config{
		webhookSecrets: map[model.SourceSystem]string{},
		webhookTenants: map[model.SourceSystem]string{},
		maxBodyBytes:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("api")
	}
	return c
}

// WithWebhookSecrets sets the shared secret expected from each source.
// Sources without a secret reject every delivery.
func WithWebhookSecrets(secrets map[model.SourceSystem]string) Option {
	return func(c *config) {
		for src, s := range secrets {
			c.webhookSecrets[src] = s
		}
	}
}

// WithWebhookTenants sets the organization each source ingests under.
func WithWebhookTenants(tenants map[model.SourceSystem]string) Option {
	return func(c *config) {
		for src, t := range tenants {
			c.webhookTenants[src] = t
		}
	}
}

// WithSessionSecret sets the HS256 key used to verify session tokens.
func WithSessionSecret(secret []byte) Option {
	return func(c *config) {
		c.sessionSecret = secret
	}
}

// WithMaxBodyBytes caps the size of a webhook body.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
