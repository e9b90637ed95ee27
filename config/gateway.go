package config

import "time"

// GatewayConfig configures the upstream outpass management API client.
type GatewayConfig struct {
	// BaseURL is the root of the outpass API (e.g., "https://outpass-api.example.edu").
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	// Timeout bounds every upstream request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to gateway configuration values.
func (g *GatewayConfig) Sanitize() {
	if g.Timeout <= 0 {
		g.Timeout = 15 * time.Second
	}
}
