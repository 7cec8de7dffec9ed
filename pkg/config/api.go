package config

import "time"

// APIConfig configures the REST server. Enabled is a pointer so an omitted
// key means on while an explicit false turns the server off.
type APIConfig struct {
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Port    int   `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// WriteTimeout should exceed orchestrator.default_timeout, or slow
	// fan-outs are cut off mid-response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// RequestTimeout is enforced by the router's timeout middleware.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ApplyDefaults fills in zero values. A negative port is treated as unset.
func (c *APIConfig) ApplyDefaults() {
	if c.Port < 0 {
		c.Port = 0
	}
	c.Port = orDefault(c.Port, 8080)
	c.ReadTimeout = orDefault(c.ReadTimeout, 10*time.Second)
	c.WriteTimeout = orDefault(c.WriteTimeout, time.Minute)
	c.IdleTimeout = orDefault(c.IdleTimeout, time.Minute)
	c.RequestTimeout = orDefault(c.RequestTimeout, time.Minute)
}
