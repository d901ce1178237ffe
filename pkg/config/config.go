// Package config holds the small set of knobs ImmAgent's persistence and
// advance layers need from their caller: pool sizing and per-call
// defaults. It intentionally carries no file or flag parsing — this is a
// library, and the caller's own configuration system (viper, env vars,
// whatever it already uses) is the right place to source these values
// from before handing them to Connect/Advance.
package config

import (
	"time"

	"github.com/immagent/immagent/pkg/asset"
)

// PoolConfig sizes the persistence layer's connection pool, mapped
// directly onto pgxpool's MinConns/MaxConns/MaxConnIdleTime knobs.
type PoolConfig struct {
	MinSize                       int32
	MaxSize                       int32
	MaxInactiveConnectionLifetime time.Duration
}

// DefaultPoolConfig returns a small pool: at least one and at most ten
// connections, with idle connections closed after 30 minutes.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:                       1,
		MaxSize:                       10,
		MaxInactiveConnectionLifetime: 30 * time.Minute,
	}
}

// AdvanceOptions configures one call to the advance engine. Zero values
// are replaced by DefaultAdvanceOptions' defaults by the engine.
type AdvanceOptions struct {
	MaxRetries      int
	TimeoutSeconds  int
	MaxToolRounds   int
	ModelConfig     map[string]any // shallow-merged over the agent's stored ModelConfig
}

// DefaultAdvanceOptions returns the default retry/timeout/round-count
// budget for one Advance call.
func DefaultAdvanceOptions() AdvanceOptions {
	return AdvanceOptions{
		MaxRetries:     3,
		TimeoutSeconds: 120,
		MaxToolRounds:  10,
	}
}

// ProviderConfig names the model a new root agent should be created with
// and the raw, loosely-typed knob bag a caller read from its own config
// source (a flag, a config file, an env var passthrough). Decode turns
// that bag into a typed asset.ModelConfig via the same mapstructure path
// SaveBundle's ModelConfig field round-trips through.
type ProviderConfig struct {
	Model       string
	ModelConfig map[string]any
}

// Decode validates c.ModelConfig against the recognized provider knobs,
// preserving anything unrecognized in ModelConfig.Extra.
func (c ProviderConfig) Decode() (asset.ModelConfig, error) {
	return asset.ModelConfigFromMap(c.ModelConfig)
}

// WithDefaults fills any zero-valued field of opts from DefaultAdvanceOptions.
func (opts AdvanceOptions) WithDefaults() AdvanceOptions {
	d := DefaultAdvanceOptions()
	if opts.MaxRetries == 0 {
		opts.MaxRetries = d.MaxRetries
	}
	if opts.TimeoutSeconds == 0 {
		opts.TimeoutSeconds = d.TimeoutSeconds
	}
	if opts.MaxToolRounds == 0 {
		opts.MaxToolRounds = d.MaxToolRounds
	}
	return opts
}
