package asset

import (
	"github.com/mitchellh/mapstructure"
)

// ModelConfig is the provider-routing knob set attached to an Agent. The
// well-known fields are typed and validated by the provider adapter at
// call time; Extra holds any key the caller set that this package doesn't
// recognize yet, so round-tripping through storage never drops data.
type ModelConfig struct {
	Temperature      *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens        *int     `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
	TopP             *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
	TopK             *int     `mapstructure:"top_k" json:"top_k,omitempty"`
	Stop             []string `mapstructure:"stop" json:"stop,omitempty"`
	FrequencyPenalty *float64 `mapstructure:"frequency_penalty" json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `mapstructure:"presence_penalty" json:"presence_penalty,omitempty"`
	Extra            map[string]any `mapstructure:",remain" json:"-"`
}

// ModelConfigFromMap decodes a loosely-typed map (as arrives from JSONB or
// a caller's override bag) into a ModelConfig, recognized knobs typed and
// everything else preserved in Extra.
func ModelConfigFromMap(m map[string]any) (ModelConfig, error) {
	var cfg ModelConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ModelConfig{}, err
	}
	if err := decoder.Decode(m); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// ToMap flattens cfg back into a generic map suitable for JSONB storage or
// for shallow-merging with a per-call override.
func (c ModelConfig) ToMap() map[string]any {
	out := map[string]any{}
	if c.Temperature != nil {
		out["temperature"] = *c.Temperature
	}
	if c.MaxTokens != nil {
		out["max_tokens"] = *c.MaxTokens
	}
	if c.TopP != nil {
		out["top_p"] = *c.TopP
	}
	if c.TopK != nil {
		out["top_k"] = *c.TopK
	}
	if len(c.Stop) > 0 {
		out["stop"] = c.Stop
	}
	if c.FrequencyPenalty != nil {
		out["frequency_penalty"] = *c.FrequencyPenalty
	}
	if c.PresencePenalty != nil {
		out["presence_penalty"] = *c.PresencePenalty
	}
	for k, v := range c.Extra {
		out[k] = v
	}
	return out
}

// MergeOverride shallow-merges override on top of c, override's keys
// winning. Used by the advance engine to apply per-call config overrides
// without mutating the agent's stored ModelConfig.
func (c ModelConfig) MergeOverride(override map[string]any) (ModelConfig, error) {
	if len(override) == 0 {
		return c, nil
	}
	merged := c.ToMap()
	for k, v := range override {
		merged[k] = v
	}
	return ModelConfigFromMap(merged)
}
