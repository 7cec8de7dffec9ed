package store

import (
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittovec/internal/bytesize"
)

var validate = validator.New()

// DecodeHooks returns the decode hooks used for every config section:
// human readable byte sizes and durations.
func DecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		bytesize.DecodeHook(),
		durationDecodeHook(),
	)
}

// durationDecodeHook accepts "30s"-style strings; bare numbers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	target := reflect.TypeOf(time.Duration(0))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// DecodeConfig decodes a descriptor's free-form config into out, a pointer to
// a kind-specific struct with mapstructure and validate tags, then validates
// it. Numbers given as strings are accepted. Any failure is a ConfigError.
func DecodeConfig(raw map[string]any, out any) error {
	if err := decode(raw, out); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		return NewConfigError("", "invalid store config", err)
	}
	return nil
}

func decode(raw map[string]any, out any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       DecodeHooks(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return NewConfigError("", "building config decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return NewConfigError("", "decoding store config", err)
	}
	return nil
}

// Defaulter is implemented by kind configs that fill unset fields.
type Defaulter interface {
	ApplyDefaults()
}

// LoadConfig decodes raw into a new T, applies its defaults and validates it.
func LoadConfig[T any, PT interface {
	*T
	Defaulter
}](raw map[string]any) (*T, error) {
	cfg := PT(new(T))
	if err := decode(raw, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := validate.Struct(cfg); err != nil {
		return nil, NewConfigError("", "invalid store config", err)
	}
	return (*T)(cfg), nil
}
