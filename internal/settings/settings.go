// Package settings reads run overrides from TXCONV_* environment variables.
// Command-line flags are layered on top by the caller.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
)

// EnvPrefix is prepended to every key, e.g. TXCONV_IGNORE_PENDING.
const EnvPrefix = "TXCONV"

const (
	KeyIncludeHeader = "include_header"
	KeyIgnorePending = "ignore_pending"
	KeySkipPrompts   = "skip_prompts"
	KeySortBy        = "sort_by"
	KeySortOrder     = "sort_order"
	KeyOnRowError    = "on_row_error"
	KeyVerbose       = "verbose"
)

var keys = []string{
	KeyIncludeHeader,
	KeyIgnorePending,
	KeySkipPrompts,
	KeySortBy,
	KeySortOrder,
	KeyOnRowError,
	KeyVerbose,
}

// Settings are the environment-level defaults of a run.
type Settings struct {
	Overrides      config.Overrides
	RowErrorPolicy config.RowErrorPolicy
	Verbose        bool
}

// Load reads the process environment.
func Load() (*Settings, error) {
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range keys {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key)
	}
	v.SetDefault(KeyOnRowError, string(config.RowErrorAbort))
	return v
}

// FromViper builds Settings from an already configured viper instance.
// Unset keys leave the corresponding override nil.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	var err error

	if s.Overrides.IncludeHeader, err = optionalBool(v, KeyIncludeHeader); err != nil {
		return nil, err
	}
	if s.Overrides.IgnorePending, err = optionalBool(v, KeyIgnorePending); err != nil {
		return nil, err
	}
	if s.Overrides.SkipPrompts, err = optionalBool(v, KeySkipPrompts); err != nil {
		return nil, err
	}
	verbose, err := optionalBool(v, KeyVerbose)
	if err != nil {
		return nil, err
	}
	s.Verbose = verbose != nil && *verbose

	if raw := v.GetString(KeySortBy); raw != "" {
		by, err := config.ParseSortBy(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envName(KeySortBy), err)
		}
		s.Overrides.SortBy = &by
	}
	if raw := v.GetString(KeySortOrder); raw != "" {
		order, err := config.ParseSortOrder(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envName(KeySortOrder), err)
		}
		s.Overrides.SortOrder = &order
	}

	s.RowErrorPolicy, err = config.ParseRowErrorPolicy(v.GetString(KeyOnRowError))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envName(KeyOnRowError), err)
	}

	return s, nil
}

func optionalBool(v *viper.Viper, key string) (*bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid boolean %q", envName(key), raw)
	}
	return &b, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}
