package settings

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range keys {
		t.Setenv(envName(key), "")
	}

	s, err := Load()
	require.NoError(t, err)

	assert.Nil(t, s.Overrides.IncludeHeader)
	assert.Nil(t, s.Overrides.IgnorePending)
	assert.Nil(t, s.Overrides.SkipPrompts)
	assert.Nil(t, s.Overrides.SortBy)
	assert.Nil(t, s.Overrides.SortOrder)
	assert.Equal(t, config.RowErrorAbort, s.RowErrorPolicy)
	assert.False(t, s.Verbose)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TXCONV_INCLUDE_HEADER", "false")
	t.Setenv("TXCONV_IGNORE_PENDING", "true")
	t.Setenv("TXCONV_SKIP_PROMPTS", "1")
	t.Setenv("TXCONV_SORT_BY", "date")
	t.Setenv("TXCONV_SORT_ORDER", "descending")
	t.Setenv("TXCONV_ON_ROW_ERROR", "skip")
	t.Setenv("TXCONV_VERBOSE", "true")

	s, err := Load()
	require.NoError(t, err)

	require.NotNil(t, s.Overrides.IncludeHeader)
	assert.False(t, *s.Overrides.IncludeHeader)
	require.NotNil(t, s.Overrides.IgnorePending)
	assert.True(t, *s.Overrides.IgnorePending)
	require.NotNil(t, s.Overrides.SkipPrompts)
	assert.True(t, *s.Overrides.SkipPrompts)
	require.NotNil(t, s.Overrides.SortBy)
	assert.Equal(t, config.SortByDate, *s.Overrides.SortBy)
	require.NotNil(t, s.Overrides.SortOrder)
	assert.Equal(t, config.SortDescending, *s.Overrides.SortOrder)
	assert.Equal(t, config.RowErrorSkip, s.RowErrorPolicy)
	assert.True(t, s.Verbose)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{"bool", "TXCONV_IGNORE_PENDING", "sometimes", `TXCONV_IGNORE_PENDING: invalid boolean "sometimes"`},
		{"sort by", "TXCONV_SORT_BY", "amount", "TXCONV_SORT_BY"},
		{"sort order", "TXCONV_SORT_ORDER", "sideways", "TXCONV_SORT_ORDER"},
		{"row policy", "TXCONV_ON_ROW_ERROR", "retry", `invalid row error policy "retry"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromViper_ExplicitValues(t *testing.T) {
	v := viper.New()
	v.Set(KeyIncludeHeader, "true")
	v.Set(KeyOnRowError, "skip")

	s, err := FromViper(v)
	require.NoError(t, err)
	require.NotNil(t, s.Overrides.IncludeHeader)
	assert.True(t, *s.Overrides.IncludeHeader)
	assert.Nil(t, s.Overrides.IgnorePending)
	assert.Equal(t, config.RowErrorSkip, s.RowErrorPolicy)
}
