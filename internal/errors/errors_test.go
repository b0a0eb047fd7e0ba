package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{
			name: "with underlying error",
			err:  NewExitError(ErrNotFound, ExitUser),
			want: "resource not found",
		},
		{
			name: "with wrapped error",
			err:  NewExitError(fmt.Errorf("loading config: %w", ErrInvalidConfig), ExitUser),
			want: "loading config: invalid configuration",
		},
		{
			name: "nil underlying error",
			err:  NewExitError(nil, ExitUser),
			want: "exit code 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ExitError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	tests := []struct {
		name       string
		err        *ExitError
		wantTarget error
		wantIs     bool
	}{
		{
			name:       "unwrap to sentinel error",
			err:        NewExitError(ErrSourceMissing, ExitSystem),
			wantTarget: ErrSourceMissing,
			wantIs:     true,
		},
		{
			name:       "unwrap through wrapped error",
			err:        NewExitError(Wrap(ErrDestinationUnwritable, "creating snapshot"), ExitSystem),
			wantTarget: ErrDestinationUnwritable,
			wantIs:     true,
		},
		{
			name:       "no match for different sentinel",
			err:        NewExitError(ErrNotFound, ExitUser),
			wantTarget: ErrInvalidConfig,
			wantIs:     false,
		},
		{
			name:       "nil underlying error",
			err:        NewExitError(nil, ExitUser),
			wantTarget: ErrNotFound,
			wantIs:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.wantTarget); got != tt.wantIs {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantIs)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "nothing"))
	assert.NoError(t, Wrapf(nil, "nothing %d", 1))

	err := Wrapf(ErrSourceMissing, "stat %s", "/home/x")
	require.Error(t, err)
	assert.Equal(t, "stat /home/x: source directory missing", err.Error())
	assert.True(t, Is(err, ErrSourceMissing))
}

func TestNewf(t *testing.T) {
	err := Newf("bad value %q", "x")
	assert.Equal(t, `bad value "x"`, err.Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"config error", Wrap(ErrInvalidConfig, "source is required"), ExitUser},
		{"missing source", Wrapf(ErrSourceMissing, "stat %s", "/nope"), ExitSystem},
		{"unwritable destination", Wrap(ErrDestinationUnwritable, "mkdir"), ExitSystem},
		{"unknown error", New("boom"), ExitSystem},
		{"existing exit error", NewUserError(New("bad flag"), "see --help"), ExitUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.True(t, errors.Is(got, tt.err) || got.Err == tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestClassify_ConfigSuggestion(t *testing.T) {
	got := Classify(Wrap(ErrInvalidConfig, "destination is required"))
	assert.Equal(t, "Run: backupkern init", got.Suggestion)
}

func TestExitError_As(t *testing.T) {
	wrapped := fmt.Errorf("running backup: %w", NewSystemError(ErrSourceMissing, "check source"))

	var target *ExitError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, ExitSystem, target.Code)
	assert.Equal(t, "check source", target.Suggestion)
}

func TestExitCodeConstants(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitUser", ExitUser, 1},
		{"ExitSystem", ExitSystem, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}
