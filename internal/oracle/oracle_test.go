package oracle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gnolang/tsbump/internal/runner"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    runner.Response
		want    bool
		wantErr bool
	}{
		{name: "clean", resp: runner.Response{}, want: true},
		{name: "type error", resp: runner.Response{ExitCode: 2, Stdout: "forwardFits.mts(9,7): error TS2741: Property 'x' is missing"}, want: false},
		{name: "any other failure", resp: runner.Response{ExitCode: 1, Stderr: "npm ERR! could not determine executable"}, want: false},
		{name: "cannot spawn", resp: runner.Response{Err: errors.New("exec: \"npx\": executable file not found")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := runner.NewRecorder().On("npx", tt.resp)
			dir := t.TempDir()

			ok, err := New(rec, nil, nil).Check(context.Background(), dir, filepath.Join(dir, "forwardFits.mts"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			calls := rec.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, dir, calls[0].Dir)
			assert.Equal(t, "npx --no-install tsc --strict --noEmit --module nodenext --moduleResolution nodenext forwardFits.mts", calls[0].Line())
		})
	}
}

func TestCheckCustomArgs(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder().On("npx", runner.Response{})
	dir := t.TempDir()
	_, err := New(rec, []string{"tsc", "-p", "."}, nil).Check(context.Background(), dir, filepath.Join(dir, "backwardFits.mts"))
	require.NoError(t, err)
	assert.Equal(t, "npx tsc -p . backwardFits.mts", rec.Calls()[0].Line())
}

func TestCheckStreamsDiagnostics(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	rec := runner.NewRecorder().On("npx", runner.Response{
		ExitCode: 2,
		Stdout:   "line one\n\nline two\n",
	})
	dir := t.TempDir()

	ok, err := New(rec, nil, zap.New(core)).Check(context.Background(), dir, filepath.Join(dir, "forwardFits.mts"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, logs.FilterMessage("line one").Len())
	assert.Equal(t, 1, logs.FilterMessage("line two").Len())
	assert.Equal(t, 0, logs.FilterMessage("").Len())
}
