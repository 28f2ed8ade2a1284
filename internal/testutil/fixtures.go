package testutil

import (
	"context"
	"testing"

	"github.com/junioryono/nestor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewApp creates an application and closes it when the test ends.
func NewApp(t *testing.T, root nestor.Import, opts ...nestor.Option) *nestor.Application {
	t.Helper()
	app, err := nestor.New(context.Background(), root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Close(context.Background())
	})
	return app
}

// ObservedLogger returns a logger recording every entry at level and above.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestScenario is one application built from a module graph and checked.
type TestScenario struct {
	Name     string
	Root     func() nestor.Import
	Validate func(t *testing.T, app *nestor.Application)
}

// RunTestScenarios runs each scenario in parallel.
func RunTestScenarios(t *testing.T, scenarios []TestScenario) {
	t.Helper()

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			t.Parallel()

			app := NewApp(t, scenario.Root())
			scenario.Validate(t, app)
		})
	}
}

// ErrorTestCase is a module graph expected to fail.
type ErrorTestCase struct {
	Name     string
	Root     func() nestor.Import
	CheckErr func(t *testing.T, err error)
}

// RunErrorTestCases runs each case in parallel and checks the error of New.
func RunErrorTestCases(t *testing.T, cases []ErrorTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			app, err := nestor.New(context.Background(), tc.Root())
			require.Error(t, err)
			require.Nil(t, app)
			if tc.CheckErr != nil {
				tc.CheckErr(t, err)
			}
		})
	}
}
