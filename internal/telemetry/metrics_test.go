package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())

	require.NotNil(t, m.ProvisionRunsTotal)
	require.NotNil(t, m.ProvisionErrorsTotal)
	require.NotNil(t, m.KeygenDuration)
	require.NotNil(t, m.PersistDuration)
	require.NotNil(t, Tracer())
}

func TestShutdownAll(t *testing.T) {
	t.Run("collects every failure", func(t *testing.T) {
		fail := func(context.Context) error { return errors.New("boom") }

		errs := shutdownAll(context.Background(), fail, fail)
		require.Len(t, errs, 2)
		require.ErrorContains(t, errs[0], "trace shutdown")
		require.ErrorContains(t, errs[1], "metric shutdown")
	})

	t.Run("noop shutdowns succeed", func(t *testing.T) {
		require.Empty(t, shutdownAll(context.Background(), Noop, Noop))
	})
}
