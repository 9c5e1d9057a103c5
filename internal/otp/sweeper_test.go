package otp_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/otp"
)

type fakePurger struct {
	n     int
	err   error
	calls int
}

func (p *fakePurger) PurgeExpired(_ context.Context) (int, error) {
	p.calls++
	return p.n, p.err
}

func TestNewSweeper_InvalidSpec(t *testing.T) {
	_, err := otp.NewSweeper(&fakePurger{}, "not a cron spec", slog.Default())
	assert.Error(t, err)
}

func TestSweeper_SweepCountsPurged(t *testing.T) {
	p := &fakePurger{n: 3}
	s, err := otp.NewSweeper(p, "@every 1m", slog.Default())
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.OTPPurgedTotal)
	s.Sweep(context.Background())

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.OTPPurgedTotal))
}

func TestSweeper_SweepError_DoesNotCount(t *testing.T) {
	p := &fakePurger{n: 5, err: errors.New("boom")}
	s, err := otp.NewSweeper(p, "*/5 * * * *", slog.Default())
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.OTPPurgedTotal)
	s.Sweep(context.Background())

	assert.Equal(t, before, testutil.ToFloat64(metrics.OTPPurgedTotal))
}

func TestSweeper_PurgesMemoryLedger(t *testing.T) {
	clk := newFakeClock()
	l := otp.NewMemoryLedger(otp.WithClock(clk.Now))
	_, err := l.Issue(context.Background(), "a@x.com", domain.PurposeRegistration, staged)
	require.NoError(t, err)

	s, err := otp.NewSweeper(l, "@every 1m", slog.Default())
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	s.Sweep(context.Background())

	assert.Equal(t, 0, l.Len())
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	s, err := otp.NewSweeper(&fakePurger{}, "@every 1h", slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
