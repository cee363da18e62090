package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(entityID string, at time.Time, up bool) models.ProbeResult {
	return models.ProbeResult{EntityID: entityID, CheckedAt: at, Reachable: up, ResponseTimeMs: 40}
}

func TestFirstProbeInitializesWithoutTransition(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	rec, err := f.tracker.Record(ctx, probe(e.ID, time.Now(), false))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, rec.Status)
	assert.Nil(t, rec.LastTransition)
	assert.Nil(t, rec.LastDowntime)

	active, err := f.alerts.ListActive(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRepeatedFailuresRecordOneTransition(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	t0 := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	_, err := f.tracker.Record(ctx, probe(e.ID, t0, true))
	require.NoError(t, err)

	first := t0.Add(10 * time.Second)
	rec, err := f.tracker.Record(ctx, probe(e.ID, first, false))
	require.NoError(t, err)
	require.NotNil(t, rec.LastTransition)
	assert.True(t, rec.LastTransition.Equal(first))

	rec, err = f.tracker.Record(ctx, probe(e.ID, first.Add(time.Second), false))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, rec.Status)
	assert.True(t, rec.LastTransition.Equal(first), "second failure must not move last_transition")
	assert.True(t, rec.LastDowntime.Equal(first))
	assert.True(t, rec.LastChecked.Equal(first.Add(time.Second)))

	active, err := f.alerts.ListActive(ctx, e.ID, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertTypeAvailability, active[0].Type)
	assert.Equal(t, models.SeverityCritical, active[0].Severity)
	assert.Equal(t, "web1 is unreachable", active[0].Message)
}

func TestLastTransitionFollowsReachabilityChanges(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	// transitionAt is the step whose check time last_transition should
	// carry, or -1 while it is still unset.
	steps := []struct {
		up           bool
		status       string
		transitionAt int
	}{
		{up: true, status: models.StatusOnline, transitionAt: -1},
		{up: true, status: models.StatusOnline, transitionAt: -1},
		{up: false, status: models.StatusOffline, transitionAt: 2},
		{up: false, status: models.StatusOffline, transitionAt: 2},
		{up: true, status: models.StatusOnline, transitionAt: 4},
	}
	at := func(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

	for i, step := range steps {
		rec, err := f.tracker.Record(ctx, probe(e.ID, at(i), step.up))
		require.NoError(t, err, "step %d", i)
		stored, err := f.tracker.Status(ctx, e.ID)
		require.NoError(t, err, "step %d", i)

		for _, got := range []*models.StatusRecord{rec, stored} {
			assert.Equal(t, step.status, got.Status, "step %d", i)
			assert.True(t, got.LastChecked.Equal(at(i)), "step %d: last_checked", i)
			if step.transitionAt < 0 {
				assert.Nil(t, got.LastTransition, "step %d", i)
				continue
			}
			if assert.NotNil(t, got.LastTransition, "step %d", i) {
				assert.True(t, got.LastTransition.Equal(at(step.transitionAt)),
					"step %d: last_transition = %s, want %s", i, got.LastTransition, at(step.transitionAt))
			}
		}
	}
}

func TestRecoveryResolvesAvailabilityAlert(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	t0 := time.Now().Add(-time.Minute)
	for i, up := range []bool{true, false, true} {
		_, err := f.tracker.Record(ctx, probe(e.ID, t0.Add(time.Duration(i)*10*time.Second), up))
		require.NoError(t, err)
	}

	rec, err := f.tracker.Status(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, rec.Status)
	require.NotNil(t, rec.LastTransition)
	assert.Equal(t, t0.Add(20*time.Second).UnixMilli(), rec.LastTransition.UnixMilli())

	active, err := f.alerts.ListActive(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUptimeSecondsAccumulateOnlyWhileOnline(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	t0 := time.Now().Add(-time.Hour)
	steps := []struct {
		offset time.Duration
		up     bool
	}{
		{0, true},
		{30 * time.Second, true},  // +30 online
		{60 * time.Second, false}, // +30, goes offline
		{90 * time.Second, false}, // offline, no credit
		{120 * time.Second, true}, // offline before, no credit
		{150 * time.Second, true}, // +30
	}
	var rec *models.StatusRecord
	var err error
	for _, s := range steps {
		rec, err = f.tracker.Record(ctx, probe(e.ID, t0.Add(s.offset), s.up))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(90), rec.UptimeSeconds)
}

func TestConcurrentProbesKeepOneTransition(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	t0 := time.Now().Add(-time.Minute)
	_, err := f.tracker.Record(ctx, probe(e.ID, t0, true))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.tracker.Record(ctx, probe(e.ID, t0.Add(time.Duration(i)*time.Second), false))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	active, err := f.alerts.ListActive(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	logs, err := f.tracker.Logs(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 9)
	assert.Empty(t, f.tracker.locks.locks)
}

func TestStatusNotFoundBeforeFirstProbe(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})

	_, err := f.tracker.Status(context.Background(), e.ID)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestRecordUnknownEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Record(context.Background(), probe("missing", time.Now(), true))
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestUptimeRatio(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	w, err := ParseWindow("24h", "")
	require.NoError(t, err)

	report, err := f.tracker.Uptime(ctx, e.ID, w)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.UptimePct)
	assert.Zero(t, report.TotalChecks)

	t0 := time.Now().Add(-time.Hour)
	for i, up := range []bool{true, true, false} {
		_, err := f.tracker.Record(ctx, probe(e.ID, t0.Add(time.Duration(i)*time.Minute), up))
		require.NoError(t, err)
	}
	// Outside the window.
	_, err = f.tracker.Record(ctx, probe(e.ID, time.Now().Add(-48*time.Hour), false))
	require.NoError(t, err)

	report, err = f.tracker.Uptime(ctx, e.ID, w)
	require.NoError(t, err)
	assert.Equal(t, 66.67, report.UptimePct)
	assert.Equal(t, 3, report.TotalChecks)
	assert.Equal(t, 2, report.UpChecks)
	assert.Equal(t, 40.0, report.AvgResponseMs)
	assert.Equal(t, "24h", report.Window)
}

func TestLogsCappedAndNewestFirst(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, "web1", models.MonitorServer, models.EntityConfig{})
	ctx := context.Background()

	t0 := time.Now().Add(-3 * time.Hour)
	for i := 0; i < 105; i++ {
		_, err := f.tracker.Record(ctx, probe(e.ID, t0.Add(time.Duration(i)*time.Minute), true))
		require.NoError(t, err)
	}

	logs, err := f.tracker.Logs(ctx, e.ID, 500)
	require.NoError(t, err)
	require.Len(t, logs, MaxLogs)
	assert.True(t, logs[0].CheckedAt.After(logs[1].CheckedAt))
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		rng, hours string
		want       time.Duration
		label      string
	}{
		{"", "", 24 * time.Hour, "24h"},
		{"7d", "", 7 * 24 * time.Hour, "7d"},
		{"365d", "", 365 * 24 * time.Hour, "365d"},
		{"30d", "6", 6 * time.Hour, "6h"},
	}
	for _, c := range cases {
		w, err := ParseWindow(c.rng, c.hours)
		require.NoError(t, err)
		assert.Equal(t, c.want, w.Duration)
		assert.Equal(t, c.label, w.Label)
	}

	for _, bad := range [][2]string{{"1y", ""}, {"", "0"}, {"", "abc"}, {"", "9000"}} {
		_, err := ParseWindow(bad[0], bad[1])
		assert.True(t, apperror.IsKind(err, apperror.InvalidInput), "%v", bad)
	}
}
