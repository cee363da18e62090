package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseTwiceWithinCooldownReturnsSameID(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, time.Hour, nil, testLogger(), telemetry.New())
	ctx := context.Background()

	id1, created, err := m.Raise(ctx, e.ID, models.AlertTypeCPU, models.SeverityCritical, "High cpu usage detected (92%)")
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := m.Raise(ctx, e.ID, models.AlertTypeCPU, models.SeverityCritical, "High cpu usage detected (93%)")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	active, err := m.ListActive(ctx, e.ID, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertTypeCPU, active[0].Type)
}

func TestRaiseAfterCooldownCreatesNewAlert(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, time.Hour, nil, testLogger(), nil)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	id1, _, err := m.Raise(ctx, e.ID, models.AlertTypeDisk, models.SeverityHigh, "disk")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(61 * time.Minute) }
	id2, created, err := m.Raise(ctx, e.ID, models.AlertTypeDisk, models.SeverityHigh, "disk")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id1, id2)
}

func TestRaiseAfterResolveCreatesNewAlert(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, time.Hour, nil, testLogger(), nil)
	ctx := context.Background()

	id1, _, err := m.Raise(ctx, e.ID, models.AlertTypeMemory, models.SeverityHigh, "mem")
	require.NoError(t, err)
	require.NoError(t, m.Resolve(ctx, id1))

	id2, created, err := m.Raise(ctx, e.ID, models.AlertTypeMemory, models.SeverityHigh, "mem")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id1, id2)
}

func TestRaiseRejectsInvalidInput(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, 0, nil, testLogger(), nil)
	ctx := context.Background()

	_, _, err := m.Raise(ctx, e.ID, "temperature", models.SeverityHigh, "x")
	assert.True(t, apperror.IsKind(err, apperror.InvalidInput))

	_, _, err = m.Raise(ctx, e.ID, models.AlertTypeCPU, "warning", "x")
	assert.True(t, apperror.IsKind(err, apperror.InvalidInput))

	_, _, err = m.Raise(ctx, "", models.AlertTypeCPU, models.SeverityHigh, "x")
	assert.True(t, apperror.IsKind(err, apperror.InvalidInput))
}

func TestRaiseUnknownEntity(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, 0, nil, testLogger(), nil)

	_, _, err := m.Raise(context.Background(), "no-such-entity", models.AlertTypeCPU, models.SeverityHigh, "x")
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestResolveIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, 0, nil, testLogger(), nil)
	ctx := context.Background()

	id, _, err := m.Raise(ctx, e.ID, models.AlertTypeCPU, models.SeverityHigh, "x")
	require.NoError(t, err)
	require.NoError(t, m.Resolve(ctx, id))
	require.NoError(t, m.Resolve(ctx, id))
	require.NoError(t, m.Resolve(ctx, 999999))

	a, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, a.Status)
	assert.NotNil(t, a.ResolvedAt)

	_, err = m.Get(ctx, 999999)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestResolveActiveOnlyTouchesType(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, 0, nil, testLogger(), nil)
	ctx := context.Background()

	_, _, err := m.Raise(ctx, e.ID, models.AlertTypeAvailability, models.SeverityCritical, "db1 is unreachable")
	require.NoError(t, err)
	_, _, err = m.Raise(ctx, e.ID, models.AlertTypeCPU, models.SeverityHigh, "cpu")
	require.NoError(t, err)

	n, err := m.ResolveActive(ctx, e.ID, models.AlertTypeAvailability)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := m.ListActive(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertTypeCPU, active[0].Type)
}

func TestListActiveOrdersBySeverityThenRecency(t *testing.T) {
	st := newTestStore(t)
	e := createEntity(t, st)
	m := NewManager(st, 0, nil, testLogger(), nil)
	ctx := context.Background()

	base := time.Now()
	raiseAt := func(offset time.Duration, typ, severity string) {
		m.now = func() time.Time { return base.Add(offset) }
		_, _, err := m.Raise(ctx, e.ID, typ, severity, typ)
		require.NoError(t, err)
	}
	raiseAt(0, models.AlertTypeNetwork, models.SeverityLow)
	raiseAt(time.Second, models.AlertTypeMemory, models.SeverityHigh)
	raiseAt(2*time.Second, models.AlertTypeCPU, models.SeverityCritical)
	raiseAt(3*time.Second, models.AlertTypeDisk, models.SeverityHigh)

	active, err := m.ListActive(ctx, "", 500)
	require.NoError(t, err)
	var got []string
	for _, a := range active {
		got = append(got, a.Type)
	}
	assert.Equal(t, []string{models.AlertTypeCPU, models.AlertTypeDisk, models.AlertTypeMemory, models.AlertTypeNetwork}, got)
}

func TestListActiveEmptyIsNotNil(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, 0, nil, testLogger(), nil)

	active, err := m.ListActive(context.Background(), "", 0)
	require.NoError(t, err)
	assert.NotNil(t, active)
	assert.Empty(t, active)
}
