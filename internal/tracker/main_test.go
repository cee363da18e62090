package tracker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/coresight/coresight/internal/alerting"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store   *store.SQLiteStore
	alerts  *alerting.Manager
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "coresight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alerts := alerting.NewManager(st, 0, nil, logger, nil)
	return &fixture{store: st, alerts: alerts, tracker: New(st, alerts, logger, nil)}
}

func (f *fixture) entity(t *testing.T, name, monitorType string, cfg models.EntityConfig) *models.Entity {
	t.Helper()
	e := &models.Entity{ID: uuid.NewString(), Name: name, Address: "127.0.0.1", MonitorType: monitorType, Config: cfg}
	require.NoError(t, f.store.CreateEntity(context.Background(), e))
	return e
}
