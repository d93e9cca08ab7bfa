package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

func reminderRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "community_id", "target_person", "creator_id", "fire_at",
		"reason", "kind", "intensity", "duration_ms", "channel_id", "completed", "recurring",
		"recurrence", "last_executed_at", "created_at"})
}

func TestReminderRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReminderRepo(db)
	ctx := context.Background()

	rem := &model.Reminder{
		ID:             uuid.Must(uuid.NewV4()),
		CommunityID:    100,
		TargetPersonID: 200,
		CreatorID:      42,
		FireAt:         time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
		Reason:         "hydrate",
		Kind:           model.KindVibrate,
		Intensity:      40,
		DurationMS:     1500,
		Recurring:      true,
		Recurrence:     "daily",
	}

	mock.ExpectExec(`INSERT INTO reminders`).
		WithArgs(rem.ID, int64(100), int64(200), int64(42), rem.FireAt, "hydrate",
			"Vibrate", 40, 1500, (*int64)(nil), true, "daily").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(ctx, rem))
}

func TestReminderRepo_Due(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReminderRepo(db)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Minute)
	rows := reminderRows().
		AddRow(uuid.Must(uuid.NewV4()), int64(100), int64(200), int64(42), ts,
			"hydrate", model.KindShock, 30, 1000, (*int64)(nil), false, false, "", (*time.Time)(nil), ts)

	mock.ExpectQuery(`FROM reminders WHERE NOT completed AND fire_at <= \$1 ORDER BY fire_at`).
		WithArgs(now).
		WillReturnRows(rows)

	due, err := r.Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "hydrate", due[0].Reason)
	require.False(t, due[0].Completed)
}

func TestReminderRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReminderRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM reminders WHERE community_id=\$1 AND id=\$2`).
		WithArgs(int64(100), id).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), 100, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReminderRepo_Reschedule(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReminderRepo(db)
	ctx := context.Background()

	id := uuid.Must(uuid.NewV4())
	next := time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE reminders SET fire_at=\$2, last_executed_at=now\(\)`).
		WithArgs(id, next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Reschedule(ctx, id, next))

	mock.ExpectExec(`UPDATE reminders SET fire_at=\$2, last_executed_at=now\(\)`).
		WithArgs(id, next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Reschedule(ctx, id, next), errs.ErrNotFound)
}

func TestReminderRepo_MarkCompleted(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReminderRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`UPDATE reminders SET completed=true`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, r.MarkCompleted(context.Background(), id))
}

func TestAuditRepo_Append_And_Count(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	ctx := context.Background()

	e := &model.AuditEntry{
		ID:             uuid.Must(uuid.NewV4()),
		CommunityID:    100,
		ControllerID:   42,
		ControllerName: "bob",
		TargetID:       200,
		TargetName:     "alice",
		Kind:           model.KindShock,
		Intensity:      30,
		DurationMS:     1000,
		DeviceRef:      "...1234",
		DeviceName:     "left",
		Success:        true,
		Source:         model.SourceManual,
	}

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(e.ID, int64(100), int64(42), "bob", int64(200), "alice",
			"Shock", 30, 1000, "...1234", "left", true, "", "manual").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Append(ctx, e))

	mock.ExpectQuery(`SELECT count\(\*\) FROM audit_log`).
		WithArgs(int64(100), int64(200)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	n, err := r.CountForTarget(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
}

func TestAuditRepo_DeleteOlderThan(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM audit_log WHERE created_at <`).
		WithArgs(90).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	n, err := r.DeleteOlderThan(ctx, 90)
	require.NoError(t, err)
	require.Equal(t, int64(12), n)

	_, err = r.DeleteOlderThan(ctx, 0)
	require.Error(t, err)
}

func TestPrefRepo_Get_PrefersSpecific(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPrefRepo(db)
	ctx := context.Background()

	target := int64(200)
	ts := time.Now().UTC()
	cols := []string{"id", "controller_id", "community_id", "target_person", "default_kind",
		"default_int", "default_dur_ms", "last_kind", "last_int", "last_dur_ms",
		"last_target", "smart_defaults", "updated_at"}

	mock.ExpectQuery(`ORDER BY target_person NULLS LAST`).
		WithArgs(int64(42), int64(100), &target).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.Must(uuid.NewV4()), int64(42), int64(100), &target,
				model.KindVibrate, 40, 1500, model.KindShock, 25, 800, &target, true, ts))

	p, err := r.Get(ctx, 42, 100, &target)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.TargetPersonID)
	require.Equal(t, target, *p.TargetPersonID)
	require.Equal(t, model.KindVibrate, p.DefaultKind)
}

func TestPrefRepo_Get_NoRow(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPrefRepo(db)

	mock.ExpectQuery(`ORDER BY target_person NULLS LAST`).
		WithArgs(int64(42), int64(100), (*int64)(nil)).
		WillReturnError(pgx.ErrNoRows)

	p, err := r.Get(context.Background(), 42, 100, nil)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestPrefRepo_UpdateLastUsed_WritesBothRows(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPrefRepo(db)
	ctx := context.Background()

	target := int64(200)
	mock.ExpectExec(`INSERT INTO controller_prefs`).
		WithArgs(pgxmock.AnyArg(), int64(42), int64(100), &target, "Shock", 30, 1000, int64(200)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO controller_prefs`).
		WithArgs(pgxmock.AnyArg(), int64(42), int64(100), (*int64)(nil), "Shock", 30, 1000, int64(200)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.UpdateLastUsed(ctx, 42, 100, 200, model.KindShock, 30, 1000))
	require.NoError(t, mock.ExpectationsWereMet())
}
