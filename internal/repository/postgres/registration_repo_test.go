package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

var pgconnUniqueErr = pgconn.PgError{Code: "23505"}

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestRegistrationRepo_Upsert_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRegistrationRepo(db)

	ctx := context.Background()
	reg := &model.Registration{
		ID:            uuid.Must(uuid.NewV4()),
		CommunityID:   100,
		PersonID:      200,
		DisplayName:   "alice",
		CredentialEnc: []byte("ct"),
		DeviceWorn:    true,
	}

	mock.ExpectExec(`INSERT INTO registrations`).
		WithArgs(reg.ID, reg.CommunityID, reg.PersonID, "alice", []byte("ct"), "", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Upsert(ctx, reg))
}

func TestRegistrationRepo_Get_OK_And_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRegistrationRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	ts := time.Now().UTC()

	cols := []string{"id", "community_id", "person_id", "display_name", "credential_enc",
		"api_base", "device_worn", "created_at", "updated_at"}

	mock.ExpectQuery(`SELECT id, community_id, person_id, display_name, credential_enc, api_base, device_worn, created_at, updated_at`).
		WithArgs(int64(100), int64(200)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(id, int64(100), int64(200), "alice", []byte("ct"), "", true, ts, ts))

	reg, err := r.Get(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, id, reg.ID)
	require.True(t, reg.DeviceWorn)

	mock.ExpectQuery(`SELECT id, community_id, person_id`).
		WithArgs(int64(100), int64(999)).
		WillReturnError(pgx.ErrNoRows)

	_, err = r.Get(ctx, 100, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRegistrationRepo_SetWorn(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRegistrationRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE registrations SET device_worn=\$3`).
		WithArgs(int64(100), int64(200), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetWorn(ctx, 100, 200, false))

	mock.ExpectExec(`UPDATE registrations SET device_worn=\$3`).
		WithArgs(int64(100), int64(999), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetWorn(ctx, 100, 999, true), errs.ErrNotFound)
}

func TestRegistrationRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRegistrationRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM registrations`).
		WithArgs(int64(100), int64(200)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := r.Delete(ctx, 100, 200)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`DELETE FROM registrations`).
		WithArgs(int64(100), int64(999)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	ok, err = r.Delete(ctx, 100, 999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeviceRepo_Add_Duplicate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()

	d := &model.Device{
		ID:             uuid.Must(uuid.NewV4()),
		RegistrationID: uuid.Must(uuid.NewV4()),
		Ref:            "shk_abcd1234",
		Name:           "left",
	}

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs(d.ID, d.RegistrationID, d.Ref, d.Name).
		WillReturnError(&pgconnUniqueErr)

	require.ErrorIs(t, r.Add(ctx, d), errs.ErrAlreadyExists)
}

func TestDeviceRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()

	regID := uuid.Must(uuid.NewV4())
	ts := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "registration_id", "ref", "name", "last_action_at", "created_at"}).
		AddRow(uuid.Must(uuid.NewV4()), regID, "shk_a", "left", (*time.Time)(nil), ts).
		AddRow(uuid.Must(uuid.NewV4()), regID, "shk_b", "right", &ts, ts)

	mock.ExpectQuery(`SELECT id, registration_id, ref, name, last_action_at, created_at`).
		WithArgs(regID).
		WillReturnRows(rows)

	out, err := r.List(ctx, regID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Nil(t, out[0].LastActionAt)
	require.NotNil(t, out[1].LastActionAt)
}

func TestDeviceRepo_List_QueryErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)

	mock.ExpectQuery(`SELECT id, registration_id, ref, name`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("q-fail"))

	_, err := r.List(context.Background(), uuid.Must(uuid.NewV4()))
	require.Error(t, err)
}
