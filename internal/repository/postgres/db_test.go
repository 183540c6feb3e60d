package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestTransactor_WithinTx(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM registrations`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRegistrationRepository(db)
		err = NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
			_, err := repo.DeleteByEventID(ctx, "ev-1")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		tr := NewTransactor(db)
		calls := 0
		err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
			return tr.WithinTx(ctx, func(ctx context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		require.Panics(t, func() {
			_ = NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
				panic("boom")
			})
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLikePattern(t *testing.T) {
	require.Equal(t, `%50\% off\_now%`, likePattern("50% off_now"))
}

func TestWhereClause(t *testing.T) {
	var w whereClause
	require.Equal(t, "", w.String())
	w.add("a = ?", 1)
	w.add("(b ILIKE ? OR c ILIKE ?)", "x")
	require.Equal(t, " WHERE a = $1 AND (b ILIKE $2 OR c ILIKE $2)", w.String())
	require.Equal(t, 3, w.next())
	require.Equal(t, []any{1, "x"}, w.args)
}
