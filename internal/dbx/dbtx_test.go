package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openSessions returns an in-memory sqlite database with a cut-down
// refresh token table holding one live row, "h1".
func openSessions(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE tokens (
		token_hash TEXT PRIMARY KEY,
		revoked    INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tokens (token_hash) VALUES ('h1')`)
	require.NoError(t, err)
	return db
}

func consume(ctx context.Context, tx DBTX, hash string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE token_hash = ? AND revoked = 0`, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func live(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT token_hash FROM tokens WHERE revoked = 0 ORDER BY token_hash`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		require.NoError(t, rows.Scan(&h))
		out = append(out, h)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestWithTx_RotationCommits(t *testing.T) {
	db := openSessions(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		ok, err := consume(ctx, tx, "h1")
		if err != nil || !ok {
			return errors.New("consume failed")
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO tokens (token_hash) VALUES ('h2')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"h2"}, live(t, db))
}

func TestWithTx_FailedReplacementRestoresNothing(t *testing.T) {
	db := openSessions(t)

	// The replacement collides with the primary key, so the consume must be
	// undone too.
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := consume(ctx, tx, "h1"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO tokens (token_hash) VALUES ('h1')`)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, []string{"h1"}, live(t, db))
}

func TestWithTx_SecondConsumeLoses(t *testing.T) {
	db := openSessions(t)
	ctx := context.Background()

	var wins int
	for range 2 {
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			ok, err := consume(ctx, tx, "h1")
			if ok {
				wins++
			}
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, wins)
	assert.Empty(t, live(t, db))
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openSessions(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			_, _ = consume(ctx, tx, "h1")
			panic("kaput")
		})
	})
	assert.Equal(t, []string{"h1"}, live(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openSessions(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestSQLTransactor(t *testing.T) {
	db := openSessions(t)
	tr := NewSQLTransactor(db)
	ctx := context.Background()

	err := tr.InTx(ctx, func(ctx context.Context, tx DBTX) error {
		_, err := consume(ctx, tx, "h1")
		if err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	assert.Equal(t, []string{"h1"}, live(t, db))

	ok, err := consume(ctx, tr.Conn(), "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, live(t, db))
}

func TestDirectTransactor_PassesNilHandle(t *testing.T) {
	var got DBTX = &sql.DB{}
	err := DirectTransactor{}.InTx(context.Background(), func(_ context.Context, tx DBTX) error {
		got = tx
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, DirectTransactor{}.Conn())

	boom := errors.New("boom")
	assert.ErrorIs(t, DirectTransactor{}.InTx(context.Background(), func(context.Context, DBTX) error { return boom }), boom)
}
