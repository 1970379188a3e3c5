package storage_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/coach-stream/internal/history"
	"github.com/namikmesic/coach-stream/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workoutSchema = `
CREATE TABLE exercise (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL, category TEXT NOT NULL, user_id BIGINT);
CREATE TABLE trainingsession (id BIGSERIAL PRIMARY KEY, user_id BIGINT NOT NULL, date TIMESTAMP NOT NULL, duration_seconds INTEGER NOT NULL);
CREATE TABLE sessionexercise (id BIGSERIAL PRIMARY KEY, session_id BIGINT NOT NULL, exercise_id BIGINT NOT NULL);
CREATE TABLE trainingset (id BIGSERIAL PRIMARY KEY, session_exercise_id BIGINT NOT NULL, weight DOUBLE PRECISION NOT NULL,
    reps INTEGER NOT NULL, completed BOOLEAN NOT NULL DEFAULT FALSE, rest_seconds INTEGER DEFAULT 0, set_duration INTEGER DEFAULT 0);

INSERT INTO exercise (id, name, category) VALUES (1, 'Bench Press', 'Chest'), (2, 'Squat', 'Legs');
INSERT INTO trainingsession (id, user_id, date, duration_seconds) VALUES
    (10, 7, '2024-05-01 18:30:00', 2730),
    (11, 7, '2024-05-03 07:05:00', 1800),
    (12, 99, '2024-05-04 09:00:00', 600);
INSERT INTO sessionexercise (id, session_id, exercise_id) VALUES (100, 10, 1), (101, 10, 42), (102, 11, 2);
INSERT INTO trainingset (session_exercise_id, weight, reps, completed, rest_seconds) VALUES
    (100, 60, 8, TRUE, 90),
    (100, 62.5, 6, FALSE, NULL),
    (102, 100, 5, TRUE, 180);
`

// testPool connects to COACH_TEST_DATABASE_URL inside a throwaway schema.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("COACH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COACH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := storage.NewPool(ctx, url)
	require.NoError(t, err)
	schema := "coach_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, workoutSchema)
	require.NoError(t, err)
	return pool
}

func TestSessionStore_Session(t *testing.T) {
	pool := testPool(t)
	store := storage.NewSessionStore(pool)

	got, err := store.Session(context.Background(), 7, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC), got.Date.UTC())
	assert.Equal(t, 2730, got.DurationSeconds)
	assert.Equal(t, []history.Exercise{
		{Name: "Bench Press", Category: "Chest", Sets: []history.Set{
			{Weight: 60, Reps: 8, RestSeconds: 90, Completed: true},
			{Weight: 62.5, Reps: 6},
		}},
		{Name: "Unknown", Category: "Unknown"},
	}, got.Exercises)
}

func TestSessionStore_SessionOfOtherUser(t *testing.T) {
	pool := testPool(t)
	store := storage.NewSessionStore(pool)

	_, err := store.Session(context.Background(), 7, 12)
	assert.True(t, errors.Is(err, history.ErrNotFound))

	_, err = store.Session(context.Background(), 7, 404)
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestSessionStore_Sessions(t *testing.T) {
	pool := testPool(t)
	store := storage.NewSessionStore(pool)

	got, err := store.Sessions(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, []history.Summary{
		{ID: 11, Date: "2024-05-03 07:05", DurationSeconds: 1800, Exercises: []string{"Squat"}},
		{ID: 10, Date: "2024-05-01 18:30", DurationSeconds: 2730, Exercises: []string{"Bench Press"}},
	}, got)
}

func TestChatRequestJob_AgainstPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	require.NoError(t, storage.RunMigrations(ctx, pool))

	rec := &storage.ChatRequestRecord{
		ID: uuid.New(), Timestamp: time.Now(), UserID: 7, Source: "remote", Outcome: "error",
		ErrorMessage: "upstream protocol error: http 500", DurationMs: 12,
	}
	job := storage.InsertChatRequestJob(rec)
	require.NoError(t, job.Execute(ctx, pool))
	require.NoError(t, job.Execute(ctx, pool))

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM coach_requests WHERE id = $1", rec.ID).Scan(&n))
	assert.Equal(t, 1, n)
}
