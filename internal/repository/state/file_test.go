package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/nosleep/internal/domain/power"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad ensures Save followed by Load returns the same status.
func TestFileRepository_SaveLoad(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	repo := NewFileRepository(file)

	at := time.Now().UTC().Truncate(time.Second)
	want := NewStatus(4242, true, power.NewState(true, true, 87, true), at)

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.PID, got.PID)
	require.True(t, got.Preventing)
	require.Equal(t, want.Power(), got.Power())
	require.True(t, at.Equal(got.UpdatedAt))

	_, err = os.Stat(file + ".tmp")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileRepository_OmitsMissingBattery keeps desktops without a battery readable.
func TestFileRepository_OmitsMissingBattery(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	repo := NewFileRepository(file)

	require.NoError(t, repo.Save(context.Background(), NewStatus(1, false, power.NewState(true, false, 0, false), time.Now())))

	contents, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NotContains(t, string(contents), "battery_percent")

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, got.BatteryPercent)
}

// TestFileRepository_Remove deletes the file and tolerates repeated calls.
func TestFileRepository_Remove(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	repo := NewFileRepository(file)

	require.NoError(t, repo.Save(context.Background(), &Status{PID: 1}))
	require.NoError(t, repo.Remove(context.Background()))
	require.NoError(t, repo.Remove(context.Background()))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_Corrupt reports decoding errors.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(file, []byte("pid: [not a number"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
