package sqlx_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	storage "tilequest/adapters/sqlx"
	"tilequest/claims"
)

// Runs the real migrations and queries against an on-disk SQLite database.
func TestSQLite_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = filepath.Join(t.TempDir(), "claims.db")
	store, err := storage.New(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := claims.NewService(store, claims.WithClock(func() time.Time { return base }))

	wallet := "0x1234567890abcdef1234567890abcdef12345678"
	first, err := svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 10, SessionID: "s1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, first.ID)

	_, err = svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 10})
	require.ErrorIs(t, err, claims.ErrDuplicate)

	// bypass the existence check to exercise the unique constraint
	dup := claims.Address{WalletAddress: wallet, NFTLevel: 10, NFTName: "x", SubmittedAt: base, CreatedAt: base}
	require.ErrorIs(t, store.Insert(ctx, &dup), claims.ErrDuplicate)

	_, err = svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 25})
	require.NoError(t, err)

	page, err := svc.List(ctx, claims.ListFilter{Address: wallet})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	require.True(t, page.Items[0].SubmittedAt.Equal(base))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.TotalAddresses)
	require.Equal(t, 1, st.UniqueWallets)
	require.Equal(t, 2, st.RecentSubmissions)
	require.Len(t, st.LevelBreakdown, 2)

	// migrations are idempotent
	require.NoError(t, store.Migrate(ctx))
}
