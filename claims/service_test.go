package claims_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilequest/adapters/memory"
	"tilequest/claims"
	"tilequest/core"
)

const wallet = "0xAbCdEf0123456789abcdef0123456789ABCDEF01"

type capture struct{ events []core.Event }

func (c *capture) Publish(_ context.Context, e core.Event) { c.events = append(c.events, e) }

func newService(now time.Time) (*claims.Service, *capture) {
	pub := &capture{}
	svc := claims.NewService(memory.NewClaimStore(),
		claims.WithPublisher(pub),
		claims.WithClock(func() time.Time { return now }),
	)
	return svc, pub
}

func TestSubmit(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc, pub := newService(now)

	a, err := svc.Submit(context.Background(), claims.Submission{
		WalletAddress: wallet,
		NFTLevel:      25,
		SessionID:     "session_1_abc",
		UserAgent:     "test-agent",
		IPAddress:     "203.0.113.9",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.ID)
	assert.Equal(t, "Cedomis Silver NFT", a.NFTName)
	assert.Equal(t, now, a.SubmittedAt)
	assert.Equal(t, "203.0.113.9", a.IPAddress)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.EventAddressSubmitted, pub.events[0].Type)
	assert.Equal(t, 25, pub.events[0].Level)
	assert.Equal(t, "session_1_abc", pub.events[0].SessionID)
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newService(time.Now())
	cases := []struct {
		name string
		sub  claims.Submission
		want error
	}{
		{"missing wallet", claims.Submission{NFTLevel: 10}, claims.ErrMissingFields},
		{"missing level", claims.Submission{WalletAddress: wallet}, claims.ErrMissingFields},
		{"short address", claims.Submission{WalletAddress: "0x1234", NFTLevel: 10}, claims.ErrInvalidAddress},
		{"no prefix", claims.Submission{WalletAddress: "1x" + wallet[2:], NFTLevel: 10}, claims.ErrInvalidAddress},
		{"non-tier level", claims.Submission{WalletAddress: wallet, NFTLevel: 11}, claims.ErrInvalidLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.sub)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmitDuplicate(t *testing.T) {
	svc, pub := newService(time.Now())
	ctx := context.Background()
	_, err := svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 10})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 10})
	assert.ErrorIs(t, err, claims.ErrDuplicate)
	_, err = svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: 50})
	assert.NoError(t, err)
	assert.Len(t, pub.events, 2)
}

func TestSubmitClaimReturnsID(t *testing.T) {
	svc, _ := newService(time.Now())
	id, err := svc.SubmitClaim(context.Background(), wallet, 100, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
}

func TestListPagination(t *testing.T) {
	svc, _ := newService(time.Now())
	ctx := context.Background()
	for _, lvl := range []int{10, 25, 50} {
		_, err := svc.Submit(ctx, claims.Submission{WalletAddress: wallet, NFTLevel: lvl})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, claims.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	page, err = svc.List(ctx, claims.ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)

	page, err = svc.List(ctx, claims.ListFilter{Level: 99})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestListFilterNormalize(t *testing.T) {
	assert.Equal(t, claims.ListFilter{Limit: 100}, claims.ListFilter{}.Normalize())
	assert.Equal(t, claims.ListFilter{Limit: 1000}, claims.ListFilter{Limit: 5000, Offset: -3}.Normalize())
}

func TestStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc, _ := newService(now)
	ctx := context.Background()
	other := "0x" + "1111111111111111111111111111111111111111"
	for _, sub := range []claims.Submission{
		{WalletAddress: wallet, NFTLevel: 10},
		{WalletAddress: wallet, NFTLevel: 25},
		{WalletAddress: other, NFTLevel: 10},
	} {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalAddresses)
	assert.Equal(t, 2, st.UniqueWallets)
	assert.Equal(t, 3, st.RecentSubmissions)
	require.Len(t, st.LevelBreakdown, 2)
	assert.Equal(t, claims.LevelCount{Level: 10, Name: "Cedomis Bronze NFT", Count: 2}, st.LevelBreakdown[0])

	empty, _ := newService(now)
	st, err = empty.Stats(ctx)
	require.NoError(t, err)
	assert.NotNil(t, st.LevelBreakdown)
}
