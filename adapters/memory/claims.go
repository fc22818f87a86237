package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tilequest/claims"
)

type claimKey struct {
	wallet string
	level  int
}

// ClaimStore is an in-memory claims.Repository for tests and single-node demos.
type ClaimStore struct {
	mu     sync.RWMutex
	rows   []claims.Address
	index  map[claimKey]struct{}
	nextID int64
}

func NewClaimStore() *ClaimStore {
	return &ClaimStore{index: map[claimKey]struct{}{}}
}

func (c *ClaimStore) Insert(_ context.Context, a *claims.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := claimKey{a.WalletAddress, a.NFTLevel}
	if _, ok := c.index[k]; ok {
		return claims.ErrDuplicate
	}
	c.nextID++
	a.ID = c.nextID
	c.index[k] = struct{}{}
	c.rows = append(c.rows, *a)
	return nil
}

func (c *ClaimStore) Exists(_ context.Context, wallet string, level int) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[claimKey{wallet, level}]
	return ok, nil
}

func (c *ClaimStore) List(_ context.Context, f claims.ListFilter) ([]claims.Address, int, error) {
	c.mu.RLock()
	matched := make([]claims.Address, 0, len(c.rows))
	for _, r := range c.rows {
		if f.Level != 0 && r.NFTLevel != f.Level {
			continue
		}
		if f.Address != "" && r.WalletAddress != f.Address {
			continue
		}
		matched = append(matched, r)
	}
	c.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	total := len(matched)
	if f.Offset >= total {
		return []claims.Address{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}

func (c *ClaimStore) Stats(_ context.Context, since time.Time) (claims.Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var st claims.Stats
	wallets := map[string]struct{}{}
	byLevel := map[int]*claims.LevelCount{}
	for _, r := range c.rows {
		st.TotalAddresses++
		wallets[r.WalletAddress] = struct{}{}
		if !r.SubmittedAt.Before(since) {
			st.RecentSubmissions++
		}
		lc, ok := byLevel[r.NFTLevel]
		if !ok {
			lc = &claims.LevelCount{Level: r.NFTLevel, Name: r.NFTName}
			byLevel[r.NFTLevel] = lc
		}
		lc.Count++
	}
	st.UniqueWallets = len(wallets)
	st.LevelBreakdown = make([]claims.LevelCount, 0, len(byLevel))
	for _, lc := range byLevel {
		st.LevelBreakdown = append(st.LevelBreakdown, *lc)
	}
	sort.Slice(st.LevelBreakdown, func(i, j int) bool { return st.LevelBreakdown[i].Level < st.LevelBreakdown[j].Level })
	return st, nil
}

var _ claims.Repository = (*ClaimStore)(nil)
