package core

import "sort"

// RewardTier describes a milestone level eligible for an NFT claim.
type RewardTier struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
}

// RewardTiers is the fixed milestone set keyed by level.
var RewardTiers = map[int]RewardTier{
	10:  {Level: 10, Name: "Cedomis Bronze NFT", Icon: "🥉"},
	25:  {Level: 25, Name: "Cedomis Silver NFT", Icon: "🥈"},
	50:  {Level: 50, Name: "Cedomis Gold NFT", Icon: "🥇"},
	80:  {Level: 80, Name: "Cedomis Diamond NFT", Icon: "💎"},
	100: {Level: 100, Name: "Cedomis Legendary NFT", Icon: "👑"},
}

// IsRewardTier reports whether level is one of the milestone levels.
func IsRewardTier(level int) bool {
	_, ok := RewardTiers[level]
	return ok
}

// SortedTiers returns the reward tiers ordered by level.
func SortedTiers() []RewardTier {
	out := make([]RewardTier, 0, len(RewardTiers))
	for _, t := range RewardTiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// ClaimStatus is the display state of a reward tier for a player.
type ClaimStatus string

const (
	ClaimLocked    ClaimStatus = "locked"
	ClaimAvailable ClaimStatus = "available"
	ClaimClaimed   ClaimStatus = "claimed"
)

// TierStatus computes the claim status of tier for the record.
func TierStatus(r ProgressRecord, tier int) ClaimStatus {
	switch {
	case r.HasClaimed(tier):
		return ClaimClaimed
	case r.Completed(tier):
		return ClaimAvailable
	default:
		return ClaimLocked
	}
}
