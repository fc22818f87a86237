package core

import "context"

// Rule determines whether given progress and trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, record ProgressRecord, trigger Event) []Event
}

// UnlockRule emits a level unlock when a completion opens a new level.
// Applying the unlock is left to the caller, as with any derived event.
type UnlockRule struct{}

func (UnlockRule) Evaluate(_ context.Context, record ProgressRecord, trigger Event) []Event {
	if trigger.Type != EventLevelCompleted || trigger.Level >= MaxLevel {
		return nil
	}
	next := trigger.Level + 1
	if record.UnlockedLevels >= next {
		return nil
	}
	return []Event{NewLevelUnlocked(record.SessionID, next)}
}

// RewardRule emits reward availability when a milestone level is completed and unclaimed.
type RewardRule struct{}

func (RewardRule) Evaluate(_ context.Context, record ProgressRecord, trigger Event) []Event {
	if trigger.Type != EventLevelCompleted || !IsRewardTier(trigger.Level) || record.HasClaimed(trigger.Level) {
		return nil
	}
	return []Event{NewRewardAvailable(record.SessionID, trigger.Level)}
}
