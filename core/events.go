package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventLevelStarted     EventType = "level_started"
	EventLevelCompleted   EventType = "level_completed"
	EventLevelFailed      EventType = "level_failed"
	EventLevelUnlocked    EventType = "level_unlocked"
	EventRewardAvailable  EventType = "reward_available"
	EventRewardClaimed    EventType = "reward_claimed"
	EventAddressSubmitted EventType = "address_submitted"
)

// EventTypes lists every event type in publication order of a typical session.
func EventTypes() []EventType {
	return []EventType{
		EventLevelStarted, EventLevelCompleted, EventLevelFailed, EventLevelUnlocked,
		EventRewardAvailable, EventRewardClaimed, EventAddressSubmitted,
	}
}

// Event represents an immutable domain event.
type Event struct {
	Type      EventType      `json:"type"`
	Time      time.Time      `json:"time"`
	SessionID string         `json:"session_id,omitempty"`
	Level     int            `json:"level,omitempty"`
	Moves     int            `json:"moves,omitempty"`
	Stars     int            `json:"stars,omitempty"`
	Wallet    string         `json:"wallet,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewLevelStarted(session string, level int) Event {
	return Event{Type: EventLevelStarted, Time: time.Now().UTC(), SessionID: session, Level: level}
}

func NewLevelCompleted(session string, level, moves, stars int) Event {
	return Event{Type: EventLevelCompleted, Time: time.Now().UTC(), SessionID: session, Level: level, Moves: moves, Stars: stars}
}

func NewLevelFailed(session string, level, moves int, reason string) Event {
	return Event{Type: EventLevelFailed, Time: time.Now().UTC(), SessionID: session, Level: level, Moves: moves, Metadata: map[string]any{"reason": reason}}
}

func NewLevelUnlocked(session string, level int) Event {
	return Event{Type: EventLevelUnlocked, Time: time.Now().UTC(), SessionID: session, Level: level}
}

func NewRewardAvailable(session string, level int) Event {
	return Event{Type: EventRewardAvailable, Time: time.Now().UTC(), SessionID: session, Level: level}
}

func NewRewardClaimed(session string, level int, wallet string) Event {
	return Event{Type: EventRewardClaimed, Time: time.Now().UTC(), SessionID: session, Level: level, Wallet: wallet}
}

// NewAddressSubmitted is emitted server-side when a claim row is stored.
func NewAddressSubmitted(session string, level int, wallet string, id int64) Event {
	return Event{Type: EventAddressSubmitted, Time: time.Now().UTC(), SessionID: session, Level: level, Wallet: wallet, Metadata: map[string]any{"id": id}}
}
