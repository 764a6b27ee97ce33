// Package notify turns simulation events and storage failures into
// user-visible notifications and delivers them to a sink.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/matchstick/internal/event"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a toast-style message for the player.
type Notification struct {
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	EventID   string    `json:"event_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives notifications. Implementations must be safe for
// concurrent use; Notify must not block on slow consumers.
type Sink interface {
	Notify(n Notification)
}

// FromEvent maps an event to a notification. High-frequency events
// (production, trades, upkeep) return false; they belong in the activity
// feed, not in toasts.
func FromEvent(e event.Event) (Notification, bool) {
	n := Notification{Level: LevelInfo, EventID: e.ID, Timestamp: e.Timestamp}

	switch p := e.Payload.(type) {
	case event.Produced, event.Sold, event.MaintenancePaid, event.MultiplierRemoved:
		return Notification{}, false
	case event.AutoClickerPurchased:
		n.Level = LevelSuccess
		n.Title = "Auto-clicker purchased"
		n.Message = fmt.Sprintf("%s is now level %d (cost $%.2f)", p.ID, p.Level, p.Cost)
	case event.FacilityPurchased:
		n.Level = LevelSuccess
		n.Title = "Facility built"
		n.Message = fmt.Sprintf("You now own %d %s (cost $%.2f)", p.Owned, p.ID, p.Cost)
	case event.AchievementUnlocked:
		n.Level = LevelSuccess
		n.Title = "Achievement unlocked: " + p.Name
		n.Message = fmt.Sprintf("+%d points", p.Points)
		if p.RewardMoney > 0 {
			n.Message += fmt.Sprintf(", +$%.2f", p.RewardMoney)
		}
	case event.MaintenanceWarning:
		n.Level = LevelWarning
		n.Title = "Maintenance unpaid"
		n.Message = fmt.Sprintf("Upkeep of $%.2f could not be paid; facilities are degrading (lowest efficiency %.0f%%)",
			p.Required, p.MinEfficiency*100)
	case event.ConditionStarted:
		n.Title = "Market: " + p.ID
		n.Message = p.Description
	case event.ConditionEnded:
		n.Title = "Market settled"
		n.Message = fmt.Sprintf("%s has ended", p.ID)
	case event.MultiplierApplied:
		n.Title = "Production boost"
		n.Message = fmt.Sprintf("x%g production", p.Value)
		if p.Duration > 0 {
			n.Message += " for " + p.Duration.String()
		}
	case event.PhaseAdvanced:
		n.Level = LevelSuccess
		n.Title = "New phase"
		n.Message = fmt.Sprintf("Phase %d reached", p.To)
	case event.StateLoaded:
		n.Title = "Game loaded"
		if p.Partial {
			n.Message = "Partial state applied"
		}
	case event.StateReset:
		n.Title = "New game"
	default:
		return Notification{}, false
	}
	return n, true
}

// Forward returns an event handler that delivers the notification form of
// each event to sink. It is meant for state.Store.Subscribe.
func Forward(sink Sink) func(event.Event) {
	return func(e event.Event) {
		if n, ok := FromEvent(e); ok {
			sink.Notify(n)
		}
	}
}

// Failure builds an error notification for an operation that failed
// outside gameplay, typically storage.
func Failure(op string, err error, now time.Time) Notification {
	return Notification{
		Level:     LevelError,
		Title:     op + " failed",
		Message:   err.Error(),
		Timestamp: now,
	}
}

// SlogSink writes notifications to a logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (s SlogSink) Notify(n Notification) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	lvl := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	}
	l.Log(context.Background(), lvl, n.Title, "message", n.Message, "severity", string(n.Level), "event_id", n.EventID)
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

// Notify delivers n to each sink.
func (m Multi) Notify(n Notification) {
	for _, s := range m {
		s.Notify(n)
	}
}

// Recorder keeps every notification in memory.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	got []Notification
}

// Notify appends n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

// All returns a copy of the recorded notifications in delivery order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.got))
	copy(out, r.got)
	return out
}

// Titles returns the recorded titles in delivery order.
func (r *Recorder) Titles() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, n := range all {
		out[i] = n.Title
	}
	return out
}
