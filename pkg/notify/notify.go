// Package notify carries user-facing notifications (the toast/snackbar of a
// browser UI) from the form engine and workflow session to whatever front end
// is driving them.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Level grades a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one notification.
type Message struct {
	Level Level
	Text  string
}

// Sink receives notifications.
type Sink interface {
	Notify(level Level, text string)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(level Level, text string)

// Notify calls the underlying function.
func (fn SinkFunc) Notify(level Level, text string) {
	fn(level, text)
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Level, string) {})

// LogSink writes notifications through logrus.
type LogSink struct {
	Logger *logrus.Entry
}

// Notify logs the message at the matching logrus level.
func (s LogSink) Notify(level Level, text string) {
	if s.Logger == nil {
		return
	}
	entry := s.Logger.WithField("notification", string(level))
	switch level {
	case LevelError:
		entry.Error(text)
	case LevelWarning:
		entry.Warn(text)
	default:
		entry.Info(text)
	}
}

// Recorder keeps notifications in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify records the message.
func (r *Recorder) Notify(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text})
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Count returns how many notifications of the given level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Level == level {
			n++
		}
	}
	return n
}

// Multi fans notifications out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(level Level, text string) {
		for _, sink := range sinks {
			if sink != nil {
				sink.Notify(level, text)
			}
		}
	})
}
