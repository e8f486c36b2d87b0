// Package telemetry carries the pool's lifecycle events to whoever is
// watching: the daemon log and any subscribed websocket clients.
package telemetry

import (
	"log"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventServerSpawn     EventType = "server_spawn"
	EventServerReuse     EventType = "server_reuse"
	EventServerTerminate EventType = "server_terminate"
	EventServerDead      EventType = "server_dead"
	EventClientRun       EventType = "client_run"
)

// Event is one pool or runner lifecycle observation. CorrelationID ties the
// event back to the build invocation that caused it.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Server        string    `json:"server,omitempty"`
	CorrelationID string    `json:"correlationID,omitempty"`
	Port          int       `json:"port,omitempty"`
	Pid           int       `json:"pid,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Time          time.Time `json:"time"`
}

func NewEvent(typ EventType, server, correlationID string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		Server:        server,
		CorrelationID: correlationID,
		Time:          time.Now(),
	}
}

// Sink accepts events. Emit must not block the caller.
type Sink interface {
	Emit(Event)
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Emit(e Event) {
	log.Printf("event %s server=%s port=%d pid=%d correlation=%s %s",
		e.Type, e.Server, e.Port, e.Pid, e.CorrelationID, e.Detail)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans events out.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder retains events for tests.
type Recorder struct {
	ch chan Event
}

func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan Event, 256)}
}

func (r *Recorder) Emit(e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Events drains everything recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
