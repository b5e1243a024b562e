// Package report writes the JSONL event log of search, snatch and
// post-processing decisions and renders status summaries.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType represents the type of event
type EventType string

const (
	EventSearch      EventType = "search"
	EventReject      EventType = "reject"
	EventSnatch      EventType = "snatch"
	EventPostProcess EventType = "postprocess"
	EventScan        EventType = "scan"
	EventImport      EventType = "import"
	EventError       EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	if _, ok := levelPriority[EventLevel(s)]; ok {
		return EventLevel(s)
	}
	return LevelInfo
}

// Event is one line of the event log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	AlbumID   string            `json:"album_id,omitempty"`
	ArtistID  string            `json:"artist_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	URL       string            `json:"url,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Score     float64           `json:"score,omitempty"`
	SrcPath   string            `json:"src_path,omitempty"`
	DestPath  string            `json:"dest_path,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Count     int               `json:"count,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger appends events to a JSONL file. A nil *EventLogger is valid
// and drops everything.
type EventLogger struct {
	file     *os.File
	encoder  *jsoniter.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger opens (or creates) path for appending. Events below
// minLevel are skipped.
func NewEventLogger(path string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSearch logs the outcome of one album search
func (l *EventLogger) LogSearch(albumID, term string, found, accepted int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSearch,
		AlbumID:  albumID,
		Title:    term,
		Count:    accepted,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"found": strconv.Itoa(found),
		},
	})
}

// LogReject logs a result dropped by the filter
func (l *EventLogger) LogReject(albumID, title, url, provider, reason string) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventReject,
		AlbumID:  albumID,
		Title:    title,
		URL:      url,
		Provider: provider,
		Reason:   reason,
	})
}

// LogSnatch logs a result handed to a download client
func (l *EventLogger) LogSnatch(albumID, title, url, provider, client string, score float64, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventSnatch,
		AlbumID:  albumID,
		Title:    title,
		URL:      url,
		Provider: provider,
		Score:    score,
		Error:    errMsg,
		Extra: map[string]string{
			"client": client,
		},
	})
}

// LogPostProcess logs a finished download being moved into the library
func (l *EventLogger) LogPostProcess(albumID, srcPath, destPath string, files int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventPostProcess,
		AlbumID:  albumID,
		SrcPath:  srcPath,
		DestPath: destPath,
		Count:    files,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogScan logs a library scan
func (l *EventLogger) LogScan(root string, files, matched int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventScan,
		SrcPath:  root,
		Count:    files,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"matched": strconv.Itoa(matched),
		},
	})
}

// LogImport logs an artist import or refresh
func (l *EventLogger) LogImport(artistID, name string, albums int, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventImport,
		ArtistID: artistID,
		Title:    name,
		Count:    albums,
		Error:    errMsg,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, albumID string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		AlbumID: albumID,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
