package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

const LogStream = "logs"

// SSEPublisher is the part of *sse.Server the writer needs.
type SSEPublisher interface {
	Publish(id string, event *sse.Event)
}

// LogMessage is what clients of the log stream receive.
type LogMessage struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (m LogMessage) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// SSEWriter turns zerolog JSON lines into human readable LogMessages and
// publishes them on the log stream.
type SSEWriter struct {
	SSE        SSEPublisher
	TimeFormat string
}

func NewSSEWriter(publisher SSEPublisher) SSEWriter {
	return SSEWriter{SSE: publisher, TimeFormat: time.RFC3339}
}

var levelNames = map[string]string{
	zerolog.LevelTraceValue: "TRC",
	zerolog.LevelDebugValue: "DBG",
	zerolog.LevelInfoValue:  "INF",
	zerolog.LevelWarnValue:  "WRN",
	zerolog.LevelErrorValue: "ERR",
	zerolog.LevelFatalValue: "FTL",
	zerolog.LevelPanicValue: "PNC",
}

func (w SSEWriter) Write(p []byte) (int, error) {
	if w.SSE == nil {
		return 0, nil
	}

	var evt map[string]any
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, errors.Wrap(err, "could not decode log event")
	}

	msg := LogMessage{
		Time:    w.formatTime(evt[zerolog.TimestampFieldName]),
		Level:   formatLevel(evt[zerolog.LevelFieldName]),
		Message: formatMessage(evt),
	}

	data, err := msg.Bytes()
	if err != nil {
		return 0, errors.Wrap(err, "could not encode log message")
	}

	w.SSE.Publish(LogStream, &sse.Event{Data: data})

	return len(p), nil
}

func (w SSEWriter) formatTime(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return s
	}
	return t.Local().Format(w.TimeFormat)
}

func formatLevel(v any) string {
	s, ok := v.(string)
	if !ok {
		return "???"
	}
	if name, ok := levelNames[s]; ok {
		return name
	}
	return strings.ToUpper(s)
}

// formatMessage renders the message followed by the remaining fields in
// key order.
func formatMessage(evt map[string]any) string {
	var b strings.Builder

	if m, ok := evt[zerolog.MessageFieldName].(string); ok {
		b.WriteString(m)
	}

	keys := make([]string, 0, len(evt))
	for k := range evt {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(evt[k]))
	}

	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		if needsQuote(t) {
			return fmt.Sprintf("%q", t)
		}
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func needsQuote(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == ' ' || r == '"' || r == '\\' {
			return true
		}
	}
	return false
}
