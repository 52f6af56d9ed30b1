package eventsink

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	level      Level
	alias      string
	collection string
	message    string
	fields     Fields
}

type recordingSink struct {
	events []recordedEvent
}

func (s *recordingSink) Emit(level Level, alias, collection, message string, fields Fields) {
	s.events = append(s.events, recordedEvent{level, alias, collection, message, fields})
}

func TestEventBuilderEmitsWithFields(t *testing.T) {
	sink := &recordingSink{}
	Info(sink).Alias("primary").Collection("users").Field("count", 3).Msg("find completed")

	require.Len(t, sink.events, 1)
	got := sink.events[0]
	assert.Equal(t, LevelInfo, got.level)
	assert.Equal(t, "primary", got.alias)
	assert.Equal(t, "users", got.collection)
	assert.Equal(t, "find completed", got.message)
	assert.Equal(t, 3, got.fields["count"])
}

func TestEventBuilderWithNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Warn(nil).Alias("primary").Msg("should be dropped silently")
	})
}

func TestNoopSinkDiscardsEverything(t *testing.T) {
	var sink Sink = NoopSink{}
	assert.NotPanics(t, func() {
		Error(sink).Collection("orders").Field("err", "boom").Msg("write failed")
	})
}

func TestZerologSinkWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sink := NewZerologSink(logger)

	Error(sink).Alias("primary").Collection("users").Field("retries", 2).Msg("create failed")

	out := buf.String()
	assert.Contains(t, out, `"db.alias":"primary"`)
	assert.Contains(t, out, `"db.collection":"users"`)
	assert.Contains(t, out, `"retries":2`)
	assert.Contains(t, out, `"message":"create failed"`)
}

func TestZerologSinkLevelMapping(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	sink := NewZerologSink(logger)

	Debug(sink).Msg("debug event")
	assert.Contains(t, buf.String(), `"level":"debug"`)
}
