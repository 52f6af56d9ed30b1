package eventsink

import "github.com/rs/zerolog"

// ZerologSink is the default Sink, backed by a zerolog.Logger the same way
// akz4ol-gatewayops' database.Postgres threads a zerolog.Logger field
// through its connection wrapper and calls Info().Str(...).Msg(...) on
// lifecycle events.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Emit(level Level, alias, collection, message string, fields Fields) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = s.logger.Debug()
	case LevelWarn:
		ev = s.logger.Warn()
	case LevelError:
		ev = s.logger.Error()
	default:
		ev = s.logger.Info()
	}

	if alias != "" {
		ev = ev.Str("db.alias", alias)
	}
	if collection != "" {
		ev = ev.Str("db.collection", collection)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}
