package eventsink

// NoopSink discards every event, for callers who want silence.
type NoopSink struct{}

func (NoopSink) Emit(Level, string, string, string, Fields) {}
