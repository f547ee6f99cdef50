package feedback

import "log"

// Sink receives behavior outcomes.
type Sink interface {
	Record(behavior string, success bool)
}

// Safe wraps a sink so that its panics are logged and dropped.
type Safe struct {
	sink   Sink
	logger *log.Logger
}

// NewSafe wraps sink.
func NewSafe(sink Sink, logger *log.Logger) *Safe {
	if logger == nil {
		logger = log.Default()
	}
	return &Safe{sink: sink, logger: logger}
}

// Record forwards to the wrapped sink.
func (s *Safe) Record(behavior string, success bool) {
	if s.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("feedback sink panicked on %s: %v", behavior, r)
		}
	}()
	s.sink.Record(behavior, success)
}

// Fanout delivers every outcome to each sink in order.
type Fanout []Sink

// Record forwards to every sink.
func (f Fanout) Record(behavior string, success bool) {
	for _, s := range f {
		s.Record(behavior, success)
	}
}
