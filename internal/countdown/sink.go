package countdown

import (
	"go.uber.org/zap"
)

// Expiration is emitted once when a bed's timed step reaches zero.
type Expiration struct {
	BedID     int    `json:"bedId"`
	StepLabel string `json:"stepLabel,omitempty"`
	Silent    bool   `json:"silent"`
}

// Sink consumes expirations. Implementations must not block the driver.
type Sink interface {
	Expired(e Expiration)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e Expiration)

// Expired calls f(e).
func (f SinkFunc) Expired(e Expiration) { f(e) }

// Sinks fans an expiration out to every sink in order.
type Sinks []Sink

// Expired implements Sink.
func (s Sinks) Expired(e Expiration) {
	for _, sink := range s {
		if sink != nil {
			sink.Expired(e)
		}
	}
}

// LogSink records expirations in the service log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Expired implements Sink.
func (s *LogSink) Expired(e Expiration) {
	s.logger.Info("treatment step expired",
		zap.Int("bed_id", e.BedID),
		zap.String("step", e.StepLabel),
		zap.Bool("silent", e.Silent),
	)
}
