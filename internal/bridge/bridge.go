package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/model"
)

var errBadTopic = errors.New("unexpected topic")

// Transport is the subset of the MQTT client the bridge needs.
type Transport interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// Advancer moves a bed to its next step.
type Advancer interface {
	AdvanceStep(id int) (model.Bed, bool, error)
}

// Bridge connects bedside buttons and displays over MQTT. Buttons publish to
// <prefix>/beds/<id>/advance; expirations go out on <prefix>/beds/<id>/expired.
type Bridge struct {
	client   Transport
	advancer Advancer
	prefix   string
	qos      byte
	outbox   chan countdown.Expiration
	logger   *zap.Logger
}

// New creates a bridge.
func New(client Transport, advancer Advancer, prefix string, qos byte, logger *zap.Logger) *Bridge {
	return &Bridge{
		client:   client,
		advancer: advancer,
		prefix:   strings.TrimSuffix(prefix, "/"),
		qos:      qos,
		outbox:   make(chan countdown.Expiration, 64),
		logger:   logger,
	}
}

func (b *Bridge) advanceFilter() string {
	return b.prefix + "/beds/+/advance"
}

// Start subscribes to advance commands and publishes expirations until ctx
// is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	filter := b.advanceFilter()
	if err := b.client.Subscribe(filter, b.qos, b.handleAdvance); err != nil {
		return fmt.Errorf("failed to subscribe to advance topic: %w", err)
	}
	b.logger.Info("mqtt bridge started", zap.String("topic", filter))

	for {
		select {
		case <-ctx.Done():
			if err := b.client.Unsubscribe(filter); err != nil {
				b.logger.Error("failed to unsubscribe", zap.Error(err))
			}
			b.logger.Info("mqtt bridge stopped")
			return nil
		case e := <-b.outbox:
			b.publish(e)
		}
	}
}

// Expired queues an expiration for publishing without blocking the caller.
func (b *Bridge) Expired(e countdown.Expiration) {
	select {
	case b.outbox <- e:
	default:
		b.logger.Warn("mqtt outbox full, dropping expiration", zap.Int("bed_id", e.BedID))
	}
}

func (b *Bridge) publish(e countdown.Expiration) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("failed to encode expiration", zap.Error(err))
		return
	}
	topic := fmt.Sprintf("%s/beds/%d/expired", b.prefix, e.BedID)
	if err := b.client.Publish(topic, b.qos, false, payload); err != nil {
		b.logger.Error("failed to publish expiration", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *Bridge) handleAdvance(topic string, _ []byte) error {
	id, err := ParseBedTopic(b.prefix, topic, "advance")
	if err != nil {
		return err
	}
	bed, applied, err := b.advancer.AdvanceStep(id)
	if err != nil {
		return fmt.Errorf("advance bed %d: %w", id, err)
	}
	b.logger.Info("bed advanced from mqtt",
		zap.Int("bed_id", id),
		zap.Bool("applied", applied),
		zap.String("status", string(bed.Status)),
	)
	return nil
}

// ParseBedTopic extracts the bed id from <prefix>/beds/<id>/<action>.
func ParseBedTopic(prefix, topic, action string) (int, error) {
	rest, ok := strings.CutPrefix(topic, strings.TrimSuffix(prefix, "/")+"/beds/")
	if !ok {
		return 0, fmt.Errorf("%w: %s", errBadTopic, topic)
	}
	idPart, act, ok := strings.Cut(rest, "/")
	if !ok || act != action {
		return 0, fmt.Errorf("%w: %s", errBadTopic, topic)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad bed id in %s", errBadTopic, topic)
	}
	return id, nil
}
