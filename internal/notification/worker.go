package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body delivered to the service worker. The NEXT_STEP
// action lets staff advance the bed straight from the notification.
type Payload struct {
	Type   string `json:"type"`
	BedID  int    `json:"bedId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Silent bool   `json:"silent"`
	Action string `json:"action"`
}

// NewPayload builds the notification for an expired step. tractionBed is the
// id of the dedicated traction station, or 0 when there is none.
func NewPayload(e countdown.Expiration, tractionBed int) Payload {
	title := fmt.Sprintf("%d번 배드 치료 종료", e.BedID)
	if tractionBed > 0 && e.BedID == tractionBed {
		title = "견인치료 치료 종료"
	}
	body := "치료 시간이 종료되었습니다."
	if e.StepLabel != "" {
		body = fmt.Sprintf("[%s] %s", e.StepLabel, body)
	}
	return Payload{
		Type:   "STEP_EXPIRED",
		BedID:  e.BedID,
		Title:  title,
		Body:   body,
		Silent: e.Silent,
		Action: "NEXT_STEP",
	}
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size        int
	tractionBed int
	jobs        chan countdown.Expiration
	db          *gorm.DB
	webpush     *webpush.Options
	sender      NotificationSender
	logger      *zap.Logger
}

// NewWorkerPool creates a new worker pool. tractionBed is passed to NewPayload.
func NewWorkerPool(size, tractionBed int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:        size,
		tractionBed: tractionBed,
		jobs:        make(chan countdown.Expiration, size*16),
		db:          db,
		webpush:     webpushOptions,
		sender:      &WebPushSender{},
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Info("push worker started", zap.Int("worker", id))
	for {
		select {
		case e := <-wp.jobs:
			wp.logger.Debug("push worker processing expiration", zap.Int("worker", id), zap.Int("bed_id", e.BedID))
			wp.sendNotificationsForBed(ctx, e)
		case <-ctx.Done():
			wp.logger.Info("push worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Expired queues a push job. It never blocks the countdown driver; when the
// queue is full the job is dropped.
func (wp *WorkerPool) Expired(e countdown.Expiration) {
	select {
	case wp.jobs <- e:
	default:
		wp.logger.Warn("push queue full, dropping expiration", zap.Int("bed_id", e.BedID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan countdown.Expiration {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForBed(ctx context.Context, e countdown.Expiration) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_bed_mapping sbm ON sbm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sbm.bed_row_id = ?", e.BedID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions", zap.Int("bed_id", e.BedID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewPayload(e, wp.tractionBed))
	if err != nil {
		wp.logger.Error("failed to encode push payload", zap.Int("bed_id", e.BedID), zap.Error(err))
		return
	}

	wp.logger.Info("sending push notifications", zap.Int("bed_id", e.BedID), zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error("failed to send push notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
