package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

const subscriptionQuery = `SELECT .* FROM "push_subscriptions".*JOIN subscription_bed_mapping sbm.*WHERE sbm\.bed_row_id = \$1`

func TestNewPayload(t *testing.T) {
	testCases := []struct {
		name     string
		in       countdown.Expiration
		traction int
		expected Payload
	}{
		{
			name: "regular bed with label",
			in:   countdown.Expiration{BedID: 3, StepLabel: "HP"},
			expected: Payload{
				Type: "STEP_EXPIRED", BedID: 3, Title: "3번 배드 치료 종료",
				Body: "[HP] 치료 시간이 종료되었습니다.", Action: "NEXT_STEP",
			},
		},
		{
			name:     "traction bed silent",
			in:       countdown.Expiration{BedID: 11, StepLabel: "견인", Silent: true},
			traction: 11,
			expected: Payload{
				Type: "STEP_EXPIRED", BedID: 11, Title: "견인치료 치료 종료",
				Body: "[견인] 치료 시간이 종료되었습니다.", Silent: true, Action: "NEXT_STEP",
			},
		},
		{
			name:     "traction station follows the configured bed count",
			in:       countdown.Expiration{BedID: 6},
			traction: 6,
			expected: Payload{
				Type: "STEP_EXPIRED", BedID: 6, Title: "견인치료 치료 종료",
				Body: "치료 시간이 종료되었습니다.", Action: "NEXT_STEP",
			},
		},
		{
			name:     "bed 11 is a regular bed when traction is elsewhere",
			in:       countdown.Expiration{BedID: 11},
			traction: 6,
			expected: Payload{
				Type: "STEP_EXPIRED", BedID: 11, Title: "11번 배드 치료 종료",
				Body: "치료 시간이 종료되었습니다.", Action: "NEXT_STEP",
			},
		},
		{
			name: "no label",
			in:   countdown.Expiration{BedID: 1},
			expected: Payload{
				Type: "STEP_EXPIRED", BedID: 1, Title: "1번 배드 치료 종료",
				Body: "치료 시간이 종료되었습니다.", Action: "NEXT_STEP",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NewPayload(tc.in, tc.traction))
		})
	}
}

func TestWorkerPool_ExpiredDoesNotBlock(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, 11, db, &webpush.Options{}, zap.NewNop())

	for i := 0; i < cap(wp.jobs)+5; i++ {
		wp.Expired(countdown.Expiration{BedID: 1})
	}
	assert.Len(t, wp.Jobs(), cap(wp.jobs))

	job := <-wp.Jobs()
	assert.Equal(t, 1, job.BedID)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, 11, gormDB, &webpush.Options{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		subscription := model.PushSubscription{
			Endpoint: "https://example.com/push",
			P256DH:   "test_p256dh",
			Auth:     "test_auth",
		}

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)

				var got Payload
				assert.NoError(t, json.Unmarshal(payload, &got))
				assert.Equal(t, 4, got.BedID)
				assert.Equal(t, "NEXT_STEP", got.Action)
				assert.Equal(t, "[ICT] 치료 시간이 종료되었습니다.", got.Body)
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow(subscription.Endpoint, subscription.P256DH, subscription.Auth, time.Now()))

		wp.Expired(countdown.Expiration{BedID: 4, StepLabel: "ICT"})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		subscription := model.PushSubscription{
			Endpoint: "https://example.com/expired",
			P256DH:   "test_p256dh_expired",
			Auth:     "test_auth_expired",
		}

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow(subscription.Endpoint, subscription.P256DH, subscription.Auth, time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs(subscription.Endpoint).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Expired(countdown.Expiration{BedID: 5, StepLabel: "HP"})

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("no notification expected")
				return nil, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}))

		wp.Expired(countdown.Expiration{BedID: 6})

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
	})
}
