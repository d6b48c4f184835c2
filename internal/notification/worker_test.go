package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carwash-bay-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// newTestDB creates a per-test in-memory database with the push models
// migrated. The shared cache keeps the database alive across pooled
// connections.
func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Bay{}, &model.PushSubscription{}))
	return db
}

func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	// Dispatch a job
	wp.Dispatch(123)

	// Check if the job is in the channel
	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestSendNotificationsForBay(t *testing.T) {
	db := newTestDB(t)

	bay := model.Bay{ID: 1, Name: "bay-1"}
	require.NoError(t, db.Create(&bay).Error)
	sub := model.PushSubscription{
		Endpoint: "https://push.example.com/sub-1",
		P256DH:   "p256dh-key",
		Auth:     "auth-secret",
		Bays:     []*model.Bay{&bay},
	}
	require.NoError(t, db.Create(&sub).Error)

	var payloads [][]byte
	wp := NewWorkerPool(1, db, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error) {
			payloads = append(payloads, payload)
			assert.Equal(t, sub.Endpoint, s.Endpoint)
			return pushResponse(http.StatusCreated), nil
		},
	}

	wp.notifySubscribers(context.Background(), 1)

	require.Len(t, payloads, 1)
	var sent availablePayload
	require.NoError(t, json.Unmarshal(payloads[0], &sent))
	assert.Equal(t, int64(1), sent.BayID)
	assert.Contains(t, sent.Body, "bay-1")
	assert.Contains(t, sent.Body, "available")
}

func TestSendNotification_DeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)

	bay := model.Bay{ID: 1, Name: "bay-1"}
	require.NoError(t, db.Create(&bay).Error)
	sub := model.PushSubscription{
		Endpoint: "https://push.example.com/expired",
		P256DH:   "p256dh-key",
		Auth:     "auth-secret",
		Bays:     []*model.Bay{&bay},
	}
	require.NoError(t, db.Create(&sub).Error)

	wp := NewWorkerPool(1, db, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error) {
			return pushResponse(http.StatusGone), nil
		},
	}

	wp.notifySubscribers(context.Background(), 1)

	var count int64
	require.NoError(t, db.Model(&model.PushSubscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSendNotificationsForBay_NoSubscribers(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.Bay{ID: 2, Name: "bay-2"}).Error)

	called := false
	wp := NewWorkerPool(1, db, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error) {
			called = true
			return pushResponse(http.StatusCreated), nil
		},
	}

	wp.notifySubscribers(context.Background(), 2)
	assert.False(t, called)
}

func TestNotifySubscribers_UnknownBay(t *testing.T) {
	db := newTestDB(t)

	called := false
	wp := NewWorkerPool(1, db, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error) {
			called = true
			return pushResponse(http.StatusCreated), nil
		},
	}

	wp.notifySubscribers(context.Background(), 404)
	assert.False(t, called)
}
