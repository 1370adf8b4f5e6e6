package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"brewpulse/internal/model"
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

// Announcement is a new-order notice for the barista's devices.
type Announcement struct {
	OrderID    string `json:"orderId"`
	GuestName  string `json:"guestName"`
	CoffeeType string `json:"coffeeType"`
	Others     int    `json:"others"`
}

// Body is the human readable notification text.
func (a Announcement) Body() string {
	body := fmt.Sprintf("%s would like %s", a.GuestName, a.CoffeeType)
	if a.Others > 0 {
		body += fmt.Sprintf(" (+%d more)", a.Others)
	}
	return body
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Announcement
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Announcement
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Announcement, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case a := <-wp.jobs:
			log.Printf("Worker %d announcing order %s", id, a.OrderID)
			wp.broadcast(ctx, a)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an announcement. It blocks while every worker is busy and
// the queue is full.
func (wp *WorkerPool) Dispatch(a Announcement) {
	wp.jobs <- a
}

// broadcast sends the announcement to every registered admin device.
func (wp *WorkerPool) broadcast(ctx context.Context, a Announcement) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching push subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{Title: "New order", Body: a.Body(), Announcement: a})
	if err != nil {
		log.Printf("Error encoding announcement for order %s: %v", a.OrderID, err)
		return
	}

	log.Printf("Sending %d notifications for order %s", len(subscriptions), a.OrderID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification and forgets devices
// the push service no longer knows.
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
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
