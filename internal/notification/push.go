package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"kidsclub-backend/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the
// webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// sendPush pushes the payload to every browser the guardian has
// registered, pruning subscriptions the push service reports gone.
func (wp *WorkerPool) sendPush(ctx context.Context, guardianEmail string, payload []byte) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("guardian_email = ?", guardianEmail).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching push subscriptions for %s: %v", guardianEmail, err)
		return
	}

	options := &webpush.Options{
		VAPIDPublicKey:  wp.cfg.Push.PublicKey,
		VAPIDPrivateKey: wp.cfg.Push.PrivateKey,
		Subscriber:      wp.cfg.Push.Subject,
		TTL:             wp.cfg.Push.TTL,
	}

	for _, sub := range subscriptions {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}

		resp, err := wp.push.Send(payload, wpSub, options)
		if err != nil {
			log.Printf("Error sending push notification to %s: %v", sub.Endpoint, err)
			continue
		}
		resp.Body.Close()

		// Handle expired subscriptions
		if resp.StatusCode == http.StatusGone {
			log.Printf("Push subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
			if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
				log.Printf("Failed to delete expired push subscription %s: %v", sub.Endpoint, err)
			}
		}
	}
}
