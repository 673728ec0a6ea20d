// Package notification delivers OTP codes to guardians over email,
// SMS, and web push. All channels are fire and forget: failures are
// logged and never surfaced to the check-in flow.
package notification

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"kidsclub-backend/config"
	"kidsclub-backend/internal/checkin"
	"kidsclub-backend/internal/model"
)

// Job is one OTP delivery request.
type Job struct {
	Session *model.CheckinSession
	Purpose string
	Code    string
}

// WorkerPool manages a pool of workers for delivering OTP
// notifications.
type WorkerPool struct {
	size       int
	jobs       chan Job
	db         *gorm.DB
	cfg        config.NotifyConfig
	ttlMinutes int

	email EmailSender
	sms   SMSSender
	push  PushSender
}

// NewWorkerPool creates a new worker pool with the real channel
// senders.
func NewWorkerPool(size int, db *gorm.DB, cfg config.NotifyConfig, ttlMinutes int) *WorkerPool {
	return &WorkerPool{
		size:       size,
		jobs:       make(chan Job, size), // Buffered channel
		db:         db,
		cfg:        cfg,
		ttlMinutes: ttlMinutes,
		email:      NewSMTPSender(cfg.Email),
		sms:        NewGatewaySender(cfg.SMS),
		push:       &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.deliver(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// NotifyOTP queues an OTP delivery. Implements checkin.Notifier.
func (wp *WorkerPool) NotifyOTP(session *model.CheckinSession, purpose, code string) {
	wp.jobs <- Job{Session: session, Purpose: purpose, Code: code}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// deliver fans one OTP out to every configured channel the guardian
// can receive.
func (wp *WorkerPool) deliver(ctx context.Context, job Job) {
	child := job.Session.Child
	subject, body := wp.compose(job)

	if wp.cfg.Email.Enabled && child.GuardianEmail != "" {
		if err := wp.email.Send(child.GuardianEmail, subject, body); err != nil {
			log.Printf("Error sending OTP email to %s: %v", child.GuardianEmail, err)
		}
	}

	if wp.cfg.SMS.Enabled && child.GuardianPhone != "" {
		message := fmt.Sprintf("Kids Club %s OTP for %s: %s (valid %d minutes)",
			verb(job.Purpose), child.Name, job.Code, wp.ttlMinutes)
		if err := wp.sms.Send(ctx, child.GuardianPhone, message); err != nil {
			log.Printf("Error sending OTP SMS to %s: %v", child.GuardianPhone, err)
		}
	}

	if wp.cfg.Push.Enabled && child.GuardianEmail != "" {
		wp.sendPush(ctx, child.GuardianEmail, []byte(subject+": "+job.Code))
	}
}

// compose builds the email subject and body for an OTP job.
func (wp *WorkerPool) compose(job Job) (subject, body string) {
	child := job.Session.Child
	subject = fmt.Sprintf("%s OTP for %s", titleVerb(job.Purpose), child.Name)

	var action string
	if job.Purpose == checkin.PurposeCheckout {
		action = fmt.Sprintf("Your child %s is ready to check out from the Kids Club.", child.Name)
	} else {
		action = fmt.Sprintf("Your child %s is requesting to check in to the Kids Club.", child.Name)
	}

	body = fmt.Sprintf(`Dear %s,

%s

Your OTP for %s verification is: %s

This OTP is valid for %d minutes only.

Best regards,
Kids Club Team
`, child.GuardianName, action, verb(job.Purpose), job.Code, wp.ttlMinutes)
	return subject, body
}

func verb(purpose string) string {
	if purpose == checkin.PurposeCheckout {
		return "check-out"
	}
	return "check-in"
}

func titleVerb(purpose string) string {
	if purpose == checkin.PurposeCheckout {
		return "Check-out"
	}
	return "Check-in"
}
