package services

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/sms"
	"sweepsapp/utils"

	"github.com/sirupsen/logrus"
)

// Notifier is what the other services use to reach players by SMS.
type Notifier interface {
	Send(ctx context.Context, msisdn, template string, args ...interface{}) error
	SendNow(ctx context.Context, msisdn, template string, args ...interface{}) error
}

const (
	smsBatchSize   = 50
	smsMaxAttempts = 5
	smsClaimLease  = 5 * time.Minute
)

type NotifyService struct {
	store  SMSStore
	sender sms.Sender
}

func NewNotifyService(store SMSStore, sender sms.Sender) *NotifyService {
	return &NotifyService{store: store, sender: sender}
}

func render(template string, args ...interface{}) (string, error) {
	text, ok := utils.Texts[template]
	if !ok {
		return "", fmt.Errorf("unknown sms template %q", template)
	}
	if len(args) == 0 {
		return text, nil
	}
	return fmt.Sprintf(text, args...), nil
}

// Send queues a templated message for the drain job.
func (s *NotifyService) Send(ctx context.Context, msisdn, template string, args ...interface{}) error {
	msg, err := render(template, args...)
	if err != nil {
		return err
	}
	if _, err := s.store.InsertIntoSMSQueue(ctx, msisdn, msg, template); err != nil {
		return err
	}
	return nil
}

// SendNow delivers immediately and falls back to the queue when the provider
// fails, so a flaky provider only delays the message.
func (s *NotifyService) SendNow(ctx context.Context, msisdn, template string, args ...interface{}) error {
	msg, err := render(template, args...)
	if err != nil {
		return err
	}
	if _, err := s.sender.Send(ctx, msisdn, msg); err != nil {
		logrus.WithFields(logrus.Fields{"msisdn": utils.MaskMsisdn(msisdn), "template": template}).
			WithError(err).Warn("Direct SMS failed, queueing")
		if _, qerr := s.store.InsertIntoSMSQueue(ctx, msisdn, msg, template); qerr != nil {
			return fmt.Errorf("failed to send or queue sms: %w", qerr)
		}
	}
	return nil
}

// DrainQueue sends one batch of queued messages. Claims older than the
// lease are put back first so a crashed drainer does not strand them.
func (s *NotifyService) DrainQueue(ctx context.Context) (sent, failed int, err error) {
	if n, err := s.store.RequeueStaleSMS(ctx, smsClaimLease); err != nil {
		return 0, 0, err
	} else if n > 0 {
		logrus.WithField("count", n).Warn("Requeued stale SMS claims")
	}
	batch, err := s.store.ClaimSMSBatch(ctx, smsBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range batch {
		_, sendErr := s.sender.Send(ctx, m.Msisdn, m.Message)
		if sendErr != nil {
			failed++
		} else {
			sent++
		}
		if err := s.store.MarkSMS(ctx, m.ID, sendErr, smsMaxAttempts); err != nil {
			return sent, failed, err
		}
	}
	if len(batch) > 0 {
		logrus.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("SMS queue drained")
	}
	return sent, failed, nil
}
