package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/voluntree/backend/config"
	"github.com/voluntree/backend/internal/notifications"
	"github.com/voluntree/backend/internal/onboarding"
	"github.com/voluntree/backend/pkg/queue"
)

// EmailProcessor processes queued email jobs: render, send over SMTP, track
// the outcome in email_logs.
type EmailProcessor struct {
	repo   *notifications.Repository
	queue  *queue.Queue
	email  config.EmailConfig
	logger *zap.Logger
}

// NewEmailProcessor creates an email delivery processor.
func NewEmailProcessor(repo *notifications.Repository, q *queue.Queue, email config.EmailConfig, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{repo: repo, queue: q, email: email, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		return fmt.Errorf("email job missing recipient")
	}

	if err := p.send(payload); err != nil {
		if payload.EmailLogID != nil {
			if dbErr := p.repo.MarkEmailFailed(ctx, *payload.EmailLogID, err.Error()); dbErr != nil {
				p.logger.Error("mark email failed errored", zap.Error(dbErr))
			}
		}
		return fmt.Errorf("send: %w", err)
	}

	if payload.EmailLogID != nil {
		if err := p.repo.MarkEmailSent(ctx, *payload.EmailLogID); err != nil {
			p.logger.Error("mark email sent errored", zap.Error(err))
		}
	}
	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType), zap.String("recipient", payload.RecipientEmail))
	return nil
}

// send delivers the message over SMTP. Without an SMTP host configured the
// message is logged and dropped, which keeps local development quiet.
func (p *EmailProcessor) send(payload queue.EmailPayload) error {
	if p.email.SMTPHost == "" {
		p.logger.Info("SMTP not configured, dropping email",
			zap.String("email_type", payload.EmailType), zap.String("recipient", payload.RecipientEmail))
		return nil
	}

	from := fmt.Sprintf("%s <%s>", p.email.FromName, p.email.FromAddress)
	msg := []byte("From: " + from + "\r\n" +
		"To: " + payload.RecipientEmail + "\r\n" +
		"Subject: " + payload.Subject + "\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + payload.BodyText + "\r\n")

	addr := fmt.Sprintf("%s:%d", p.email.SMTPHost, p.email.SMTPPort)
	var auth smtp.Auth
	if p.email.SMTPUser != "" {
		auth = smtp.PlainAuth("", p.email.SMTPUser, p.email.SMTPPass, p.email.SMTPHost)
	}
	return smtp.SendMail(addr, auth, p.email.FromAddress, []string{payload.RecipientEmail}, msg)
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// DraftJanitor periodically removes expired unconverted organization drafts
// along with their step records.
type DraftJanitor struct {
	drafts   *onboarding.DraftRepository
	interval time.Duration
	logger   *zap.Logger
}

// NewDraftJanitor creates a draft cleanup loop. interval <= 0 defaults to one
// hour.
func NewDraftJanitor(drafts *onboarding.DraftRepository, interval time.Duration, logger *zap.Logger) *DraftJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftJanitor{drafts: drafts, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (j *DraftJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("draft janitor stopping")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *DraftJanitor) sweep(ctx context.Context) {
	n, err := j.drafts.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("expired draft sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("expired drafts removed", zap.Int64("count", n))
	}
}
