package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm_inbox_backend/internal/ingest/service"
	"crm_inbox_backend/internal/ingest/transport"
	"crm_inbox_backend/platform/config"
	"crm_inbox_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
)

// Poller reads unseen messages from an IMAP folder and feeds them through
// the ingestion pipeline on the EMAIL channel. The provider message id is
// derived from the folder and UID, so redeliveries after a crash are caught
// by the dedup claim like any webhook retry.
type Poller struct {
	pipeline *service.Pipeline
	cfg      config.IMAPConfig
	log      *logger.Logger
}

func NewPoller(pipeline *service.Pipeline, cfg config.IMAPConfig, log *logger.Logger) *Poller {
	return &Poller{pipeline: pipeline, cfg: cfg, log: log}
}

// Run polls until the context is cancelled. A fresh connection per cycle
// keeps the poller simple and tolerant of flaky IMAP servers.
func (p *Poller) Run(ctx context.Context) {
	if !p.cfg.IsIMAPEnabled() {
		p.log.Info("imap intake disabled")
		return
	}

	interval := p.cfg.GetIMAPPollInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			p.log.Warn("imap poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	dialer, err := imap.New(p.cfg.GetIMAPUsername(), p.cfg.GetIMAPPassword(), p.cfg.GetIMAPHost(), p.cfg.GetIMAPPort())
	if err != nil {
		return fmt.Errorf("imap connect: %w", err)
	}
	defer dialer.Close()

	folder := p.cfg.GetIMAPFolder()
	if err := dialer.SelectFolder(folder); err != nil {
		return fmt.Errorf("imap select %q: %w", folder, err)
	}

	uids, err := dialer.GetUIDs("UNSEEN")
	if err != nil {
		return fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	emails, err := dialer.GetEmails(uids...)
	if err != nil {
		return fmt.Errorf("imap fetch: %w", err)
	}

	for uid, msg := range emails {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg == nil {
			continue
		}
		if err := p.ingest(ctx, folder, uid, msg); err != nil {
			p.log.Warn("imap message ingest failed", "uid", uid, "error", err)
			continue
		}
		if err := dialer.MarkSeen(uid); err != nil {
			// The dedup claim absorbs the redelivery this causes.
			p.log.Warn("imap mark seen failed", "uid", uid, "error", err)
		}
	}
	return nil
}

func (p *Poller) ingest(ctx context.Context, folder string, uid int, msg *imap.Email) error {
	fromEmail, fromName := firstAddress(msg.From)

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		body = strings.TrimSpace(msg.Subject)
	} else if subject := strings.TrimSpace(msg.Subject); subject != "" {
		body = subject + "\n\n" + body
	}

	sentAt := msg.Sent
	if sentAt.IsZero() {
		sentAt = msg.Received
	}
	req := transport.InboundMessageRequest{
		Channel:           "EMAIL",
		ProviderMessageID: fmt.Sprintf("imap:%s:%d", folder, uid),
		FromEmail:         fromEmail,
		FromName:          fromName,
		Text:              body,
	}
	if !sentAt.IsZero() {
		req.Timestamp = &sentAt
	}

	_, err := p.pipeline.Ingest(ctx, req)
	if errors.Is(err, service.ErrDuplicateMessage) {
		return nil
	}
	return err
}

// firstAddress picks one (address, name) pair out of go-imap's address map.
func firstAddress(addrs imap.EmailAddresses) (string, string) {
	for addr, name := range addrs {
		return strings.ToLower(strings.TrimSpace(addr)), strings.TrimSpace(name)
	}
	return "", ""
}
