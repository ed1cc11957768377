package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/config"
)

// EmailSender delivers an order confirmation. The SMTP implementation is
// the default; tests substitute their own.
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error
}

type SMTPSender struct {
	Cfg config.SMTP
	Log *zap.Logger
}

func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: Your order %s is confirmed\n", p.OrderID)
	b.WriteString("MIME-version: 1.0;\nContent-Type: text/plain; charset=\"UTF-8\";\n\n")
	fmt.Fprintf(&b, "Thanks for your order!\n\nOrder: %s\n", p.OrderID)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "  %s x%d @ %d\n", it.ProductID, it.Qty, it.UnitPriceCents)
	}
	fmt.Fprintf(&b, "Total: %d\n", p.TotalCents)

	addr := fmt.Sprintf("%s:%s", s.Cfg.Host, s.Cfg.Port)
	auth := smtp.PlainAuth("", s.Cfg.From, s.Cfg.Password, s.Cfg.Host)

	s.Log.Info("sending order confirmation",
		zap.String("order_id", p.OrderID), zap.String("to", p.Email))

	if err := smtp.SendMail(addr, auth, s.Cfg.From, []string{p.Email}, []byte(b.String())); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", p.OrderID, err)
	}
	return nil
}
