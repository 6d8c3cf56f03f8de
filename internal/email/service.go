// Package email sends transactional mail over SMTP. Sending is strictly
// best-effort: an unconfigured SMTP host turns every send into a logged
// no-op so checkout and fulfillment never depend on a mail server.
package email

import (
	"fmt"
	"net/smtp"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/order"
)

// Service sends storefront emails over plain SMTP.
type Service struct {
	host      string
	port      string
	from      string
	storeName string
	baseURL   string
}

func NewService(host, port, from, storeName, baseURL string) *Service {
	return &Service{
		host:      host,
		port:      port,
		from:      from,
		storeName: storeName,
		baseURL:   baseURL,
	}
}

func (s *Service) Configured() bool {
	return s.host != ""
}

// SendOrderConfirmation mails the customer their order summary.
func (s *Service) SendOrderConfirmation(to string, e order.OrderCreated) error {
	subject := fmt.Sprintf("Order Confirmation - %s (#%s)", s.storeName, e.OrderNumber)
	return s.send(to, subject, BuildOrderConfirmationBody(s.storeName, e))
}

// SendOrderAlert mails the store owner about a new paid order.
func (s *Service) SendOrderAlert(to string, e order.OrderCreated) error {
	subject := fmt.Sprintf("New Order #%s - $%.2f", e.OrderNumber, e.Total)
	return s.send(to, subject, BuildOrderAlertBody(s.storeName, e))
}

// SendTrackingUpdate mails the customer their tracking number.
func (s *Service) SendTrackingUpdate(to string, e order.OrderShipped) error {
	subject := fmt.Sprintf("Your Order Has Shipped - %s (#%s)", s.storeName, e.OrderNumber)
	return s.send(to, subject, BuildTrackingUpdateBody(s.storeName, e))
}

// SendWelcome greets a newly registered customer.
func (s *Service) SendWelcome(to, name string) error {
	subject := fmt.Sprintf("Welcome to %s", s.storeName)
	return s.send(to, subject, BuildWelcomeBody(s.storeName, name, s.baseURL))
}

// SendPasswordReset mails a single-use reset link.
func (s *Service) SendPasswordReset(to, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	subject := fmt.Sprintf("Password Reset - %s", s.storeName)
	return s.send(to, subject, BuildPasswordResetBody(s.storeName, resetURL))
}

func (s *Service) send(to, subject, body string) error {
	if !s.Configured() {
		log.WithFields(log.Fields{"to": to, "subject": subject}).Warn("smtp not configured, skipping email")
		return nil
	}
	if to == "" {
		log.WithField("subject", subject).Warn("no recipient address, skipping email")
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
