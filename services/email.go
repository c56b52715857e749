package services

import (
	"fmt"
	"log"
	"strings"

	"expediente_flow_go/config"

	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailService sends transactional email through Resend. In test mode (the
// default) messages are logged to the console instead of sent.
type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

// Send delivers an email via the Resend API
func (s *EmailService) Send(email *Email) error {
	if s.cfg.EmailTestMode {
		logEmailToConsole(email)
		return nil
	}

	if s.cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(s.cfg.ResendAPIKey)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.cfg.EmailFromName, s.cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
	}
	if email.HTMLBody != "" {
		params.Html = email.HTMLBody
	}
	if email.TextBody != "" {
		params.Text = email.TextBody
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %v", err)
	}

	log.Printf("Email sent via Resend (ID: %s) to: %v", sent.Id, email.To)
	return nil
}

// SendAsync delivers an email in a goroutine so handlers never block on the
// email provider.
func (s *EmailService) SendAsync(email *Email) {
	emailCopy := &Email{
		To:       append([]string{}, email.To...),
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}

	go func() {
		if err := s.Send(emailCopy); err != nil {
			log.Printf("[WARNING] Error sending async email: %v", err)
		}
	}()
}

// SendStageChangeEmail notifies a recipient that a case moved into their
// department's stage.
func (s *EmailService) SendStageChangeEmail(toEmail, toName, fileNumber, stageName, message string) error {
	subject := fmt.Sprintf("Expediente %s - %s", fileNumber, stageName)
	text := fmt.Sprintf("Hola %s,\n\n%s\n\nIngrese al sistema para ver los detalles: %s\n\nSistema de Expedientes MOPC",
		toName, message, s.cfg.AppURL)
	html := fmt.Sprintf(`<p>Hola %s,</p><p>%s</p><p><a href="%s">Ingrese al sistema para ver los detalles</a></p><p>Sistema de Expedientes MOPC</p>`,
		toName, message, s.cfg.AppURL)

	return s.Send(&Email{
		To:       []string{toEmail},
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	})
}

// SendWelcomeEmail greets a newly created user account
func (s *EmailService) SendWelcomeEmail(toEmail, toName string) {
	text := fmt.Sprintf("Hola %s,\n\nSu cuenta en el Sistema de Expedientes ha sido creada.\n\nAcceda en: %s",
		toName, s.cfg.AppURL)
	html := fmt.Sprintf(`<p>Hola %s,</p><p>Su cuenta en el Sistema de Expedientes ha sido creada.</p><p><a href="%s">Acceder al sistema</a></p>`,
		toName, s.cfg.AppURL)

	s.SendAsync(&Email{
		To:       []string{toEmail},
		Subject:  "Bienvenido al Sistema de Expedientes",
		TextBody: text,
		HTMLBody: html,
	})
}

// SendMeetingInviteEmail notifies a participant of a scheduled meeting
func (s *EmailService) SendMeetingInviteEmail(toEmail, toName, title, when string) {
	text := fmt.Sprintf("Hola %s,\n\nHa sido convocado a la reunión \"%s\" programada para %s.",
		toName, title, when)

	s.SendAsync(&Email{
		To:       []string{toEmail},
		Subject:  fmt.Sprintf("Convocatoria: %s", title),
		TextBody: text,
	})
}

func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\nEMAIL (test mode - not actually sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("%s\n", separator)
}
