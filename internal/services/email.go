package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/templates"
)

type EmailService interface {
	SendEmail(ctx context.Context, toEmail string, subject string, plainText string, htmlContent string) error
}

type emailService struct {
	log       *logger.Logger
	client    *sendgrid.Client
	fromEmail string
}

func NewEmailService(log *logger.Logger, apiKey, fromEmail string) (EmailService, error) {
	serviceLog := log.With("service", "EmailService")
	if apiKey == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if fromEmail == "" {
		serviceLog.Warn("SENDGRID_SUPPORT_EMAIL not set; using fallback no-reply@slotter.ai")
		fromEmail = "no-reply@slotter.ai"
	}
	return &emailService{
		log:       serviceLog,
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
	}, nil
}

func (es *emailService) SendEmail(ctx context.Context, toEmail string, subject string, plainText string, htmlContent string) error {
	from := mail.NewEmail("Co-creation Workshop", es.fromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	response, err := es.client.SendWithContext(ctx, message)
	if err != nil {
		es.log.Warn("Sendgrid email send failed", "error", err)
		return err
	}
	if response.StatusCode >= 300 {
		es.log.Warn("Sendgrid rejected email", "statusCode", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid HTTP %d", response.StatusCode)
	}
	es.log.Info("Email sent", "to", toEmail, "statusCode", response.StatusCode)
	return nil
}

// EmailNotifier mails the facilitator a roster after each grouping run.
type EmailNotifier struct {
	email EmailService
	to    string
}

func NewEmailNotifier(email EmailService, facilitatorEmail string) *EmailNotifier {
	return &EmailNotifier{email: email, to: facilitatorEmail}
}

func (n *EmailNotifier) NotifyGroupsFormed(ctx context.Context, sessionID string, groups []GroupView) error {
	subject := fmt.Sprintf("%d co-creation groups formed", len(groups))
	roster := groupRoster(sessionID, groups)

	data := templates.GroupsEmailData{SessionID: sessionID}
	for _, g := range groups {
		data.Groups = append(data.Groups, templates.GroupEntry{
			Number:  g.Number,
			Name:    g.Name,
			URL:     g.URL,
			Members: g.Members,
			Bullets: g.RationaleBullets,
		})
	}
	htmlContent, err := templates.RenderGroupsHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render groups email: %w", err)
	}
	return n.email.SendEmail(ctx, n.to, subject, roster, htmlContent)
}

func groupRoster(sessionID string, groups []GroupView) string {
	var b strings.Builder
	if sessionID != "" {
		fmt.Fprintf(&b, "Session: %s\n\n", sessionID)
	}
	for _, g := range groups {
		fmt.Fprintf(&b, "Group %d: %s (%s)\n", g.Number, g.Name, g.URL)
		for _, m := range g.Members {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
		for _, bullet := range g.RationaleBullets {
			fmt.Fprintf(&b, "  * %s\n", bullet)
		}
		b.WriteString("\n")
	}
	return b.String()
}
