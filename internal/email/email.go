// internal/email/email.go
package email

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"gcdbackend/internal/logger"
)

const (
	defaultAlertRecipient = "admin@yourdomain.org"
	defaultAlertSender    = "alerts@yourdomain.org"
)

// EmailConfig holds email configuration
type EmailConfig struct {
	AlertRecipient string
	AlertSender    string
	ReceiptSender  string
	SendReceipts   bool
	MockMode       bool
	LogEmails      bool
}

// LoadEmailConfig loads email configuration from environment variables
func LoadEmailConfig() EmailConfig {
	return EmailConfig{
		AlertRecipient: getEnvOrDefault("EMAIL_ALERT_RECIPIENT", defaultAlertRecipient),
		AlertSender:    getEnvOrDefault("EMAIL_ALERT_SENDER", defaultAlertSender),
		ReceiptSender:  getEnvOrDefault("EMAIL_RECEIPT_SENDER", "noreply@yourdomain.org"),
		SendReceipts:   getEnvOrDefault("SEND_RECEIPT_EMAILS", "true") == "true",
		MockMode:       getEnvOrDefault("EMAIL_MOCK_MODE", "false") == "true",
		LogEmails:      getEnvOrDefault("EMAIL_LOG_MODE", "true") == "true",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ReceiptData holds data for donor receipt emails
type ReceiptData struct {
	Reference   string
	Email       string
	CardType    string
	Amount      float64
	SubmittedAt *time.Time
	Year        int
}

var receiptTemplate = `Subject: Gift Card Donation Received - {{.Reference}}

Thank you for your donation!

Your {{.CardType}} gift card for ${{printf "%.2f" .Amount}} has been received.

**Donation Details:**
- Reference: {{.Reference}}
- Card Type: {{.CardType}}
- Amount: ${{printf "%.2f" .Amount}}
{{if .SubmittedAt}}- Submitted: {{.SubmittedAt.Format "January 2, 2006 at 3:04 PM"}}
{{end}}
Keep this reference number in case you need to contact us about your
donation.

Best regards,
The Donations Team`

// SendDonationReceipt sends a receipt email for a processed donation.
// Donors who left the email field blank are skipped.
func SendDonationReceipt(config EmailConfig, data ReceiptData) error {
	if !config.SendReceipts {
		logger.LogInfo("Receipt emails disabled, skipping receipt for %s", data.Reference)
		return nil
	}
	if data.Email == "" {
		logger.LogInfo("No donor email provided for %s, skipping receipt", data.Reference)
		return nil
	}

	tmpl, err := template.New("receipt").Parse(receiptTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse receipt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute receipt template: %w", err)
	}

	// Extract subject from template output
	content := buf.String()
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "Subject: ") {
		return fmt.Errorf("invalid template format: missing subject line")
	}

	subject := strings.TrimPrefix(lines[0], "Subject: ")
	body := strings.Join(lines[2:], "\n") // Skip subject and empty line

	logger.LogInfo("Sending receipt email to %s for donation %s", data.Email, data.Reference)

	if err := SendMail(data.Email, config.ReceiptSender, subject, body); err != nil {
		logger.LogError("Failed to send receipt email to %s: %v", data.Email, err)
		return fmt.Errorf("failed to send receipt email: %w", err)
	}

	logger.LogInfo("Receipt email sent successfully to %s", data.Email)
	return nil
}

// SendAlertEmail sends an alert email to administrators
func SendAlertEmail(subject, body string) error {
	config := LoadEmailConfig()
	return SendMail(config.AlertRecipient, config.AlertSender, subject, body)
}

// SendMail sends an email using sendmail or logs it in mock mode
func SendMail(to, from, subject, body string) error {
	config := LoadEmailConfig()

	// Mock mode - just log to console
	if config.MockMode {
		logger.LogInfo("========== MOCK EMAIL ==========")
		logger.LogInfo("To: %s", to)
		logger.LogInfo("From: %s", from)
		logger.LogInfo("Subject: %s", subject)
		logger.LogInfo("---")

		bodyLines := strings.Split(body, "\n")
		for _, line := range bodyLines {
			logger.LogInfo("   %s", line)
		}

		logger.LogInfo("================================")
		return nil
	}

	if config.LogEmails {
		logger.LogInfo("Sending real email to %s with subject: %s", to, subject)
	}

	// Real email sending using sendmail
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
	}

	message := strings.Join(headers, "\r\n") + body
	cmd := exec.Command("/usr/sbin/sendmail", "-t")
	cmd.Stdin = bytes.NewBufferString(message)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sendmail command failed: %w", err)
	}

	if config.LogEmails {
		logger.LogInfo("Real email sent successfully to %s", to)
	}

	return nil
}
