package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gcdbackend/internal/config"
	"gcdbackend/internal/data"
	"gcdbackend/internal/email"
	"gcdbackend/internal/logger"
)

var repo = data.NewDonationRepository()

// Event is a processor callback payload. The processor settles some cards
// asynchronously, so a donation accepted at submit time can be confirmed or
// declined later through this endpoint.
type Event struct {
	EventType  string `json:"event_type"`
	DonationID string `json:"donation_id"`
	Message    string `json:"message,omitempty"`
}

const (
	eventConfirmed = "donation.confirmed"
	eventDeclined  = "donation.declined"
)

// ProcessorWebhookHandler processes incoming processor callback POSTs.
func ProcessorWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	logger.LogInfo("Received processor webhook request")
	logger.LogHTTPRequest(r)

	payloadBytes, err := io.ReadAll(r.Body)
	if err != nil {
		logger.LogHTTPError(r, http.StatusBadRequest, err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Processor-Signature")
	if !verifySignature(signature, payloadBytes) {
		logger.LogError("Invalid processor webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event Event
	if err := json.Unmarshal(payloadBytes, &event); err != nil {
		logger.LogHTTPError(r, http.StatusBadRequest, err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	logger.LogInfo("Webhook event type: %s for donation %s", event.EventType, event.DonationID)

	if event.DonationID == "" {
		http.Error(w, "Missing donation_id", http.StatusBadRequest)
		return
	}

	switch event.EventType {
	case eventConfirmed:
		if err := handleConfirmed(event); err != nil {
			logger.LogError("Failed to handle confirmation for %s: %v", event.DonationID, err)
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}
	case eventDeclined:
		if err := handleDeclined(event); err != nil {
			logger.LogError("Failed to handle decline for %s: %v", event.DonationID, err)
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}
	default:
		logger.LogWarn("Ignoring unhandled webhook event type: %s", event.EventType)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func handleConfirmed(event Event) error {
	record, err := repo.GetByID(event.DonationID)
	if err != nil {
		return fmt.Errorf("donation lookup failed: %w", err)
	}

	if record.Status == data.StatusSucceeded && record.ConfirmedAt != nil {
		logger.LogInfo("Donation %s already confirmed, ignoring duplicate event", record.Reference)
		return nil
	}

	now := time.Now()
	if err := repo.MarkConfirmed(event.DonationID, now); err != nil {
		return err
	}
	logger.LogInfo("Donation %s confirmed by processor%s", record.Reference, config.WebhookMockNotice())

	// Receipt may not have gone out if the donation settled asynchronously
	if !record.ReceiptEmailSent && record.Email != "" {
		emailConfig := email.LoadEmailConfig()
		receipt := email.ReceiptData{
			Reference:   record.Reference,
			Email:       record.Email,
			CardType:    record.CardType,
			Amount:      record.Amount,
			SubmittedAt: &now,
			Year:        now.Year(),
		}
		if err := email.SendDonationReceipt(emailConfig, receipt); err != nil {
			logger.LogError("Receipt email failed for %s: %v", record.Reference, err)
		} else if err := repo.MarkReceiptSent(event.DonationID, time.Now()); err != nil {
			logger.LogError("Failed to mark receipt sent for %s: %v", event.DonationID, err)
		}
	}

	return nil
}

func handleDeclined(event Event) error {
	record, err := repo.GetByID(event.DonationID)
	if err != nil {
		return fmt.Errorf("donation lookup failed: %w", err)
	}

	message := event.Message
	if message == "" {
		message = "Declined by processor"
	}

	if err := repo.UpdateStatus(event.DonationID, data.StatusFailed, message, nil); err != nil {
		return err
	}
	logger.LogWarn("Donation %s declined by processor: %s", record.Reference, message)

	go func() {
		subject := fmt.Sprintf("Donation declined: %s", record.Reference)
		body := fmt.Sprintf("Donation %s (%s, $%.2f) was declined: %s%s",
			record.Reference, record.CardType, record.Amount, message, config.WebhookMockNotice())
		if err := email.SendAlertEmail(subject, body); err != nil {
			logger.LogError("Failed to send decline alert for %s: %v", record.Reference, err)
		}
	}()

	return nil
}

// verifySignature checks the HMAC-SHA256 signature over the raw payload.
// Mock mode skips verification entirely for local development.
func verifySignature(signature string, payload []byte) bool {
	if config.UseMockWebhookVerification {
		logger.LogInfo("Mock webhook verification enabled, accepting without signature check")
		return true
	}

	secret := config.ProcessorWebhookSecret
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
