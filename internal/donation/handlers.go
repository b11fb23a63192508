// internal/donation/handlers.go
package donation

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gcdbackend/internal/config"
	"gcdbackend/internal/data"
	"gcdbackend/internal/email"
	"gcdbackend/internal/gateway"
	"gcdbackend/internal/logger"
	"gcdbackend/internal/middleware"
	"gcdbackend/internal/security"
)

// redirectDelayMS tells the front end how long to show the confirmation
// before navigating back to the donate page.
const redirectDelayMS = 1000

// SubmitGiftCardHandler processes the donation form: it combines the posted
// card code with the current selection, forwards everything to the card
// processor, and records the outcome. Exactly one processor call is made per
// accepted submission; failures are returned to the donor for a manual retry.
var SubmitGiftCardHandler = middleware.PublicAPIMiddleware(func(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		logger.LogHTTPError(r, http.StatusBadRequest, err)
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_form", "Invalid form submission", "")
		return
	}

	logAndIncrement(&totalSubmissions, "total_submissions")

	// Honeypot trap
	if r.FormValue("hidden_field") != "" {
		logger.LogWarn("Honeypot triggered by %s", logger.GetClientIP(r))
		middleware.WriteAPIError(w, r, http.StatusForbidden, "invalid_submission", "Invalid submission", "")
		return
	}

	csrfToken := r.FormValue("csrf_token")
	if csrfToken == "" || !security.ValidateCSRFToken(csrfToken) {
		err := fmt.Errorf("missing or invalid CSRF token")
		logger.LogHTTPError(r, http.StatusForbidden, err)
		logAndIncrement(&csrfFailures, "csrf_failures")
		middleware.WriteAPIError(w, r, http.StatusForbidden, "invalid_csrf", err.Error(), "")
		return
	}

	clientIP := logger.GetClientIP(r)
	if isRateLimited(clientIP) {
		logger.LogHTTPError(r, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded for %s", clientIP))
		logAndIncrement(&rateLimitBlocks, "rate_limit_blocks")
		middleware.WriteAPIError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded", "")
		return
	}
	setRateLimit(clientIP)

	cardCode := strings.TrimSpace(r.FormValue("cardCode"))
	if cardCode == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "missing_card_code", "Gift card code is required", "")
		return
	}
	donorEmail := strings.TrimSpace(r.FormValue("email"))

	// The selection made on the catalog screen. An empty store means the
	// donor navigated here without picking a card; that is a distinct case,
	// not a default.
	sel, ok := selectionStore.Get()
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "no_selection",
			"No gift card selected. Please choose a card and amount first.", "")
		return
	}

	// The store only accepts catalog-validated pairs, but the catalog can
	// change between selection and submit (restart, edited catalog.json)
	if !catalogService.HasAmount(sel.CardType, sel.Amount) {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_selection",
			fmt.Sprintf("%s for $%g is no longer offered. Please select again.", sel.CardType, sel.Amount), "")
		return
	}

	screenshot, screenshotName, screenshotType, err := readScreenshot(r)
	if err != nil {
		logger.LogHTTPError(r, http.StatusBadRequest, err)
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_screenshot", err.Error(), "")
		return
	}

	dupKey := submissionKey(cardCode, sel.CardType, sel.Amount)
	if isDuplicate(dupKey) {
		logger.LogWarn("Duplicate donation detected for key %s", dupKey)
		logAndIncrement(&duplicateBlocks, "duplicate_blocks")
		middleware.WriteAPIError(w, r, http.StatusTooManyRequests, "duplicate_submission",
			"Duplicate detected. Please wait before submitting again.", "")
		return
	}

	// One submission at a time: while a request is with the processor the
	// submit control is inert. Every rejection past this point must release
	// the duplicate key, or the donor's manual retry gets blocked for the
	// whole duplicate window.
	if !beginSubmit() {
		releaseDuplicate(dupKey)
		middleware.WriteAPIError(w, r, http.StatusConflict, "submission_in_flight",
			"A submission is already being processed. Please wait.", "")
		return
	}
	defer endSubmit()

	donationID := newDonationID()
	reference, err := generateReference()
	if err != nil {
		releaseDuplicate(dupKey)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
			"Failed to create donation record", "")
		return
	}

	accessToken, err := security.GenerateAccessToken(donationID)
	if err != nil {
		releaseDuplicate(dupKey)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
			"Failed to create access token", "")
		return
	}

	record := data.Donation{
		DonationID:     donationID,
		Reference:      reference,
		AccessToken:    accessToken,
		SubmissionDate: time.Now(),
		CardType:       sel.CardType,
		Amount:         sel.Amount,
		CardCode:       cardCode,
		Email:          donorEmail,
		ScreenshotName: screenshotName,
		ScreenshotSize: int64(len(screenshot)),
		Status:         data.StatusSubmitting,
	}
	if err := repo.Insert(record); err != nil {
		logger.LogHTTPError(r, http.StatusInternalServerError, err)
		releaseDuplicate(dupKey)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
			"Failed to save donation", "")
		return
	}

	result := gateway.Submit(r.Context(), gateway.Submission{
		CardCode:              cardCode,
		Email:                 donorEmail,
		CardType:              sel.CardType,
		Amount:                sel.Amount,
		ScreenshotName:        screenshotName,
		ScreenshotContentType: screenshotType,
		Screenshot:            screenshot,
	})

	if !result.Success {
		// Failed state: message retained, same input may be resubmitted
		logAndIncrement(&failedSubmissions, "failed_submissions")
		releaseDuplicate(dupKey)

		if err := repo.UpdateStatus(donationID, data.StatusFailed, result.FailureMessage, nil); err != nil {
			logger.LogError("Failed to record donation failure for %s: %v", donationID, err)
		}

		go func() {
			subject := fmt.Sprintf("Donation submission failed: %s", reference)
			body := fmt.Sprintf("Donation %s (%s, $%.2f) was rejected: %s",
				reference, sel.CardType, sel.Amount, result.FailureMessage)
			if err := email.SendAlertEmail(subject, body); err != nil {
				logger.LogError("Failed to send failure alert for %s: %v", reference, err)
			}
		}()

		middleware.WriteAPIError(w, r, http.StatusBadGateway, "submission_failed", result.FailureMessage, "")
		return
	}

	now := time.Now()
	if err := repo.UpdateStatus(donationID, data.StatusSucceeded, result.Message, &now); err != nil {
		logger.LogError("Failed to record donation success for %s: %v", donationID, err)
	}

	// A completed donation must not leak its selection into the next one
	selectionStore.Clear()

	logAndIncrement(&successfulSubmissions, "successful_submissions")
	logger.LogInfo("Donation submitted: reference=%s, type=%s, amount=%.2f, ip=%s",
		reference, sel.CardType, sel.Amount, clientIP)

	go sendReceipt(donationID, reference, donorEmail, sel.CardType, sel.Amount, &now)

	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"message":           successMessage(sel.CardType, sel.Amount),
		"reference":         reference,
		"donationID":        donationID,
		"access_token":      accessToken,
		"redirect_url":      config.RedirectBaseURL + "/donate",
		"redirect_delay_ms": redirectDelayMS,
	})
})

// readScreenshot pulls the optional attachment out of the form, enforcing
// the 5 MB ceiling and the image-or-PDF type restriction.
func readScreenshot(r *http.Request) ([]byte, string, string, error) {
	file, header, err := r.FormFile("screenshot")
	if err == http.ErrMissingFile {
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid screenshot upload: %w", err)
	}
	defer file.Close()

	if header.Size > maxScreenshotSize {
		return nil, "", "", fmt.Errorf("screenshot exceeds 5MB limit")
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") &&
		contentType != "application/pdf" &&
		!strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return nil, "", "", fmt.Errorf("screenshot must be an image or PDF")
	}

	content, err := io.ReadAll(io.LimitReader(file, maxScreenshotSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read screenshot: %w", err)
	}
	if len(content) > maxScreenshotSize {
		return nil, "", "", fmt.Errorf("screenshot exceeds 5MB limit")
	}

	return content, header.Filename, contentType, nil
}

func sendReceipt(donationID, reference, donorEmail, cardType string, amount float64, submittedAt *time.Time) {
	emailConfig := email.LoadEmailConfig()
	receipt := email.ReceiptData{
		Reference:   reference,
		Email:       donorEmail,
		CardType:    cardType,
		Amount:      amount,
		SubmittedAt: submittedAt,
		Year:        time.Now().Year(),
	}

	if err := email.SendDonationReceipt(emailConfig, receipt); err != nil {
		logger.LogError("Receipt email failed for %s: %v", reference, err)
		return
	}
	if donorEmail == "" {
		return
	}
	if err := repo.MarkReceiptSent(donationID, time.Now()); err != nil {
		logger.LogError("Failed to mark receipt sent for %s: %v", donationID, err)
	}
}

// DonationStatusHandler returns one donation for the donor's status page.
// Requires the access token minted at submission time.
var DonationStatusHandler = middleware.APIMiddleware(func(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	donationID := r.URL.Query().Get("donationID")
	if donationID == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "missing_donation_id", "donationID is required", "")
		return
	}

	token := middleware.GetToken(r.Context())
	if err := middleware.ValidateDonationAccess(r.Context(), donationID, token); err != nil {
		middleware.WriteAPIError(w, r, http.StatusForbidden, "access_denied", "Access denied to this donation", "")
		return
	}

	record, err := repo.GetByID(donationID)
	if err != nil {
		logger.LogHTTPError(r, http.StatusNotFound, err)
		middleware.WriteAPIError(w, r, http.StatusNotFound, "not_found", "Donation not found", "")
		return
	}

	if err := security.UseAccessToken(token); err != nil {
		logger.LogWarn("Failed to mark access token used: %v", err)
	}

	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"reference":  record.Reference,
		"cardType":   record.CardType,
		"amount":     record.Amount,
		"status":     record.Status,
		"message":    record.ProcessorMsg,
		"submitted":  record.SubmittedAt,
		"confirmed":  record.ConfirmedAt,
		"receivedAt": record.SubmissionDate,
	})
})
