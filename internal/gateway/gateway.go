// internal/gateway/gateway.go
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"gcdbackend/internal/config"
	"gcdbackend/internal/logger"
)

// Submission carries everything forwarded to the external card processor.
type Submission struct {
	CardCode string
	Email    string
	CardType string
	Amount   float64

	// Optional screenshot attachment
	ScreenshotName        string
	ScreenshotContentType string
	Screenshot            []byte
}

// Response is the processor's application-level verdict. Non-2xx status or
// a falsy Success is treated as failure.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is what the donation flow consumes: either the submission went
// through, or FailureMessage explains why in donor-readable terms.
type Result struct {
	Success        bool
	Message        string
	FailureMessage string
	StatusCode     int
}

var sharedClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 5,
	},
}

// Submit forwards one donation to the processor as a multipart payload.
// Exactly one request is made per call; nothing is retried here — a failed
// submission goes back to the donor for a manual resubmit.
func Submit(ctx context.Context, sub Submission) Result {
	body, contentType, err := buildMultipart(sub)
	if err != nil {
		logger.LogError("Failed to build processor payload: %v", err)
		return Result{FailureMessage: err.Error()}
	}

	endpoint := config.ProcessorEndpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		logger.LogError("Failed to create processor request: %v", err)
		return Result{FailureMessage: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	if key := config.ProcessorAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	logger.LogInfo("Forwarding %s gift card submission to processor", sub.CardType)
	resp, err := sharedClient.Do(req)
	if err != nil {
		// Transport failure: surface the underlying error text verbatim
		logger.LogError("Processor request failed: %v", err)
		return Result{FailureMessage: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.LogError("Failed to read processor response: %v", err)
		return Result{FailureMessage: err.Error(), StatusCode: resp.StatusCode}
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logger.LogError("Malformed processor response (HTTP %d): %s", resp.StatusCode, string(raw))
		return Result{
			FailureMessage: statusFailureMessage(resp.StatusCode),
			StatusCode:     resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !decoded.Success {
		msg := failureMessage(decoded, resp.StatusCode)
		logger.LogWarn("Processor rejected submission (HTTP %d): %s", resp.StatusCode, msg)
		return Result{FailureMessage: msg, StatusCode: resp.StatusCode}
	}

	logger.LogInfo("Processor accepted %s gift card submission", sub.CardType)
	return Result{Success: true, Message: decoded.Message, StatusCode: resp.StatusCode}
}

// failureMessage picks exactly one donor-facing message, in priority order:
// the processor's message field, its error field, then a generic message
// embedding the HTTP status.
func failureMessage(resp Response, statusCode int) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Error != "" {
		return resp.Error
	}
	return statusFailureMessage(statusCode)
}

func statusFailureMessage(statusCode int) string {
	return fmt.Sprintf("Submission failed (Status: %d)", statusCode)
}

func buildMultipart(sub Submission) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"cardCode": sub.CardCode,
		"email":    sub.Email,
		"cardType": sub.CardType,
		"amount":   fmt.Sprintf("%g", sub.Amount),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", name, err)
		}
	}

	if len(sub.Screenshot) > 0 {
		part, err := writer.CreateFormFile("screenshot", sub.ScreenshotName)
		if err != nil {
			return nil, "", fmt.Errorf("creating screenshot part: %w", err)
		}
		if _, err := part.Write(sub.Screenshot); err != nil {
			return nil, "", fmt.Errorf("writing screenshot: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
