package testing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcdbackend/internal/config"
	"gcdbackend/internal/data"
	"gcdbackend/internal/gateway"
	"gcdbackend/internal/webhook"
)

func TestMain(m *testing.M) {
	flag.Parse()

	// Keep emails and webhook checks out of the real world
	os.Setenv("EMAIL_MOCK_MODE", "true")
	os.Setenv("SEND_RECEIPT_EMAILS", "true")

	os.Exit(m.Run())
}

// TestDonationFlowIntegration drives a donation from selection through the
// processor verdict, against the mock processor.
func TestDonationFlowIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite := NewTestSuite(t)
	mock := NewMockProcessorService()
	defer mock.Close()

	config.SetProcessorEndpoint(mock.URL())

	t.Run("FullDonationFlow", func(t *testing.T) {
		testFullDonationFlow(t, suite, mock)
	})

	t.Run("ProcessorRejectionAndRetry", func(t *testing.T) {
		testProcessorRejectionAndRetry(t, suite, mock)
	})

	t.Run("MalformedProcessorResponse", func(t *testing.T) {
		testMalformedProcessorResponse(t, suite, mock)
	})
}

func testFullDonationFlow(t *testing.T, suite *TestSuite, mock *MockProcessorService) {
	mock.Reset()
	start := time.Now()

	// 1. Donor picks a card on the catalog screen
	entry, ok := suite.Catalog.FindEntry("Visa")
	require.True(t, ok, "test catalog should offer Visa")
	require.True(t, suite.Catalog.HasAmount(entry.Type, 100))

	suite.Store.Set(entry.Type, 100)
	sel, ok := suite.Store.Get()
	require.True(t, ok)
	t.Logf("✓ Selection stored (%s, $%.0f)", sel.CardType, sel.Amount)

	// 2. Submission record goes in before the processor is called
	td := suite.GenerateTestDonation(sel.CardType, sel.Amount)
	require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))
	t.Logf("✓ Donation recorded (Reference: %s)", td.Reference)

	// 3. Forward to the processor
	result := gateway.Submit(context.Background(), gateway.Submission{
		CardCode:              td.CardCode,
		Email:                 td.Email,
		CardType:              sel.CardType,
		Amount:                sel.Amount,
		ScreenshotName:        "receipt.png",
		ScreenshotContentType: "image/png",
		Screenshot:            []byte("fake-png-bytes"),
	})
	require.True(t, result.Success, "processor should accept: %s", result.FailureMessage)
	t.Logf("✓ Processor accepted (%s)", result.Message)

	// 4. The mock saw exactly what the donor typed
	received, ok := mock.LastReceived()
	require.True(t, ok)
	assert.Equal(t, td.CardCode, received.CardCode)
	assert.Equal(t, td.Email, received.Email)
	assert.Equal(t, sel.CardType, received.CardType)
	assert.Equal(t, sel.Amount, received.Amount)
	assert.Equal(t, "receipt.png", received.ScreenshotName)

	// 5. Record the verdict and retire the selection
	now := time.Now()
	require.NoError(t, suite.Repo.UpdateStatus(td.DonationID, data.StatusSucceeded, result.Message, &now))
	suite.Store.Clear()

	_, stillSelected := suite.Store.Get()
	assert.False(t, stillSelected, "selection must not survive a completed donation")

	final, err := suite.Repo.GetByID(td.DonationID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusSucceeded, final.Status)
	require.NotNil(t, final.SubmittedAt)

	t.Logf("✅ Full donation flow completed in %v", time.Since(start))
}

func testProcessorRejectionAndRetry(t *testing.T, suite *TestSuite, mock *MockProcessorService) {
	mock.Reset()

	suite.Store.Set("Amazon (Physical)", 50)
	td := suite.GenerateTestDonation("Amazon (Physical)", 50)
	require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

	// Processor rejects: its message field wins over everything else
	mock.SetFailureMode(http.StatusBadRequest, "Invalid card code", "card_invalid")

	result := gateway.Submit(context.Background(), gateway.Submission{
		CardCode: td.CardCode,
		CardType: td.CardType,
		Amount:   td.Amount,
	})
	require.False(t, result.Success)
	assert.Equal(t, "Invalid card code", result.FailureMessage)
	require.NoError(t, suite.Repo.UpdateStatus(td.DonationID, data.StatusFailed, result.FailureMessage, nil))
	t.Logf("✓ Rejection recorded: %s", result.FailureMessage)

	// The failed selection is still on file, so the donor can retry the
	// exact same input without re-selecting
	sel, ok := suite.Store.Get()
	require.True(t, ok)
	assert.Equal(t, td.CardType, sel.CardType)

	mock.Reset()

	retry := gateway.Submit(context.Background(), gateway.Submission{
		CardCode: td.CardCode,
		CardType: td.CardType,
		Amount:   td.Amount,
	})
	require.True(t, retry.Success, "identical resubmission should succeed after reset")

	now := time.Now()
	require.NoError(t, suite.Repo.UpdateStatus(td.DonationID, data.StatusSucceeded, retry.Message, &now))
	suite.Store.Clear()

	final, err := suite.Repo.GetByID(td.DonationID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusSucceeded, final.Status)
	t.Log("✅ Manual retry after rejection succeeded")
}

func testMalformedProcessorResponse(t *testing.T, suite *TestSuite, mock *MockProcessorService) {
	mock.Reset()
	mock.SetMalformedResponse(true)
	defer mock.SetMalformedResponse(false)

	result := gateway.Submit(context.Background(), gateway.Submission{
		CardCode: RandomCardCode(),
		CardType: "Visa",
		Amount:   100,
	})
	require.False(t, result.Success)
	assert.Equal(t, "Submission failed (Status: 500)", result.FailureMessage)
	t.Log("✅ Malformed response fell back to status message")
}

// TestProcessorWebhook exercises the callback endpoint end to end, including
// signature verification.
func TestProcessorWebhook(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite := NewTestSuite(t)

	config.ProcessorWebhookSecret = "test-webhook-secret"
	config.UseMockWebhookVerification = false

	t.Run("ConfirmsDonation", func(t *testing.T) {
		td := suite.GenerateTestDonation("Walmart", 25)
		require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

		resp := postWebhook(t, webhookPayload(td.DonationID, "donation.confirmed", ""), true)
		require.Equal(t, http.StatusOK, resp.Code)

		final, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, data.StatusSucceeded, final.Status)
		require.NotNil(t, final.ConfirmedAt)

		// Duplicate delivery must be a no-op
		resp = postWebhook(t, webhookPayload(td.DonationID, "donation.confirmed", ""), true)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("DeclinesDonation", func(t *testing.T) {
		td := suite.GenerateTestDonation("Visa", 200)
		require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

		resp := postWebhook(t, webhookPayload(td.DonationID, "donation.declined", "Card already redeemed"), true)
		require.Equal(t, http.StatusOK, resp.Code)

		final, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, data.StatusFailed, final.Status)
		assert.Equal(t, "Card already redeemed", final.ProcessorMsg)
	})

	t.Run("RejectsBadSignature", func(t *testing.T) {
		resp := postWebhook(t, webhookPayload("whatever", "donation.confirmed", ""), false)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("IgnoresUnknownEventType", func(t *testing.T) {
		td := suite.GenerateTestDonation("Visa", 50)
		require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

		resp := postWebhook(t, webhookPayload(td.DonationID, "donation.mystery", ""), true)
		require.Equal(t, http.StatusOK, resp.Code)

		final, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, data.StatusSubmitting, final.Status)
	})
}

func webhookPayload(donationID, eventType, message string) []byte {
	payload, _ := json.Marshal(map[string]string{
		"event_type":  eventType,
		"donation_id": donationID,
		"message":     message,
	})
	return payload
}

func postWebhook(t *testing.T, payload []byte, signed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/processor-webhook", bytes.NewReader(payload))
	if signed {
		req.Header.Set("X-Processor-Signature", signPayload(config.ProcessorWebhookSecret, payload))
	} else {
		req.Header.Set("X-Processor-Signature", "deadbeef")
	}

	recorder := httptest.NewRecorder()
	webhook.ProcessorWebhookHandler(recorder, req)
	return recorder
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
