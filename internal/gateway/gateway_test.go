package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcdbackend/internal/config"
)

func mockProcessor(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	config.SetProcessorEndpoint(server.URL)
	return server
}

func TestSubmitSuccess(t *testing.T) {
	mockProcessor(t, http.StatusOK, `{"success": true, "message": "Card accepted"}`)

	result := Submit(context.Background(), Submission{
		CardCode: "ABCD-1234",
		CardType: "Visa",
		Amount:   100,
	})

	assert.True(t, result.Success)
	assert.Equal(t, "Card accepted", result.Message)
	assert.Empty(t, result.FailureMessage)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

// The donor sees exactly one message, chosen in priority order: the body's
// message field, then its error field, then a generic status line.
func TestSubmitFailureMessagePriority(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "message field wins",
			status: http.StatusInternalServerError,
			body:   `{"success": false, "message": "Server busy", "error": "internal_error"}`,
			want:   "Server busy",
		},
		{
			name:   "error field when no message",
			status: http.StatusBadRequest,
			body:   `{"success": false, "error": "card_invalid"}`,
			want:   "card_invalid",
		},
		{
			name:   "status fallback when body has neither",
			status: http.StatusServiceUnavailable,
			body:   `{"success": false}`,
			want:   "Submission failed (Status: 503)",
		},
		{
			name:   "status fallback on non-JSON body",
			status: http.StatusBadGateway,
			body:   `<html>upstream timeout</html>`,
			want:   "Submission failed (Status: 502)",
		},
		{
			name:   "2xx with falsy success is still a failure",
			status: http.StatusOK,
			body:   `{"success": false, "message": "Card region not supported"}`,
			want:   "Card region not supported",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockProcessor(t, tc.status, tc.body)

			result := Submit(context.Background(), Submission{
				CardCode: "ABCD-1234",
				CardType: "Visa",
				Amount:   100,
			})

			assert.False(t, result.Success)
			assert.Equal(t, tc.want, result.FailureMessage)
		})
	}
}

func TestSubmitTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	config.SetProcessorEndpoint(server.URL)
	server.Close() // Connection refused from here on

	result := Submit(context.Background(), Submission{
		CardCode: "ABCD-1234",
		CardType: "Visa",
		Amount:   100,
	})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FailureMessage, "transport error text must reach the donor")
}

func TestSubmitForwardsMultipartFields(t *testing.T) {
	var got Submission
	var screenshotSize int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(16<<20))

		got.CardCode = r.FormValue("cardCode")
		got.Email = r.FormValue("email")
		got.CardType = r.FormValue("cardType")
		got.Amount, _ = strconv.ParseFloat(r.FormValue("amount"), 64)

		file, header, err := r.FormFile("screenshot")
		require.NoError(t, err)
		got.ScreenshotName = header.Filename
		screenshotSize = header.Size
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message": "ok"}`))
	}))
	t.Cleanup(server.Close)
	config.SetProcessorEndpoint(server.URL)

	screenshot := []byte("fake-image-bytes")
	result := Submit(context.Background(), Submission{
		CardCode:              "XQ4R-7NMT",
		Email:                 "donor@example.com",
		CardType:              "Amazon (Physical)",
		Amount:                50,
		ScreenshotName:        "proof.png",
		ScreenshotContentType: "image/png",
		Screenshot:            screenshot,
	})

	require.True(t, result.Success)
	assert.Equal(t, "XQ4R-7NMT", got.CardCode)
	assert.Equal(t, "donor@example.com", got.Email)
	assert.Equal(t, "Amazon (Physical)", got.CardType)
	assert.Equal(t, 50.0, got.Amount)
	assert.Equal(t, "proof.png", got.ScreenshotName)
	assert.Equal(t, int64(len(screenshot)), screenshotSize)
}

func TestSubmitOmitsEmptyScreenshot(t *testing.T) {
	var hadScreenshot bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(16<<20))
		_, _, err := r.FormFile("screenshot")
		hadScreenshot = err == nil

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	t.Cleanup(server.Close)
	config.SetProcessorEndpoint(server.URL)

	result := Submit(context.Background(), Submission{
		CardCode: "ABCD-1234",
		CardType: "Visa",
		Amount:   100,
	})

	require.True(t, result.Success)
	assert.False(t, hadScreenshot, "no screenshot part should be written when none was uploaded")
}

func TestSubmitSendsAuthorizationHeader(t *testing.T) {
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	t.Cleanup(server.Close)
	config.SetProcessorEndpoint(server.URL)

	t.Setenv("PROCESSOR_ENDPOINT", server.URL)
	t.Setenv("PROCESSOR_API_KEY", "test-key-123")
	require.NoError(t, config.LoadProcessorConfig())
	config.SetProcessorEndpoint(server.URL)

	result := Submit(context.Background(), Submission{
		CardCode: "ABCD-1234",
		CardType: "Visa",
		Amount:   100,
	})

	require.True(t, result.Success)
	assert.Equal(t, "Bearer test-key-123", authHeader)
}
