// mock_processor.go - stand-in for the external gift card processor
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockProcessorService imitates the card processor's submission endpoint so
// the full forwarding path can run without network access or credentials.
type MockProcessorService struct {
	Server *httptest.Server
	mu     sync.RWMutex

	// Configuration for failure simulation
	ShouldFail           bool
	FailureStatus        int
	FailureMessage       string // rendered as the "message" field
	FailureError         string // rendered as the "error" field
	RespondMalformed     bool   // return non-JSON body
	SimulateNetworkDelay time.Duration

	// Counters for tracking
	SubmitAttempts int
	Received       []ReceivedSubmission
}

// ReceivedSubmission is what the mock parsed out of one multipart POST.
type ReceivedSubmission struct {
	CardCode       string
	Email          string
	CardType       string
	Amount         float64
	ScreenshotName string
	ScreenshotSize int
	Authorization  string
}

// NewMockProcessorService starts a mock processor listening on a local port.
func NewMockProcessorService() *MockProcessorService {
	mock := &MockProcessorService{
		FailureStatus: http.StatusBadRequest,
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handleSubmit))
	return mock
}

// Close shuts down the mock server
func (m *MockProcessorService) Close() {
	m.Server.Close()
}

// URL returns the mock submission endpoint
func (m *MockProcessorService) URL() string {
	return m.Server.URL
}

func (m *MockProcessorService) handleSubmit(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.SubmitAttempts++
	shouldFail := m.ShouldFail
	failStatus := m.FailureStatus
	failMessage := m.FailureMessage
	failError := m.FailureError
	malformed := m.RespondMalformed
	delay := m.SimulateNetworkDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	received := ReceivedSubmission{
		CardCode:      r.FormValue("cardCode"),
		Email:         r.FormValue("email"),
		CardType:      r.FormValue("cardType"),
		Authorization: r.Header.Get("Authorization"),
	}
	received.Amount, _ = strconv.ParseFloat(r.FormValue("amount"), 64)

	if file, header, err := r.FormFile("screenshot"); err == nil {
		received.ScreenshotName = header.Filename
		received.ScreenshotSize = int(header.Size)
		file.Close()
	}

	m.mu.Lock()
	m.Received = append(m.Received, received)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if malformed {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "<html>gateway timeout</html>")
		return
	}

	if shouldFail {
		w.WriteHeader(failStatus)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": failMessage,
			"error":   failError,
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Accepted %s gift card", received.CardType),
	})
}

// SetFailureMode configures the mock to reject submissions. Message and
// errMsg map to the processor's "message" and "error" response fields.
func (m *MockProcessorService) SetFailureMode(status int, message, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ShouldFail = true
	m.FailureStatus = status
	m.FailureMessage = message
	m.FailureError = errMsg
}

// SetMalformedResponse makes the mock return a non-JSON body.
func (m *MockProcessorService) SetMalformedResponse(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RespondMalformed = enabled
}

// SetNetworkDelay simulates network latency
func (m *MockProcessorService) SetNetworkDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SimulateNetworkDelay = delay
}

// LastReceived returns the most recently parsed submission.
func (m *MockProcessorService) LastReceived() (ReceivedSubmission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.Received) == 0 {
		return ReceivedSubmission{}, false
	}
	return m.Received[len(m.Received)-1], true
}

// Reset clears all mock data and failure configuration.
func (m *MockProcessorService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ShouldFail = false
	m.FailureStatus = http.StatusBadRequest
	m.FailureMessage = ""
	m.FailureError = ""
	m.RespondMalformed = false
	m.SimulateNetworkDelay = 0
	m.SubmitAttempts = 0
	m.Received = nil
}

// GetStats returns statistics about mock usage
func (m *MockProcessorService) GetStats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"submit_attempts":      m.SubmitAttempts,
		"parsed_submissions":   len(m.Received),
		"simulated_rejections": boolToInt(m.ShouldFail),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
