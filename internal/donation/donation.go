// internal/donation/donation.go
package donation

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gcdbackend/internal/catalog"
	"gcdbackend/internal/data"
	"gcdbackend/internal/logger"
	"gcdbackend/internal/selection"
)

// Screenshot upload limits
const (
	maxScreenshotSize = 5 << 20  // 5 MB
	maxFormMemory     = 10 << 20 // multipart parse buffer
)

// inject shared services from main
var (
	catalogService *catalog.Service
	selectionStore *selection.Store
	repo           = data.NewDonationRepository()
)

func SetCatalogService(service *catalog.Service) {
	catalogService = service
}

func SetSelectionStore(store *selection.Store) {
	selectionStore = store
}

// Single in-flight submission guard. The form is driven by one donor at a
// time, so a plain flag is enough; a second submit while one is running is
// rejected rather than queued.
var (
	submitMu sync.Mutex
	inFlight bool
)

func beginSubmit() bool {
	submitMu.Lock()
	defer submitMu.Unlock()
	if inFlight {
		return false
	}
	inFlight = true
	return true
}

func endSubmit() {
	submitMu.Lock()
	inFlight = false
	submitMu.Unlock()
}

// Per-IP rate limiting and duplicate suppression
var (
	rateLimiter       = make(map[string]time.Time)
	rateLimitDuration = time.Minute
	rateLimiterMu     sync.Mutex

	recentSubmissions  = make(map[string]time.Time)
	duplicateThreshold = time.Minute * 3
	submissionMu       sync.Mutex
)

var (
	statsMu               sync.Mutex
	totalSubmissions      int
	successfulSubmissions int
	failedSubmissions     int
	csrfFailures          int
	rateLimitBlocks       int
	duplicateBlocks       int
)

func logAndIncrement(stat *int, label string) {
	statsMu.Lock()
	*stat++
	count := *stat
	statsMu.Unlock()
	logger.LogInfo("Stat update: %s = %d", label, count)
}

func isRateLimited(ip string) bool {
	rateLimiterMu.Lock()
	defer rateLimiterMu.Unlock()
	last, ok := rateLimiter[ip]
	return ok && time.Since(last) < rateLimitDuration
}

func setRateLimit(ip string) {
	rateLimiterMu.Lock()
	defer rateLimiterMu.Unlock()
	rateLimiter[ip] = time.Now()
}

// isDuplicate flags a resubmission of the same card within the threshold.
// A donor retrying after a failure is not blocked: failed attempts remove
// their key so the exact same input can be retried fresh.
func isDuplicate(key string) bool {
	submissionMu.Lock()
	defer submissionMu.Unlock()

	last, exists := recentSubmissions[key]
	if exists && time.Since(last) < duplicateThreshold {
		return true
	}
	recentSubmissions[key] = time.Now()
	return false
}

func releaseDuplicate(key string) {
	submissionMu.Lock()
	delete(recentSubmissions, key)
	submissionMu.Unlock()
}

func submissionKey(cardCode, cardType string, amount float64) string {
	base := strings.ToLower(strings.TrimSpace(cardCode)) + "|" +
		strings.ToLower(cardType) + "|" +
		fmt.Sprintf("%g", amount)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(base)))
}

// newDonationID returns a uuid for the database key.
func newDonationID() string {
	return uuid.NewString()
}

// generateReference returns a short donor-facing code like "GC-48213",
// printed on the receipt so donors have something quotable.
func generateReference() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000)) // 0-99999
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GC-%05d", n.Int64()), nil
}

// PreloadPendingDonations surfaces donations that were in flight when the
// process last stopped. They stay in the database for the webhook to
// resolve; this just makes sure an operator sees them at startup.
func PreloadPendingDonations() error {
	pending, err := repo.GetPending()
	if err != nil {
		return fmt.Errorf("loading pending donations: %w", err)
	}

	if len(pending) == 0 {
		logger.LogInfo("No pending donations to recover")
		return nil
	}

	for _, d := range pending {
		logger.LogWarn("Donation %s (%s, $%.2f) still awaiting processor verdict since %s",
			d.Reference, d.CardType, d.Amount, d.SubmissionDate.Format(time.RFC3339))
	}
	logger.LogInfo("Preloaded %d pending donations", len(pending))
	return nil
}

// successMessage is the donor-facing confirmation, interpolating the card
// type and amount the donor picked.
func successMessage(cardType string, amount float64) string {
	return fmt.Sprintf("Your %s gift card for $%g has been received successfully!", cardType, amount)
}
