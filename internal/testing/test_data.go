// test_data.go - donation fixtures for the integration suite
package testing

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"gcdbackend/internal/data"
)

var cardCodeAlphabet = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

// RandomCardCode builds a plausible-looking claim code like "XQ4R-7NMT-KD2W".
func RandomCardCode() string {
	var b strings.Builder
	for group := 0; group < 3; group++ {
		if group > 0 {
			b.WriteRune('-')
		}
		for i := 0; i < 4; i++ {
			b.WriteRune(cardCodeAlphabet[rand.Intn(len(cardCodeAlphabet))])
		}
	}
	return b.String()
}

// TestDonationData is one synthetic donation attempt.
type TestDonationData struct {
	DonationID string
	Reference  string
	CardType   string
	Amount     float64
	CardCode   string
	Email      string
}

// GenerateTestDonation builds a donation against a card type from the test
// catalog.
func (ts *TestSuite) GenerateTestDonation(cardType string, amount float64) TestDonationData {
	id := ts.NextID()
	return TestDonationData{
		DonationID: id,
		Reference:  fmt.Sprintf("GC-%05d", rand.Intn(100000)),
		CardType:   cardType,
		Amount:     amount,
		CardCode:   RandomCardCode(),
		Email:      fmt.Sprintf("donor+%s@test.com", id),
	}
}

// ToRecord converts the fixture into a database row in the given status.
func (td TestDonationData) ToRecord(status string) data.Donation {
	return data.Donation{
		DonationID:     td.DonationID,
		Reference:      td.Reference,
		AccessToken:    "test-token-" + td.DonationID,
		SubmissionDate: time.Now(),
		CardType:       td.CardType,
		Amount:         td.Amount,
		CardCode:       td.CardCode,
		Email:          td.Email,
		Status:         status,
	}
}
