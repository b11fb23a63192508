package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcdbackend/internal/data"
)

// TestDonationRepository covers the persistence layer against a throwaway
// SQLite file.
func TestDonationRepository(t *testing.T) {
	suite := NewTestSuite(t)

	t.Run("InsertAndGet", func(t *testing.T) {
		td := suite.GenerateTestDonation("Visa", 100)
		record := td.ToRecord(data.StatusSubmitting)
		record.ScreenshotName = "proof.png"
		record.ScreenshotSize = 2048

		require.NoError(t, suite.Repo.Insert(record))

		got, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, td.Reference, got.Reference)
		assert.Equal(t, td.CardCode, got.CardCode)
		assert.Equal(t, td.Email, got.Email)
		assert.Equal(t, 100.0, got.Amount)
		assert.Equal(t, "proof.png", got.ScreenshotName)
		assert.Equal(t, int64(2048), got.ScreenshotSize)
		assert.Equal(t, data.StatusSubmitting, got.Status)
		assert.Nil(t, got.SubmittedAt)
		assert.False(t, got.ReceiptEmailSent)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := suite.Repo.GetByID("no-such-donation")
		require.Error(t, err)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		td := suite.GenerateTestDonation("Walmart", 25)
		require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

		now := time.Now()
		require.NoError(t, suite.Repo.UpdateStatus(td.DonationID, data.StatusSucceeded, "Accepted", &now))

		got, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, data.StatusSucceeded, got.Status)
		assert.Equal(t, "Accepted", got.ProcessorMsg)
		require.NotNil(t, got.SubmittedAt)

		// A nil submittedAt must not wipe the recorded timestamp
		require.NoError(t, suite.Repo.UpdateStatus(td.DonationID, data.StatusFailed, "reversed", nil))
		got, err = suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		require.NotNil(t, got.SubmittedAt)
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		err := suite.Repo.UpdateStatus("no-such-donation", data.StatusFailed, "nope", nil)
		require.Error(t, err)
	})

	t.Run("MarkConfirmedAndReceiptSent", func(t *testing.T) {
		td := suite.GenerateTestDonation("Visa", 50)
		require.NoError(t, suite.Repo.Insert(td.ToRecord(data.StatusSubmitting)))

		confirmedAt := time.Now()
		require.NoError(t, suite.Repo.MarkConfirmed(td.DonationID, confirmedAt))
		require.NoError(t, suite.Repo.MarkReceiptSent(td.DonationID, time.Now()))

		got, err := suite.Repo.GetByID(td.DonationID)
		require.NoError(t, err)
		assert.Equal(t, data.StatusSucceeded, got.Status)
		require.NotNil(t, got.ConfirmedAt)
		assert.True(t, got.ReceiptEmailSent)
		require.NotNil(t, got.ReceiptEmailSentAt)
	})

	t.Run("GetPending", func(t *testing.T) {
		older := suite.GenerateTestDonation("Visa", 100)
		olderRecord := older.ToRecord(data.StatusPending)
		olderRecord.SubmissionDate = time.Now().Add(-2 * time.Hour)
		require.NoError(t, suite.Repo.Insert(olderRecord))

		newer := suite.GenerateTestDonation("Walmart", 25)
		require.NoError(t, suite.Repo.Insert(newer.ToRecord(data.StatusSubmitting)))

		done := suite.GenerateTestDonation("Visa", 200)
		doneRecord := done.ToRecord(data.StatusSucceeded)
		require.NoError(t, suite.Repo.Insert(doneRecord))

		pending, err := suite.Repo.GetPending()
		require.NoError(t, err)

		ids := make(map[string]int)
		for i, d := range pending {
			ids[d.DonationID] = i
		}
		require.Contains(t, ids, older.DonationID)
		require.Contains(t, ids, newer.DonationID)
		assert.NotContains(t, ids, done.DonationID)
		assert.Less(t, ids[older.DonationID], ids[newer.DonationID], "pending donations should come back oldest first")
	})

	t.Run("DeleteAbandoned", func(t *testing.T) {
		stale := suite.GenerateTestDonation("Visa", 100)
		staleRecord := stale.ToRecord(data.StatusFailed)
		staleRecord.SubmissionDate = time.Now().Add(-72 * time.Hour)
		require.NoError(t, suite.Repo.Insert(staleRecord))

		fresh := suite.GenerateTestDonation("Walmart", 50)
		freshRecord := fresh.ToRecord(data.StatusFailed)
		require.NoError(t, suite.Repo.Insert(freshRecord))

		settled := suite.GenerateTestDonation("Visa", 50)
		settledRecord := settled.ToRecord(data.StatusSucceeded)
		settledRecord.SubmissionDate = time.Now().Add(-72 * time.Hour)
		require.NoError(t, suite.Repo.Insert(settledRecord))

		deleted, err := suite.Repo.DeleteAbandoned(time.Now().Add(-48*time.Hour), 25)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, 1)

		_, err = suite.Repo.GetByID(stale.DonationID)
		assert.Error(t, err, "stale failed donation should be gone")

		_, err = suite.Repo.GetByID(fresh.DonationID)
		assert.NoError(t, err, "recent failed donation should survive")

		_, err = suite.Repo.GetByID(settled.DonationID)
		assert.NoError(t, err, "settled donation should never be cleaned up")
	})
}
