package data

import (
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// DONATION REPOSITORY
// =============================================================================

// Donation statuses
const (
	StatusPending    = "pending"
	StatusSubmitting = "submitting"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// Donation is one gift card donation attempt, from form intake through the
// processor's verdict.
type Donation struct {
	DonationID     string
	Reference      string
	AccessToken    string
	SubmissionDate time.Time
	CardType       string
	Amount         float64
	CardCode       string
	Email          string
	ScreenshotName string
	ScreenshotSize int64
	Status         string
	ProcessorMsg   string
	SubmittedAt    *time.Time
	ConfirmedAt    *time.Time

	ReceiptEmailSent   bool
	ReceiptEmailSentAt *time.Time
}

type DonationRepository struct{}

func NewDonationRepository() *DonationRepository {
	return &DonationRepository{}
}

const donationColumns = `donation_id, reference, access_token, submission_date, card_type, amount,
		card_code, email, screenshot_name, screenshot_size, status, processor_message,
		submitted_at, confirmed_at, receipt_email_sent, receipt_email_sent_at`

func (r *DonationRepository) Insert(d Donation) error {
	const stmt = `
		INSERT INTO donations (` + donationColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := ExecDB(stmt,
		d.DonationID, d.Reference, d.AccessToken, formatTime(d.SubmissionDate),
		d.CardType, d.Amount, d.CardCode, d.Email,
		d.ScreenshotName, d.ScreenshotSize, d.Status, d.ProcessorMsg,
		formatNullableTime(d.SubmittedAt), formatNullableTime(d.ConfirmedAt),
		d.ReceiptEmailSent, formatNullableTime(d.ReceiptEmailSentAt),
	)

	if err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}

	return nil
}

func (r *DonationRepository) GetByID(donationID string) (*Donation, error) {
	const stmt = `SELECT ` + donationColumns + ` FROM donations WHERE donation_id = ?`

	dbConn, err := GetDB()
	if err != nil {
		return nil, err
	}

	ctx, cancel := queryContext()
	defer cancel()

	row := dbConn.QueryRowContext(ctx, stmt, donationID)
	return r.scanDonation(row)
}

// UpdateStatus records the processor's verdict for a donation.
func (r *DonationRepository) UpdateStatus(donationID, status, processorMsg string, submittedAt *time.Time) error {
	const stmt = `
		UPDATE donations
		SET status = ?, processor_message = ?, submitted_at = COALESCE(?, submitted_at)
		WHERE donation_id = ?`

	result, err := ExecDB(stmt, status, processorMsg, formatNullableTime(submittedAt), donationID)
	if err != nil {
		return fmt.Errorf("failed to update donation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("donation not found: %s", donationID)
	}

	return nil
}

// MarkConfirmed records an out-of-band confirmation from the processor webhook.
func (r *DonationRepository) MarkConfirmed(donationID string, confirmedAt time.Time) error {
	const stmt = `
		UPDATE donations
		SET status = ?, confirmed_at = ?
		WHERE donation_id = ?`

	result, err := ExecDB(stmt, StatusSucceeded, formatTime(confirmedAt), donationID)
	if err != nil {
		return fmt.Errorf("failed to mark donation confirmed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check confirmation result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("donation not found: %s", donationID)
	}

	return nil
}

// MarkReceiptSent records that the donor receipt email went out.
func (r *DonationRepository) MarkReceiptSent(donationID string, sentAt time.Time) error {
	const stmt = `
		UPDATE donations
		SET receipt_email_sent = 1, receipt_email_sent_at = ?
		WHERE donation_id = ?`

	if _, err := ExecDB(stmt, formatTime(sentAt), donationID); err != nil {
		return fmt.Errorf("failed to mark receipt sent: %w", err)
	}

	return nil
}

// GetPending returns donations still waiting on a processor verdict, oldest first.
func (r *DonationRepository) GetPending() ([]Donation, error) {
	const stmt = `SELECT ` + donationColumns + `
		FROM donations
		WHERE status IN (?, ?)
		ORDER BY submission_date`

	dbConn, err := GetDB()
	if err != nil {
		return nil, err
	}

	ctx, cancel := queryContext()
	defer cancel()

	rows, err := dbConn.QueryContext(ctx, stmt, StatusPending, StatusSubmitting)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending donations: %w", err)
	}
	defer rows.Close()

	var result []Donation
	for rows.Next() {
		donation, err := r.scanDonationRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation rows: %w", err)
		}
		result = append(result, *donation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donation rows: %w", err)
	}

	return result, nil
}

// DeleteAbandoned removes failed or never-submitted donations older than the
// cutoff, capped at limit rows per call.
func (r *DonationRepository) DeleteAbandoned(cutoff time.Time, limit int) (int, error) {
	const stmt = `
		DELETE FROM donations
		WHERE donation_id IN (
			SELECT donation_id FROM donations
			WHERE status IN (?, ?)
			AND submission_date < ?
			LIMIT ?
		)`

	result, err := ExecDB(stmt, StatusPending, StatusFailed, formatTime(cutoff), limit)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rowsAffected), nil
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

func (r *DonationRepository) scanDonation(row *sql.Row) (*Donation, error) {
	var d Donation
	var submissionDate string
	var submittedAt, confirmedAt, receiptSentAt sql.NullString

	err := row.Scan(
		&d.DonationID, &d.Reference, &d.AccessToken, &submissionDate,
		&d.CardType, &d.Amount, &d.CardCode, &d.Email,
		&d.ScreenshotName, &d.ScreenshotSize, &d.Status, &d.ProcessorMsg,
		&submittedAt, &confirmedAt, &d.ReceiptEmailSent, &receiptSentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}

	return r.populateTimes(&d, submissionDate, submittedAt, confirmedAt, receiptSentAt)
}

func (r *DonationRepository) scanDonationRows(rows *sql.Rows) (*Donation, error) {
	var d Donation
	var submissionDate string
	var submittedAt, confirmedAt, receiptSentAt sql.NullString

	err := rows.Scan(
		&d.DonationID, &d.Reference, &d.AccessToken, &submissionDate,
		&d.CardType, &d.Amount, &d.CardCode, &d.Email,
		&d.ScreenshotName, &d.ScreenshotSize, &d.Status, &d.ProcessorMsg,
		&submittedAt, &confirmedAt, &d.ReceiptEmailSent, &receiptSentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}

	return r.populateTimes(&d, submissionDate, submittedAt, confirmedAt, receiptSentAt)
}

func (r *DonationRepository) populateTimes(d *Donation, submissionDate string, submittedAt, confirmedAt, receiptSentAt sql.NullString) (*Donation, error) {
	parsed, err := time.Parse(TimeFormat, submissionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse submission date: %w", err)
	}
	d.SubmissionDate = parsed

	if d.SubmittedAt, err = parseNullableTime(submittedAt); err != nil {
		return nil, err
	}
	if d.ConfirmedAt, err = parseNullableTime(confirmedAt); err != nil {
		return nil, err
	}
	if d.ReceiptEmailSentAt, err = parseNullableTime(receiptSentAt); err != nil {
		return nil, err
	}

	return d, nil
}
