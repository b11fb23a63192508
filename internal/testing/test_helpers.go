// test_helpers.go - shared setup for the integration suite
package testing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gcdbackend/internal/catalog"
	"gcdbackend/internal/data"
	"gcdbackend/internal/selection"
)

// TestConfig holds configuration for test runs
type TestConfig struct {
	DBPath      string
	CatalogPath string
	TestDataDir string
}

// TestSuite wires a temporary database, a catalog, and a selection store the
// way main does at startup.
type TestSuite struct {
	Config    TestConfig
	DB        *sql.DB
	Catalog   *catalog.Service
	Store     *selection.Store
	Repo      *data.DonationRepository
	mu        sync.Mutex
	testCount int
}

// NewTestSuite creates an isolated suite with its own database file.
func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	testDir := filepath.Join(os.TempDir(), fmt.Sprintf("gcdtest_%d_%d",
		time.Now().UnixNano(), os.Getpid()))
	if err := os.MkdirAll(testDir, 0755); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}

	dbPath := filepath.Join(testDir, fmt.Sprintf("test_%d.db", time.Now().UnixNano()))

	catalogPath := filepath.Join(testDir, "test_catalog.json")
	if err := createTestCatalog(catalogPath); err != nil {
		t.Fatalf("Failed to create test catalog: %v", err)
	}

	suite := &TestSuite{
		Config: TestConfig{
			DBPath:      dbPath,
			CatalogPath: catalogPath,
			TestDataDir: testDir,
		},
		Store: selection.NewStore(),
		Repo:  data.NewDonationRepository(),
	}

	if err := suite.initDatabase(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	suite.Catalog = catalog.NewService()
	if err := suite.Catalog.Load(catalogPath); err != nil {
		t.Fatalf("Failed to load test catalog: %v", err)
	}

	t.Cleanup(func() {
		suite.Cleanup()
	})

	return suite
}

func (ts *TestSuite) initDatabase() error {
	if err := data.InitDB(ts.Config.DBPath); err != nil {
		return fmt.Errorf("failed to init data package: %w", err)
	}

	db, err := data.GetDB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	ts.DB = db

	if err := data.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Cleanup removes temporary test files and closes the database.
func (ts *TestSuite) Cleanup() {
	if err := data.CloseDB(); err != nil {
		fmt.Printf("Warning: failed to close test database: %v\n", err)
	}

	// Give SQLite a moment to release file handles
	time.Sleep(100 * time.Millisecond)

	if err := os.RemoveAll(ts.Config.TestDataDir); err != nil {
		fmt.Printf("Warning: failed to cleanup test directory %s: %v\n", ts.Config.TestDataDir, err)
	}
}

// NextID returns a unique donation ID for this suite run.
func (ts *TestSuite) NextID() string {
	ts.mu.Lock()
	ts.testCount++
	count := ts.testCount
	ts.mu.Unlock()

	return fmt.Sprintf("test-donation-%d-%d", time.Now().Unix(), count)
}

// WaitForCondition polls until the condition holds or the timeout elapses.
func (ts *TestSuite) WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// createTestCatalog writes a small but representative catalog file.
func createTestCatalog(path string) error {
	testCatalog := map[string]interface{}{
		"cards": []map[string]interface{}{
			{"type": "Amazon (Physical)", "amounts": []float64{25, 50, 100}},
			{"type": "Visa", "amounts": []float64{50, 100, 200}},
			{"type": "Walmart", "amounts": []float64{25, 50}},
			{"type": "Vanilla Prepaid", "amounts": []float64{25, 50, 100}},
		},
		"categories": map[string][]string{
			"popular": {"Amazon (Physical)", "Visa"},
			"retail":  {"Walmart"},
			"prepaid": {"Visa", "Vanilla Prepaid"},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(testCatalog)
}
