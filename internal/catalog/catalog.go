package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gcdbackend/internal/logger"
)

// Service holds the static gift card catalog. The catalog is loaded once at
// startup and immutable afterwards; the lock only guards against a reload
// racing an in-flight request.
type Service struct {
	cards      []CardEntry
	byType     map[string]CardEntry
	categories map[string][]string

	lastLoaded time.Time
	mutex      sync.RWMutex
}

func NewService() *Service {
	return &Service{
		byType: make(map[string]CardEntry),
	}
}

// Load reads the catalog file if it exists, otherwise falls back to the
// built-in default catalog. The category table is validated either way:
// every type a category references must exist in the catalog.
func (s *Service) Load(path string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	catalog := CatalogData{
		Cards:      defaultCards(),
		Categories: defaultCategories(),
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fileData CatalogData
			if err := json.Unmarshal(raw, &fileData); err != nil {
				return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
			}
			if len(fileData.Cards) > 0 {
				catalog.Cards = fileData.Cards
			}
			if len(fileData.Categories) > 0 {
				catalog.Categories = fileData.Categories
			}
			logger.LogInfo("Loaded catalog from %s", path)
		case os.IsNotExist(err):
			logger.LogInfo("Catalog file %s not found, using built-in catalog", path)
		default:
			return fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
	}

	if err := validate(catalog); err != nil {
		return err
	}

	s.cards = catalog.Cards
	s.categories = catalog.Categories
	s.byType = make(map[string]CardEntry, len(catalog.Cards))
	for _, card := range catalog.Cards {
		s.byType[card.Type] = card
	}
	s.lastLoaded = time.Now()

	logger.LogInfo("Catalog ready: %d cards, %d categories", len(s.cards), len(s.categories))
	return nil
}

// validate fails fast on a malformed catalog rather than letting a bad
// category table silently filter everything to nothing.
func validate(catalog CatalogData) error {
	if len(catalog.Cards) == 0 {
		return fmt.Errorf("catalog contains no cards")
	}

	seen := make(map[string]bool, len(catalog.Cards))
	for _, card := range catalog.Cards {
		if card.Type == "" {
			return fmt.Errorf("catalog entry with empty type")
		}
		if seen[card.Type] {
			return fmt.Errorf("duplicate catalog entry: %s", card.Type)
		}
		seen[card.Type] = true

		if len(card.Amounts) == 0 {
			return fmt.Errorf("catalog entry %s has no amounts", card.Type)
		}
		for _, amount := range card.Amounts {
			if amount <= 0 {
				return fmt.Errorf("catalog entry %s has non-positive amount %v", card.Type, amount)
			}
		}
	}

	for tag, types := range catalog.Categories {
		for _, cardType := range types {
			if !seen[cardType] {
				return fmt.Errorf("category %q references unknown card type %q", tag, cardType)
			}
		}
	}

	return nil
}

// Cards returns the full catalog in its original order.
func (s *Service) Cards() []CardEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cards := make([]CardEntry, len(s.cards))
	copy(cards, s.cards)
	return cards
}

// Categories returns the category tags, sorted for a stable response.
func (s *Service) Categories() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tags := make([]string, 0, len(s.categories))
	for tag := range s.categories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Filter narrows the catalog by an optional category tag and an optional
// case-insensitive substring search on the card type. The two criteria
// compose by intersection and the original catalog order is preserved.
// An empty result is a valid outcome, not an error.
func (s *Service) Filter(criteria FilterCriteria) ([]CardEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	filtered := s.cards

	if criteria.Category != "" && criteria.Category != "all" {
		members, ok := s.categories[criteria.Category]
		if !ok {
			return nil, fmt.Errorf("unknown category: %s", criteria.Category)
		}
		memberSet := make(map[string]bool, len(members))
		for _, t := range members {
			memberSet[t] = true
		}

		narrowed := make([]CardEntry, 0, len(filtered))
		for _, card := range filtered {
			if memberSet[card.Type] {
				narrowed = append(narrowed, card)
			}
		}
		filtered = narrowed
	}

	if term := strings.ToLower(strings.TrimSpace(criteria.SearchTerm)); term != "" {
		narrowed := make([]CardEntry, 0, len(filtered))
		for _, card := range filtered {
			if strings.Contains(strings.ToLower(card.Type), term) {
				narrowed = append(narrowed, card)
			}
		}
		filtered = narrowed
	}

	if len(filtered) == len(s.cards) {
		// No criteria applied; hand back a copy so callers can't mutate us
		cards := make([]CardEntry, len(filtered))
		copy(cards, filtered)
		return cards, nil
	}

	return filtered, nil
}

// FindEntry looks a card up by its type name.
func (s *Service) FindEntry(cardType string) (CardEntry, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, ok := s.byType[cardType]
	return entry, ok
}

// HasAmount reports whether the given denomination is offered for the card type.
func (s *Service) HasAmount(cardType string, amount float64) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, ok := s.byType[cardType]
	if !ok {
		return false
	}
	for _, a := range entry.Amounts {
		if a == amount {
			return true
		}
	}
	return false
}

// CacheAge returns how long ago the catalog was loaded, for debugging.
func (s *Service) CacheAge() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.lastLoaded)
}
