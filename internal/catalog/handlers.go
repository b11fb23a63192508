package catalog

import (
	"net/http"

	"gcdbackend/internal/logger"
	"gcdbackend/internal/middleware"
)

// CardsHandler serves the catalog, optionally narrowed by ?category= and ?search=.
func CardsHandler(s *Service) http.HandlerFunc {
	return middleware.PublicAPIMiddleware(func(w http.ResponseWriter, r *http.Request) {
		logger.LogHTTPRequest(r)

		criteria := FilterCriteria{
			Category:   r.URL.Query().Get("category"),
			SearchTerm: r.URL.Query().Get("search"),
		}

		cards, err := s.Filter(criteria)
		if err != nil {
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_filter", err.Error(), "")
			return
		}

		middleware.WriteAPISuccess(w, r, map[string]interface{}{
			"cards": cards,
			"count": len(cards),
		})
	})
}

// CategoriesHandler serves the fixed category tag list.
func CategoriesHandler(s *Service) http.HandlerFunc {
	return middleware.PublicAPIMiddleware(func(w http.ResponseWriter, r *http.Request) {
		logger.LogHTTPRequest(r)

		middleware.WriteAPISuccess(w, r, map[string]interface{}{
			"categories": s.Categories(),
		})
	})
}
