package selection

import (
	"fmt"
	"net/http"

	"gcdbackend/internal/catalog"
	"gcdbackend/internal/config"
	"gcdbackend/internal/logger"
	"gcdbackend/internal/middleware"
)

// SelectRequest is the payload for picking a card and denomination.
type SelectRequest struct {
	CardType string  `json:"cardType"`
	Amount   float64 `json:"amount"`
}

// SelectHandler records the donor's card choice after checking it against
// the catalog. The UI only offers buttons for amounts that exist, but the
// pair is still validated here so a hand-crafted request can't smuggle in
// an arbitrary amount.
func SelectHandler(store *Store, cat *catalog.Service) http.HandlerFunc {
	return middleware.PublicAPIMiddleware(func(w http.ResponseWriter, r *http.Request) {
		logger.LogHTTPRequest(r)

		var req SelectRequest
		if err := middleware.ParseJSONRequest(r, &req); err != nil {
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
				"Invalid JSON request", err.Error())
			return
		}

		if req.CardType == "" || req.Amount <= 0 {
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_selection",
				"Card type and amount are required", "")
			return
		}

		if _, ok := cat.FindEntry(req.CardType); !ok {
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "unknown_card",
				fmt.Sprintf("Unknown card type: %s", req.CardType), "")
			return
		}

		if !cat.HasAmount(req.CardType, req.Amount) {
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_amount",
				fmt.Sprintf("$%.0f is not offered for %s", req.Amount, req.CardType), "")
			return
		}

		store.Set(req.CardType, req.Amount)
		logger.LogInfo("Selection recorded: %s $%.2f", req.CardType, req.Amount)

		middleware.WriteAPISuccess(w, r, map[string]interface{}{
			"cardType":     req.CardType,
			"amount":       req.Amount,
			"redirect_url": config.RedirectBaseURL + "/giftcard",
		})
	})
}

// SelectionHandler returns the current selection. An empty selection is a
// distinct, non-error state the form page handles explicitly.
func SelectionHandler(store *Store) http.HandlerFunc {
	return middleware.PublicAPIMiddleware(func(w http.ResponseWriter, r *http.Request) {
		logger.LogHTTPRequest(r)

		sel, ok := store.Get()
		middleware.WriteAPISuccess(w, r, map[string]interface{}{
			"selected":  ok,
			"selection": sel,
		})
	})
}
