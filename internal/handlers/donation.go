package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/mieuxdonner/donation-gobackend/internal/models"
	"github.com/mieuxdonner/donation-gobackend/internal/services"
)

// DonationHandler exposes the donation checkout flow over HTTP and owns the
// mapping from the service error taxonomy to the client-facing JSON
// contract.
type DonationHandler struct {
	validator *services.Validator
	service   *services.DonationService
	nonces    *services.NonceService
}

func NewDonationHandler(validator *services.Validator, service *services.DonationService, nonces *services.NonceService) *DonationHandler {
	return &DonationHandler{validator: validator, service: service, nonces: nonces}
}

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorPayload struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data}); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(struct {
		Success bool         `json:"success"`
		Data    errorPayload `json:"data"`
	}{Data: errorPayload{Message: message, Errors: details}}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// CreateDonation handles the form-encoded donation submission.
func (h *DonationHandler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Invalid request method.", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data", nil)
		return
	}
	if !h.nonces.Verify(r.PostFormValue("nonce")) {
		writeError(w, http.StatusForbidden, "Security check failed.", nil)
		return
	}

	raw := services.RawDonation{
		Amount:        r.PostFormValue("amount"),
		PaymentType:   r.PostFormValue("payment_type"),
		PaymentMethod: r.PostFormValue("payment_method"),
		Email:         r.PostFormValue("email"),
		Name:          r.PostFormValue("name"),
		Address:       r.PostFormValue("address"),
		Charity:       r.PostFormValue("charity"),
		TipPercentage: r.PostFormValue("tip_percentage"),
	}

	req, err := h.validator.Validate(raw)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, "Validation failed", vErr.Errors)
			return
		}
		writeError(w, http.StatusBadRequest, "Validation failed", nil)
		return
	}

	result, err := h.service.ProcessDonation(r.Context(), req)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	switch {
	case result.CheckoutURL != "":
		writeSuccess(w, map[string]any{
			"checkoutUrl": result.CheckoutURL,
			"paymentType": result.PaymentType,
			"useCheckout": true,
		})
	case result.SubscriptionID != "":
		writeSuccess(w, map[string]any{
			"clientSecret":     result.ClientSecret,
			"paymentType":      result.PaymentType,
			"subscriptionId":   result.SubscriptionID,
			"usePaymentIntent": true,
		})
	default:
		writeSuccess(w, map[string]any{
			"clientSecret":     result.ClientSecret,
			"paymentType":      result.PaymentType,
			"usePaymentIntent": true,
		})
	}
}

func (h *DonationHandler) writeProcessError(w http.ResponseWriter, err error) {
	var (
		comboErr       *services.UnsupportedCombinationError
		reqErr         *services.ProcessorRequestError
		unavailableErr *services.ProcessorUnavailableError
	)
	switch {
	case errors.As(err, &comboErr):
		writeError(w, http.StatusBadRequest, comboErr.Message, nil)
	case errors.As(err, &reqErr):
		// Full detail stays in the log; the donor-facing message only
		// names the method.
		log.Printf("Processor rejected request: %v", reqErr)
		writeError(w, http.StatusBadRequest, "Payment method not supported: "+reqErr.Method, nil)
	case errors.As(err, &unavailableErr):
		log.Printf("Processor unavailable: %v", unavailableErr)
		writeError(w, http.StatusServiceUnavailable, "Payment service temporarily unavailable", nil)
	default:
		log.Printf("Donation processing error: %v", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
	}
}

// IssueNonce hands the donation form a token to echo back on submission.
func (h *DonationHandler) IssueNonce(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"nonce": h.nonces.Issue()})
}

// ListDonations returns recorded donations for operators. Guarded by a
// shared admin token header.
func (h *DonationHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("x-admin-token")
	if token == "" || token != os.Getenv("ADMIN_API_TOKEN") {
		writeError(w, http.StatusForbidden, "Security check failed.", nil)
		return
	}

	statusFilter := r.URL.Query().Get("status")
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	var statusPtr, startPtr, endPtr *string
	if statusFilter != "" {
		statusPtr = &statusFilter
	}
	if startDate != "" {
		startPtr = &startDate
	}
	if endDate != "" {
		endPtr = &endDate
	}

	donations, err := h.service.ListDonations(r.Context(), statusPtr, startPtr, endPtr)
	if err != nil {
		log.Printf("Failed to fetch donations: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch donations", nil)
		return
	}
	if donations == nil {
		donations = []models.DonationRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(donations); err != nil {
		log.Printf("Failed to encode donations: %v", err)
	}
}

// MethodNotAllowed keeps the 405 contract JSON-shaped when the router
// rejects the verb before a handler runs.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Invalid request method.", nil)
}
