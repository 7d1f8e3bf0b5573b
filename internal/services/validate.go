package services

import (
	"net/mail"
	"strconv"
	"strings"

	"github.com/mieuxdonner/donation-gobackend/internal/models"
)

// Amount bounds in minor currency units: €1.00 to €999,999.00.
const (
	MinAmountMinor = 100
	MaxAmountMinor = 99_999_900
)

const (
	minNameLen    = 2
	maxNameLen    = 100
	maxAddressLen = 255
	maxTipPercent = 20
)

// RawDonation carries the unvalidated form fields as submitted by the caller.
type RawDonation struct {
	Amount        string
	PaymentType   string
	PaymentMethod string
	Email         string
	Name          string
	Address       string
	Charity       string
	TipPercentage string
}

// Validator normalizes and validates donation submissions against the active
// feature configuration. It has no side effects and never calls the
// processor.
type Validator struct {
	cfg FeatureConfig
}

func NewValidator(cfg FeatureConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks every rule independently and collects all violations
// before returning, so the caller gets the full list in one round trip.
func (v *Validator) Validate(raw RawDonation) (*models.DonationRequest, error) {
	var errs []string

	amount, err := strconv.ParseInt(strings.TrimSpace(raw.Amount), 10, 64)
	if err != nil {
		errs = append(errs, "Amount must be a whole number of cents")
	} else {
		if amount < MinAmountMinor {
			errs = append(errs, "Amount must be at least €1.00")
		}
		if amount > MaxAmountMinor {
			errs = append(errs, "Amount cannot exceed €999,999.00")
		}
	}

	paymentType := strings.TrimSpace(raw.PaymentType)
	if paymentType != models.PaymentTypeOneTime && paymentType != models.PaymentTypeMonthly {
		errs = append(errs, "Invalid payment type selected")
	}

	// A missing method defaults to card; an explicitly invalid one is an
	// error, not a fallback.
	paymentMethod := strings.TrimSpace(raw.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = models.MethodCard
	}
	switch paymentMethod {
	case models.MethodCard, models.MethodPayPal, models.MethodGooglePay,
		models.MethodApplePay, models.MethodExpressCheckout, models.MethodTwint:
		if !v.cfg.methodEnabled(paymentMethod) {
			errs = append(errs, "Payment method not available")
		}
	default:
		errs = append(errs, "Invalid payment method selected")
	}

	email := strings.TrimSpace(raw.Email)
	if !validEmail(email) {
		errs = append(errs, "Valid email address is required")
	}

	name := strings.TrimSpace(raw.Name)
	if len(name) < minNameLen {
		errs = append(errs, "Name must be at least 2 characters long")
	}
	if len(name) > maxNameLen {
		errs = append(errs, "Name cannot exceed 100 characters")
	}

	address := ""
	if v.cfg.AddressEnabled {
		address = strings.TrimSpace(raw.Address)
		if len(address) > maxAddressLen {
			errs = append(errs, "Address cannot exceed 255 characters")
		}
	}

	charity := strings.TrimSpace(raw.Charity)
	if charity == "" {
		errs = append(errs, "Please select a charity to support")
	} else if !v.cfg.Catalog.IsValid(charity) {
		errs = append(errs, "Invalid charity selection")
	}

	tip := 0
	if t := strings.TrimSpace(raw.TipPercentage); t != "" {
		tip, err = strconv.Atoi(t)
		if err != nil || tip < 0 || tip > maxTipPercent {
			errs = append(errs, "Invalid tip percentage")
		}
	}
	if tip != 0 && !v.cfg.TipEnabled {
		errs = append(errs, "Tips are not accepted")
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &models.DonationRequest{
		AmountMinor:   amount,
		PaymentType:   paymentType,
		PaymentMethod: paymentMethod,
		Email:         email,
		Name:          name,
		Address:       address,
		CharityCode:   charity,
		TipPercent:    tip,
	}, nil
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return strings.Contains(s[at+1:], ".")
}
