package models

import (
	"strconv"
	"time"
)

// Payment types accepted on the wire.
const (
	PaymentTypeOneTime = "onetime"
	PaymentTypeMonthly = "monthly"
)

// Payment methods accepted on the wire.
const (
	MethodCard            = "card"
	MethodPayPal          = "paypal"
	MethodGooglePay       = "google_pay"
	MethodApplePay        = "apple_pay"
	MethodExpressCheckout = "express_checkout"
	MethodTwint           = "twint"
)

// SchemaVersion tags every processor object created by this backend.
const SchemaVersion = "1.0"

// DonationRequest is a donation submission that passed validation. Amount is
// in minor currency units (cents) and already includes the tip; the tip
// percentage is carried for reporting only and never recomputed.
type DonationRequest struct {
	AmountMinor   int64
	PaymentType   string
	PaymentMethod string
	Email         string
	Name          string
	Address       string
	CharityCode   string
	TipPercent    int
}

// Metadata builds the flat annotation bag attached to every processor object.
// Keys are fixed; values are pass-through and never interpreted.
func (r *DonationRequest) Metadata(charityName string) map[string]string {
	return map[string]string{
		"donor_name":       r.Name,
		"donor_address":    r.Address,
		"payment_type":     r.PaymentType,
		"payment_method":   r.PaymentMethod,
		"selected_charity": charityName,
		"charity_code":     r.CharityCode,
		"tip_percentage":   strconv.Itoa(r.TipPercent),
		"schema_version":   SchemaVersion,
	}
}

// ChargeResult is the normalized outcome of a successful orchestration.
// Exactly one of ClientSecret or CheckoutURL is set.
type ChargeResult struct {
	ClientSecret   string
	CheckoutURL    string
	SubscriptionID string
	PaymentType    string
}

// DonationRecord is the reporting document persisted after a successful
// processor call.
type DonationRecord struct {
	ID                string    `bson:"_id,omitempty" json:"id"`
	AmountMinor       int64     `bson:"amount_minor" json:"amount_minor"`
	Currency          string    `bson:"currency" json:"currency"`
	PaymentType       string    `bson:"payment_type" json:"payment_type"`
	PaymentMethod     string    `bson:"payment_method" json:"payment_method"`
	DonorName         string    `bson:"donor_name" json:"donor_name"`
	DonorEmail        string    `bson:"donor_email" json:"donor_email"`
	CharityCode       string    `bson:"charity_code" json:"charity_code"`
	TipPercent        int       `bson:"tip_percentage" json:"tip_percentage"`
	Status            string    `bson:"status" json:"status"` // e.g., "PENDING", "SUCCEEDED", "EXPIRED"
	PaymentIntentID   string    `bson:"payment_intent_id,omitempty" json:"payment_intent_id,omitempty"`
	SubscriptionID    string    `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	CheckoutSessionID string    `bson:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}
