package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v74"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mieuxdonner/donation-gobackend/internal/models"
)

// Twint cap: 5,000 CHF in minor units.
const twintMaxAmountMinor = 500_000

const (
	currencyEUR = string(stripe.CurrencyEUR)
	currencyCHF = string(stripe.CurrencyCHF)
)

// DonationService is the payment orchestrator. Given a validated request it
// selects the processor call sequence for the (payment type, payment method)
// pair and returns a normalized result. Amounts arrive tip-inclusive; the
// tip percentage only travels in metadata.
//
// Processor object creation is not transactional: when a later step fails,
// earlier objects stay behind and are reused on the next attempt (except
// prices, which are always fresh).
type DonationService struct {
	api      StripeAPI
	resolver *ProcessorResolver
	cfg      FeatureConfig
	records  *mongo.Collection
}

// NewDonationService wires the orchestrator. db may be nil, which disables
// donation record keeping.
func NewDonationService(api StripeAPI, cfg FeatureConfig, db *mongo.Database) *DonationService {
	s := &DonationService{
		api:      api,
		resolver: NewProcessorResolver(api),
		cfg:      cfg,
	}
	if db != nil {
		s.records = db.Collection("donations")
	}
	return s
}

// ProcessDonation runs the state machine for one validated request.
func (s *DonationService) ProcessDonation(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	switch req.PaymentType {
	case models.PaymentTypeOneTime:
		return s.processOneTime(ctx, req)
	case models.PaymentTypeMonthly:
		return s.processMonthly(ctx, req)
	default:
		return nil, &UnsupportedCombinationError{Message: "Invalid payment type selected"}
	}
}

func (s *DonationService) processOneTime(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	switch req.PaymentMethod {
	case models.MethodCard, models.MethodGooglePay, models.MethodApplePay:
		// Wallets ride on the card rails; the wallet UI confirms with a
		// card-compatible payment-method token.
		return s.createDirectCharge(ctx, req, []string{"card"}, currencyEUR)

	case models.MethodExpressCheckout:
		// PayPal here is a soft capability probe: if the account has it
		// disabled the processor rejects the shape and we retry card-only.
		result, err := s.createDirectCharge(ctx, req, []string{"card", "paypal"}, currencyEUR)
		var reqErr *ProcessorRequestError
		if errors.As(err, &reqErr) {
			log.Printf("Express checkout paypal probe rejected, retrying card-only: %v", reqErr)
			return s.createDirectCharge(ctx, req, []string{"card"}, currencyEUR)
		}
		return result, err

	case models.MethodPayPal:
		if s.cfg.PayPalCheckoutRedirect {
			return s.createPaymentCheckout(ctx, req)
		}
		return s.createDirectCharge(ctx, req, []string{"card", "paypal"}, currencyEUR)

	case models.MethodTwint:
		if req.AmountMinor > twintMaxAmountMinor {
			return nil, &UnsupportedCombinationError{Message: "Twint maximum amount is 5,000 CHF"}
		}
		return s.createDirectCharge(ctx, req, []string{"twint"}, currencyCHF)

	default:
		return nil, &UnsupportedCombinationError{Message: "Invalid payment method selected"}
	}
}

func (s *DonationService) processMonthly(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	switch req.PaymentMethod {
	case models.MethodCard:
		return s.createSubscription(ctx, req)
	case models.MethodPayPal:
		return s.createSubscriptionCheckout(ctx, req)
	case models.MethodTwint:
		return nil, &UnsupportedCombinationError{Message: "Twint does not support recurring payments"}
	default:
		return nil, &UnsupportedCombinationError{Message: "Monthly subscriptions are only supported with card or PayPal payments"}
	}
}

// createDirectCharge issues one payment intent and hands back its client
// secret for client-side confirmation.
func (s *DonationService) createDirectCharge(ctx context.Context, req *models.DonationRequest, methodTypes []string, currency string) (*models.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice(methodTypes),
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Metadata = req.Metadata(s.cfg.Catalog.DisplayName(req.CharityCode))

	intent, err := s.api.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	s.recordDonation(ctx, req, currency, &models.DonationRecord{PaymentIntentID: intent.ID})
	return &models.ChargeResult{
		ClientSecret: intent.ClientSecret,
		PaymentType:  req.PaymentType,
	}, nil
}

// createSubscription drives the recurring card path: customer, product and
// a fresh price, then a subscription left incomplete until the client
// confirms the expanded invoice's payment intent.
func (s *DonationService) createSubscription(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	customer, err := s.resolver.ResolveCustomer(ctx, req.Email, req.Name)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	price, err := s.resolveMonthlyPrice(ctx, req)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customer.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(price.ID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
			PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		},
	}
	params.Metadata = req.Metadata(s.cfg.Catalog.DisplayName(req.CharityCode))
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := s.api.CreateSubscription(ctx, params)
	if err != nil {
		// The price created above stays behind as an orphan; accepted, the
		// next attempt creates its own.
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}
	if sub.LatestInvoice == nil || sub.LatestInvoice.PaymentIntent == nil {
		return nil, fmt.Errorf("subscription %s has no expanded payment intent", sub.ID)
	}

	s.recordDonation(ctx, req, currencyEUR, &models.DonationRecord{SubscriptionID: sub.ID})
	return &models.ChargeResult{
		ClientSecret:   sub.LatestInvoice.PaymentIntent.ClientSecret,
		SubscriptionID: sub.ID,
		PaymentType:    req.PaymentType,
	}, nil
}

// createSubscriptionCheckout drives the recurring PayPal path through a
// hosted checkout session. No customer object is needed; checkout creates
// its own from the email.
func (s *DonationService) createSubscriptionCheckout(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	price, err := s.resolveMonthlyPrice(ctx, req)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"paypal"}),
		CustomerEmail:      stripe.String(req.Email),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.Metadata = req.Metadata(s.cfg.Catalog.DisplayName(req.CharityCode))

	session, err := s.api.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	s.recordDonation(ctx, req, currencyEUR, &models.DonationRecord{CheckoutSessionID: session.ID})
	return &models.ChargeResult{
		CheckoutURL: session.URL,
		PaymentType: req.PaymentType,
	}, nil
}

// createPaymentCheckout is the redirect variant for one-time PayPal
// donations, selected by FeatureConfig.PayPalCheckoutRedirect.
func (s *DonationService) createPaymentCheckout(ctx context.Context, req *models.DonationRequest) (*models.ChargeResult, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"paypal"}),
		CustomerEmail:      stripe.String(req.Email),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currencyEUR),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Donation"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.Metadata = req.Metadata(s.cfg.Catalog.DisplayName(req.CharityCode))

	session, err := s.api.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, classifyProcessorError(err, req.PaymentMethod)
	}

	s.recordDonation(ctx, req, currencyEUR, &models.DonationRecord{CheckoutSessionID: session.ID})
	return &models.ChargeResult{
		CheckoutURL: session.URL,
		PaymentType: req.PaymentType,
	}, nil
}

func (s *DonationService) resolveMonthlyPrice(ctx context.Context, req *models.DonationRequest) (*stripe.Price, error) {
	product, err := s.resolver.ResolveProduct(ctx, s.cfg.ProductName)
	if err != nil {
		return nil, err
	}
	return s.resolver.CreatePrice(ctx, product.ID, req.AmountMinor, currencyEUR)
}

// recordDonation persists a reporting record. Best effort: the processor
// object already exists, so a storage failure is logged and the donation
// still succeeds.
func (s *DonationService) recordDonation(ctx context.Context, req *models.DonationRequest, currency string, ids *models.DonationRecord) {
	if s.records == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	record := &models.DonationRecord{
		ID:                uuid.NewString(),
		AmountMinor:       req.AmountMinor,
		Currency:          currency,
		PaymentType:       req.PaymentType,
		PaymentMethod:     req.PaymentMethod,
		DonorName:         req.Name,
		DonorEmail:        req.Email,
		CharityCode:       req.CharityCode,
		TipPercent:        req.TipPercent,
		Status:            "PENDING",
		PaymentIntentID:   ids.PaymentIntentID,
		SubscriptionID:    ids.SubscriptionID,
		CheckoutSessionID: ids.CheckoutSessionID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if _, err := s.records.InsertOne(ctx, record); err != nil {
		log.Printf("Failed to save donation record for %s: %v", maskEmail(req.Email), err)
		return
	}
	log.Printf("Donation recorded: id=%s, type=%s, method=%s, charity=%s",
		record.ID, record.PaymentType, record.PaymentMethod, record.CharityCode)
}

// ListDonations returns recorded donations, newest first, with optional
// status and creation date range filters.
func (s *DonationService) ListDonations(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.DonationRecord, error) {
	if s.records == nil {
		return nil, fmt.Errorf("donation records not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if statusFilter != nil && *statusFilter != "" {
		if !map[string]bool{"PENDING": true, "SUCCEEDED": true, "EXPIRED": true}[*statusFilter] {
			return nil, fmt.Errorf("invalid status filter, must be PENDING, SUCCEEDED, or EXPIRED")
		}
		query["status"] = *statusFilter
	}
	if startDate != nil && *startDate != "" && endDate != nil && *endDate != "" {
		start, err := time.Parse(time.RFC3339, *startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date format: %v", err)
		}
		end, err := time.Parse(time.RFC3339, *endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date format: %v", err)
		}
		query["created_at"] = bson.M{"$gte": start, "$lte": end}
	}

	cur, err := s.records.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		log.Printf("Failed to fetch donations: %v", err)
		return nil, fmt.Errorf("failed to fetch donations: %v", err)
	}
	defer cur.Close(ctx)

	var donations []models.DonationRecord
	if err := cur.All(ctx, &donations); err != nil {
		log.Printf("Failed to decode donations: %v", err)
		return nil, fmt.Errorf("failed to decode donations: %v", err)
	}
	return donations, nil
}

// EnsureIndexes creates the indexes the listing queries rely on.
func (s *DonationService) EnsureIndexes(ctx context.Context) error {
	if s.records == nil {
		return nil
	}
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"status": 1}},
		{Keys: bson.M{"created_at": -1}},
		{Keys: bson.M{"donor_email": 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %v", err)
	}
	return nil
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) <= 3 {
		return "****"
	}
	return parts[0][:3] + "****@" + parts[1]
}
