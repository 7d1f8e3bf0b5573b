package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v74"

	"github.com/mieuxdonner/donation-gobackend/internal/models"
)

// stubStripe records every processor invocation and serves canned objects.
type stubStripe struct {
	calls []string

	customersByEmail map[string]*stripe.Customer
	productsByName   map[string]*stripe.Product

	intentErr       error
	intentErrOnce   bool
	customerListErr error
	subscriptionErr error
	sessionErr      error

	lastIntentParams  []*stripe.PaymentIntentParams
	lastPriceParams   []*stripe.PriceParams
	lastSubParams     *stripe.SubscriptionParams
	lastSessionParams *stripe.CheckoutSessionParams
}

func newStubStripe() *stubStripe {
	return &stubStripe{
		customersByEmail: map[string]*stripe.Customer{},
		productsByName:   map[string]*stripe.Product{},
	}
}

func (s *stubStripe) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.calls = append(s.calls, "payment_intent.create")
	s.lastIntentParams = append(s.lastIntentParams, params)
	if s.intentErr != nil {
		err := s.intentErr
		if s.intentErrOnce {
			s.intentErr = nil
		}
		return nil, err
	}
	return &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (s *stubStripe) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	s.calls = append(s.calls, "customer.list")
	if s.customerListErr != nil {
		return nil, s.customerListErr
	}
	return s.customersByEmail[email], nil
}

func (s *stubStripe) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	s.calls = append(s.calls, "customer.create")
	c := &stripe.Customer{ID: "cus_1", Email: stripe.StringValue(params.Email)}
	s.customersByEmail[c.Email] = c
	return c, nil
}

func (s *stubStripe) FindProductByName(ctx context.Context, name string) (*stripe.Product, error) {
	s.calls = append(s.calls, "product.search")
	return s.productsByName[name], nil
}

func (s *stubStripe) CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	s.calls = append(s.calls, "product.create")
	p := &stripe.Product{ID: "prod_1", Name: stripe.StringValue(params.Name)}
	s.productsByName[p.Name] = p
	return p, nil
}

func (s *stubStripe) CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error) {
	s.calls = append(s.calls, "price.create")
	s.lastPriceParams = append(s.lastPriceParams, params)
	return &stripe.Price{ID: "price_1"}, nil
}

func (s *stubStripe) CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.calls = append(s.calls, "subscription.create")
	s.lastSubParams = params
	if s.subscriptionErr != nil {
		return nil, s.subscriptionErr
	}
	return &stripe.Subscription{
		ID: "sub_1",
		LatestInvoice: &stripe.Invoice{
			PaymentIntent: &stripe.PaymentIntent{ClientSecret: "sub_pi_secret"},
		},
	}, nil
}

func (s *stubStripe) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.calls = append(s.calls, "checkout_session.create")
	s.lastSessionParams = params
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (s *stubStripe) count(call string) int {
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func newTestService(stub *stubStripe) *DonationService {
	cfg := DefaultFeatureConfig()
	cfg.SuccessURL = "https://donate.example/merci"
	cfg.CancelURL = "https://donate.example/donate?cancelled=1"
	return NewDonationService(stub, cfg, nil)
}

func testRequest(paymentType, method string) *models.DonationRequest {
	return &models.DonationRequest{
		AmountMinor:   10_000,
		PaymentType:   paymentType,
		PaymentMethod: method,
		Email:         "a@b.com",
		Name:          "Jo Doe",
		CharityCode:   "against_malaria",
		TipPercent:    10,
	}
}

func methodTypes(params *stripe.PaymentIntentParams) []string {
	var out []string
	for _, m := range params.PaymentMethodTypes {
		out = append(out, stripe.StringValue(m))
	}
	return out
}

func assertExactlyOneTarget(t *testing.T, result *models.ChargeResult) {
	t.Helper()
	if result.ClientSecret != "" {
		assert.Empty(t, result.CheckoutURL)
	} else {
		assert.NotEmpty(t, result.CheckoutURL)
	}
}

func TestOneTimeCardIssuesSinglePaymentIntent(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, models.MethodCard))
	require.NoError(t, err)

	require.Equal(t, []string{"payment_intent.create"}, stub.calls)
	params := stub.lastIntentParams[0]
	assert.Equal(t, int64(10_000), stripe.Int64Value(params.Amount))
	assert.Equal(t, "eur", stripe.StringValue(params.Currency))
	assert.Equal(t, []string{"card"}, methodTypes(params))
	assert.Equal(t, "a@b.com", stripe.StringValue(params.ReceiptEmail))
	assert.Equal(t, "against_malaria", params.Metadata["charity_code"])
	assert.Equal(t, "Jo Doe", params.Metadata["donor_name"])
	assert.Equal(t, "Against Malaria Foundation", params.Metadata["selected_charity"])
	assert.Equal(t, "10", params.Metadata["tip_percentage"])

	assert.Equal(t, "pi_1_secret", result.ClientSecret)
	assert.Equal(t, models.PaymentTypeOneTime, result.PaymentType)
	assertExactlyOneTarget(t, result)
}

func TestOneTimeWalletsRideCardRails(t *testing.T) {
	for _, method := range []string{models.MethodGooglePay, models.MethodApplePay} {
		stub := newStubStripe()
		svc := newTestService(stub)

		result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, method))
		require.NoError(t, err)
		assert.Equal(t, []string{"card"}, methodTypes(stub.lastIntentParams[0]))
		assert.NotEmpty(t, result.ClientSecret)
	}
}

func TestOneTimeExpressCheckoutProbesPayPal(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, models.MethodExpressCheckout))
	require.NoError(t, err)
	assert.Equal(t, []string{"card", "paypal"}, methodTypes(stub.lastIntentParams[0]))
	assert.NotEmpty(t, result.ClientSecret)
}

func TestOneTimeExpressCheckoutFallsBackToCardOnly(t *testing.T) {
	stub := newStubStripe()
	stub.intentErr = &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "paypal is not enabled"}
	stub.intentErrOnce = true
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, models.MethodExpressCheckout))
	require.NoError(t, err)
	require.Len(t, stub.lastIntentParams, 2)
	assert.Equal(t, []string{"card", "paypal"}, methodTypes(stub.lastIntentParams[0]))
	assert.Equal(t, []string{"card"}, methodTypes(stub.lastIntentParams[1]))
	assert.NotEmpty(t, result.ClientSecret)
}

func TestOneTimePayPalDefaultsToSharedPaymentIntent(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, models.MethodPayPal))
	require.NoError(t, err)
	assert.Equal(t, []string{"card", "paypal"}, methodTypes(stub.lastIntentParams[0]))
	assert.NotEmpty(t, result.ClientSecret)
	assert.Empty(t, result.CheckoutURL)
}

func TestOneTimePayPalCheckoutRedirectVariant(t *testing.T) {
	stub := newStubStripe()
	cfg := DefaultFeatureConfig()
	cfg.PayPalCheckoutRedirect = true
	cfg.SuccessURL = "https://donate.example/merci"
	cfg.CancelURL = "https://donate.example/donate?cancelled=1"
	svc := NewDonationService(stub, cfg, nil)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeOneTime, models.MethodPayPal))
	require.NoError(t, err)
	require.Equal(t, []string{"checkout_session.create"}, stub.calls)
	assert.Equal(t, "payment", stripe.StringValue(stub.lastSessionParams.Mode))
	assert.Equal(t, "https://checkout.example/cs_1", result.CheckoutURL)
	assert.Empty(t, result.ClientSecret)
}

func TestOneTimeTwintForcesCHF(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	req := testRequest(models.PaymentTypeOneTime, models.MethodTwint)
	req.AmountMinor = 500_000 // exactly at the cap
	result, err := svc.ProcessDonation(context.Background(), req)
	require.NoError(t, err)

	params := stub.lastIntentParams[0]
	assert.Equal(t, "chf", stripe.StringValue(params.Currency))
	assert.Equal(t, []string{"twint"}, methodTypes(params))
	assert.NotEmpty(t, result.ClientSecret)
}

func TestOneTimeTwintOverCapRejectedBeforeProcessorCall(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	req := testRequest(models.PaymentTypeOneTime, models.MethodTwint)
	req.AmountMinor = 500_001
	_, err := svc.ProcessDonation(context.Background(), req)

	var comboErr *UnsupportedCombinationError
	require.ErrorAs(t, err, &comboErr)
	assert.Equal(t, "Twint maximum amount is 5,000 CHF", comboErr.Message)
	assert.Empty(t, stub.calls)
}

func TestMonthlyTwintRejectedBeforeProcessorCall(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	_, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodTwint))

	var comboErr *UnsupportedCombinationError
	require.ErrorAs(t, err, &comboErr)
	assert.Equal(t, "Twint does not support recurring payments", comboErr.Message)
	assert.Empty(t, stub.calls)
}

func TestMonthlyWalletsRejected(t *testing.T) {
	for _, method := range []string{models.MethodGooglePay, models.MethodApplePay, models.MethodExpressCheckout} {
		stub := newStubStripe()
		svc := newTestService(stub)

		_, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, method))

		var comboErr *UnsupportedCombinationError
		require.ErrorAs(t, err, &comboErr, "method %s", method)
		assert.Contains(t, comboErr.Message, "card or PayPal")
		assert.Empty(t, stub.calls)
	}
}

func TestMonthlyCardCreatesSubscription(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodCard))
	require.NoError(t, err)

	assert.Equal(t, 1, stub.count("customer.create"))
	assert.Equal(t, 1, stub.count("product.create"))
	assert.Equal(t, 1, stub.count("price.create"))
	assert.Equal(t, 1, stub.count("subscription.create"))

	sub := stub.lastSubParams
	assert.Equal(t, "default_incomplete", stripe.StringValue(sub.PaymentBehavior))
	assert.Equal(t, "on_subscription", stripe.StringValue(sub.PaymentSettings.SaveDefaultPaymentMethod))
	require.Len(t, sub.Expand, 1)
	assert.Equal(t, "latest_invoice.payment_intent", stripe.StringValue(sub.Expand[0]))

	price := stub.lastPriceParams[0]
	assert.Equal(t, int64(10_000), stripe.Int64Value(price.UnitAmount))
	assert.Equal(t, "eur", stripe.StringValue(price.Currency))
	assert.Equal(t, "month", stripe.StringValue(price.Recurring.Interval))

	assert.Equal(t, "sub_pi_secret", result.ClientSecret)
	assert.Equal(t, "sub_1", result.SubscriptionID)
	assert.Equal(t, models.PaymentTypeMonthly, result.PaymentType)
	assertExactlyOneTarget(t, result)
}

func TestMonthlyCardReusesCustomerButNotPrice(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	_, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodCard))
	require.NoError(t, err)
	_, err = svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodCard))
	require.NoError(t, err)

	assert.Equal(t, 1, stub.count("customer.create"), "second request must reuse the customer")
	assert.Equal(t, 1, stub.count("product.create"), "second request must reuse the product")
	assert.Equal(t, 2, stub.count("price.create"), "prices are never reused")
}

func TestMonthlyPayPalUsesSubscriptionCheckout(t *testing.T) {
	stub := newStubStripe()
	svc := newTestService(stub)

	result, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodPayPal))
	require.NoError(t, err)

	assert.Equal(t, 0, stub.count("customer.list"), "checkout path needs no customer object")
	assert.Equal(t, 0, stub.count("customer.create"))
	assert.Equal(t, 1, stub.count("price.create"))
	require.NotNil(t, stub.lastSessionParams)
	assert.Equal(t, "subscription", stripe.StringValue(stub.lastSessionParams.Mode))
	assert.Equal(t, "a@b.com", stripe.StringValue(stub.lastSessionParams.CustomerEmail))
	assert.Equal(t, "https://donate.example/merci", stripe.StringValue(stub.lastSessionParams.SuccessURL))

	assert.Equal(t, "https://checkout.example/cs_1", result.CheckoutURL)
	assert.Empty(t, result.ClientSecret)
	assertExactlyOneTarget(t, result)
}

func TestSubscriptionFailureLeavesNoRollback(t *testing.T) {
	stub := newStubStripe()
	stub.subscriptionErr = &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "internal error", HTTPStatusCode: 500}
	svc := newTestService(stub)

	_, err := svc.ProcessDonation(context.Background(), testRequest(models.PaymentTypeMonthly, models.MethodCard))

	var unavailable *ProcessorUnavailableError
	require.ErrorAs(t, err, &unavailable)
	// Customer, product and price were created and stay behind.
	assert.Equal(t, 1, stub.count("customer.create"))
	assert.Equal(t, 1, stub.count("price.create"))
}

func TestProcessorErrorClassification(t *testing.T) {
	invalid := classifyProcessorError(&stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "bad shape"}, "twint")
	var reqErr *ProcessorRequestError
	require.ErrorAs(t, invalid, &reqErr)
	assert.Equal(t, "twint", reqErr.Method)

	apiDown := classifyProcessorError(&stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 503}, "card")
	var unavailable *ProcessorUnavailableError
	require.ErrorAs(t, apiDown, &unavailable)

	other := classifyProcessorError(errors.New("boom"), "card")
	assert.NotErrorAs(t, other, &reqErr)
	assert.NotErrorAs(t, other, &unavailable)
}
