package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeAPI is the narrow processor surface the orchestrator depends on.
// Find methods return (nil, nil) when no object matches.
type StripeAPI interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	FindProductByName(ctx context.Context, name string) (*stripe.Product, error)
	CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error)
	CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error)
	CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeClient implements StripeAPI against the live Stripe API. Every
// create call carries a fresh idempotency key so SDK-level retries cannot
// duplicate processor objects.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.PaymentIntents.New(params)
}

// FindCustomerByEmail returns the first customer registered under email.
// Stripe does not guarantee email uniqueness; first match is the policy.
func (c *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Email:      stripe.String(email),
	}
	params.Limit = stripe.Int64(1)

	iter := c.api.Customers.List(params)
	for iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

func (c *StripeClient) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.Customers.New(params)
}

// FindProductByName resolves a product through the search API, keyed on the
// exact name. A single authoritative query, not a scan of the first list
// page.
func (c *StripeClient) FindProductByName(ctx context.Context, name string) (*stripe.Product, error) {
	params := &stripe.ProductSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("active:'true' AND name:'%s'", name),
		},
	}
	params.Limit = stripe.Int64(1)

	iter := c.api.Products.Search(params)
	for iter.Next() {
		return iter.Product(), nil
	}
	return nil, iter.Err()
}

func (c *StripeClient) CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.Products.New(params)
}

func (c *StripeClient) CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.Prices.New(params)
}

func (c *StripeClient) CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.Subscriptions.New(params)
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	return c.api.CheckoutSessions.New(params)
}
