package services

import (
	"context"
	"log"

	stripe "github.com/stripe/stripe-go/v74"

	"github.com/mieuxdonner/donation-gobackend/internal/models"
)

// ProcessorResolver finds or creates the processor-side objects a
// subscription needs: customer, product, price. Customers and products are
// reused when present; prices are immutable per amount in the processor's
// model and are always created fresh. Processor errors propagate unmodified;
// the orchestrator owns translation.
type ProcessorResolver struct {
	api StripeAPI
}

func NewProcessorResolver(api StripeAPI) *ProcessorResolver {
	return &ProcessorResolver{api: api}
}

// ResolveCustomer looks the donor up by email and creates a customer if none
// exists yet. Concurrent first-time donors can still race to create
// duplicates; the processor does not serialize this and neither do we.
func (r *ProcessorResolver) ResolveCustomer(ctx context.Context, email, name string) (*stripe.Customer, error) {
	existing, err := r.api.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Metadata = map[string]string{"schema_version": models.SchemaVersion}

	created, err := r.api.CreateCustomer(ctx, params)
	if err != nil {
		return nil, err
	}
	log.Printf("Created customer %s for %s", created.ID, maskEmail(email))
	return created, nil
}

// ResolveProduct returns the recurring-donation product, creating it on
// first use.
func (r *ProcessorResolver) ResolveProduct(ctx context.Context, name string) (*stripe.Product, error) {
	existing, err := r.api.FindProductByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := r.api.CreateProduct(ctx, &stripe.ProductParams{
		Name:        stripe.String(name),
		Description: stripe.String("Monthly recurring donation"),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Created product %s (%s)", created.ID, name)
	return created, nil
}

// CreatePrice attaches a fresh monthly price for this exact amount to the
// product. Prices are never reused.
func (r *ProcessorResolver) CreatePrice(ctx context.Context, productID string, amountMinor int64, currency string) (*stripe.Price, error) {
	return r.api.CreatePrice(ctx, &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amountMinor),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	})
}
