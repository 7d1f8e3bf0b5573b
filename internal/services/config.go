package services

import "github.com/mieuxdonner/donation-gobackend/internal/models"

// FeatureConfig parameterizes one orchestrator across deployments instead of
// forking it: which charities are offered, which payment methods are enabled,
// whether tips and addresses are collected, and how one-time PayPal donations
// are routed.
type FeatureConfig struct {
	Catalog        *CharityCatalog
	EnabledMethods []string
	TipEnabled     bool
	AddressEnabled bool

	// PayPalCheckoutRedirect routes one-time PayPal donations through a
	// hosted checkout session instead of a shared payment intent. Which one
	// is correct depends on the processor account configuration, so it is a
	// deployment switch rather than a hardcoded choice.
	PayPalCheckoutRedirect bool

	// ProductName identifies the recurring-donation product on the
	// processor side.
	ProductName string

	SuccessURL string
	CancelURL  string
}

// DefaultFeatureConfig enables every method with the standard catalog.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		Catalog: DefaultCharityCatalog(),
		EnabledMethods: []string{
			models.MethodCard,
			models.MethodPayPal,
			models.MethodGooglePay,
			models.MethodApplePay,
			models.MethodExpressCheckout,
			models.MethodTwint,
		},
		TipEnabled:     true,
		AddressEnabled: true,
		ProductName:    "Monthly Donation",
	}
}

func (c FeatureConfig) methodEnabled(method string) bool {
	for _, m := range c.EnabledMethods {
		if m == method {
			return true
		}
	}
	return false
}
