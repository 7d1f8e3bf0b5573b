package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/mieuxdonner/donation-gobackend/internal/db"
	"github.com/mieuxdonner/donation-gobackend/internal/handlers"
	"github.com/mieuxdonner/donation-gobackend/internal/services"
)

const nonceTTL = 12 * time.Hour

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Fatal("STRIPE_SECRET_KEY environment variable not set")
	}
	nonceSecret := os.Getenv("DONATION_NONCE_SECRET")
	if nonceSecret == "" {
		log.Fatal("DONATION_NONCE_SECRET environment variable not set")
	}

	// Connect to MongoDB
	uri := os.Getenv("MONGOURI")
	if uri == "" {
		log.Fatal("MONGOURI environment variable not set")
	}
	database, disconnect, err := db.Connect(uri, "donationdb")
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	cfg := services.DefaultFeatureConfig()
	cfg.PayPalCheckoutRedirect = os.Getenv("PAYPAL_CHECKOUT_REDIRECT") == "true"
	cfg.SuccessURL = baseURL + "/merci?session_id={CHECKOUT_SESSION_ID}"
	cfg.CancelURL = baseURL + "/donate?cancelled=1"

	// Initialize services and handlers
	stripeClient := services.NewStripeClient(stripeKey)
	donationService := services.NewDonationService(stripeClient, cfg, database)
	validator := services.NewValidator(cfg)
	nonceService := services.NewNonceService(nonceSecret, nonceTTL)
	donationHandler := handlers.NewDonationHandler(validator, donationService, nonceService)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := donationService.EnsureIndexes(ctx); err != nil {
		log.Printf("Warning: failed to create donation indexes: %v", err)
	}
	cancel()

	// Set up router
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/donation", donationHandler.CreateDonation).Methods("POST")
	router.HandleFunc("/api/donation/nonce", donationHandler.IssueNonce).Methods("GET")
	router.HandleFunc("/api/donations", donationHandler.ListDonations).Methods("GET")

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(server.ListenAndServe())
}
