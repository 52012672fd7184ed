// mock-provider is a stand-in for the external transfer rail: it accepts
// transfers, mints references, and can be told to fail a share of requests
// (FAIL_RATE_PCT) or add latency (LATENCY_MS) to exercise retry paths.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/logging"
)

type transferRequest struct {
	BeneficiaryRef string `json:"beneficiary_ref"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	failRate := envInt("FAIL_RATE_PCT", 0)
	latency := time.Duration(envInt("LATENCY_MS", 0)) * time.Millisecond

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	mux.HandleFunc("POST /transfers", func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}

		if latency > 0 {
			time.Sleep(latency)
		}

		if failRate > 0 && rand.IntN(100) < failRate {
			slog.Warn("simulated transfer failure", "beneficiary", req.BeneficiaryRef)
			http.Error(w, "transfer declined", http.StatusUnprocessableEntity)
			return
		}

		ref := "mock-" + uuid.NewString()
		slog.Info("transfer accepted",
			"beneficiary", req.BeneficiaryRef,
			"amount", req.Amount,
			"currency", req.Currency,
			"transfer_id", ref,
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(map[string]string{"transfer_id": ref}); err != nil {
			slog.Error("failed to write transfer response", "error", err)
		}
	})

	slog.Info("mock provider started", "addr", ":8081", "fail_rate_pct", failRate)
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
