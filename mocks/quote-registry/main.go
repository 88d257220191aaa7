// Mock foreign registry for local development. It answers the cross-registry
// quote endpoints with deterministic data so a poolpay instance can be wired
// against it via POOLPAY_FOREIGN_REGISTRIES without running a second real
// deployment.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8081"
	defaultLatencyMs = "50"
)

// ServiceQuote mirrors the cross-registry quote contract. Kept local on
// purpose so the mock stays a standalone module.
type ServiceQuote struct {
	Price    uint64 `json:"price"`
	Provider string `json:"provider"`
	Exists   bool   `json:"exists"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

// Fixed IDs let callers exercise specific settlement paths:
//   - 404: quoted as nonexistent
//   - 500: registry failure
//   - 503: slow answer (2s) for timeout testing
var specialServices = map[uint64]func(w http.ResponseWriter){
	404: func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, ServiceQuote{Exists: false})
	},
	500: func(w http.ResponseWriter) {
		sendError(w, "simulated registry failure", http.StatusInternalServerError)
	},
	503: func(w http.ResponseWriter) {
		time.Sleep(2 * time.Second)
		writeJSON(w, http.StatusOK, ServiceQuote{Exists: false})
	},
}

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/registry/services/", handleQuote)
	http.HandleFunc("/registry/pools/", handleQuote)

	log.Printf("mock quote registry listening on port %s", port)
	log.Printf("simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "quote-registry",
	})
}

func handleQuote(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		sendError(w, "invalid service id: "+raw, http.StatusBadRequest)
		return
	}

	if special, ok := specialServices[id]; ok {
		special(w)
		return
	}

	quote := generateQuote(id)
	writeJSON(w, http.StatusOK, quote)
	log.Printf("quoted service %d: price=%d provider=%s", id, quote.Price, quote.Provider)
}

// generateQuote derives a stable price and provider account from the service
// id, so repeated queries from the same poolpay instance always agree.
func generateQuote(id uint64) ServiceQuote {
	seed := sha256.Sum256([]byte(fmt.Sprintf("quote-registry:%d", id)))
	price := 100 + uint64(seed[0])%900*10
	return ServiceQuote{
		Price:    price,
		Provider: "0x" + hex.EncodeToString(seed[:]),
		Exists:   true,
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("error response: %d - %s", code, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
