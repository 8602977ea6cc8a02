// webhook_handler.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// handleWebhook is the single public endpoint the platform talks to.
// GET is the subscription handshake; POST is event delivery. The signature
// middleware has already authenticated any POST that reaches here.
func handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		handleVerification(w, r)
	case http.MethodPost:
		handleDelivery(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerification answers the platform's subscription handshake: echo the
// challenge only when the mode is "subscribe" and the token matches.
func handleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "" && token != "" && challenge != "" {
		if mode == "subscribe" && token == config.VerifyToken {
			LogInfo("✅ Webhook verification successful")
			w.Write([]byte(challenge))
			return
		}
		LogWarn("Webhook verification failed from %s", r.RemoteAddr)
		http.Error(w, "Invalid verification token", http.StatusForbidden)
		return
	}

	LogWarn("Incomplete webhook verification parameters from %s", r.RemoteAddr)
	http.Error(w, "Bad request", http.StatusBadRequest)
}

// handleDelivery acknowledges a verified delivery and hands processing to a
// background goroutine. The platform retries anything that is not a quick
// 200, so every internal failure past the object-type check still answers
// 200; only authenticity (401, middleware) and an unknown object type (404)
// are rejected.
func handleDelivery(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()[:8]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		LogError("[%s] Error reading delivery body: %v", requestID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	var env WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		LogError("[%s] Error parsing delivery JSON: %v", requestID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if !isValidObject(env.Object) {
		LogWarn("[%s] Unsupported webhook object %q", requestID, env.Object)
		http.Error(w, "Unknown object type", http.StatusNotFound)
		return
	}

	events := Dispatch(env)
	LogInfo("[%s] 📨 Delivery: object=%s entries=%d events=%d bytes=%d",
		requestID, env.Object, len(env.Entry), len(events), len(body))

	if recentDeliveries != nil {
		recentDeliveries.Add(RecentDelivery{
			At:        timeNow(),
			RequestID: requestID,
			Object:    env.Object,
			Entries:   len(env.Entry),
			Events:    len(events),
			Bytes:     len(body),
		})
	}

	// Acknowledge before processing; the platform only needs the 200.
	w.WriteHeader(http.StatusOK)

	if proc != nil && len(events) > 0 {
		go proc.ProcessDelivery(context.Background(), events, requestID)
	}
}

// handleHealth is a trivial liveness/readiness probe.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if store != nil {
		if err := store.Ping(r.Context()); err != nil {
			LogError("Health check failed: %v", err)
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("ok"))
}

// handleRecent exposes the recent-delivery ring for operators investigating
// routing problems.
func handleRecent(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var deliveries []RecentDelivery
	if recentDeliveries != nil {
		deliveries = recentDeliveries.Snapshot()
	}
	if err := json.NewEncoder(w).Encode(deliveries); err != nil {
		LogError("Error encoding recent deliveries: %v", err)
	}
}
