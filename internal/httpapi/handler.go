// Package httpapi implements the HTTP handlers for the settlement engine.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	POST   /contracts                      → create draft contract
//	POST   /contracts/allocate             → split a job budget across workers
//	GET    /contracts/{id}                 → fetch contract
//	DELETE /contracts/{id}                 → soft-delete terminal contract
//	POST   /contracts/{id}/accept          → draft → pending, issues pairing code
//	POST   /contracts/{id}/pair            → confirm pairing code
//	POST   /contracts/{id}/start           → accepted → in_progress (no-escrow path)
//	POST   /contracts/{id}/complete        → worker marks work done
//	POST   /contracts/{id}/dispute         → open dispute before auto-release
//	POST   /contracts/{id}/cancel          → cancel before work starts
//	POST   /contracts/{id}/extend          → request end-date/price extension
//	POST   /contracts/{id}/extension       → accept or reject a pending extension
//	POST   /contracts/{id}/order           → open a gateway order for escrow
//	GET    /contracts/{id}/payments        → list contract payments
//	GET    /payments/{id}                  → fetch payment
//	POST   /payments/{id}/release          → manual escrow release by requester
//	POST   /payments/{id}/refund           → refund pending/held payment
//	POST   /payments/confirm               → confirm capture by gateway order id
//	POST   /referrals                      → register a referral edge
//	POST   /webhooks/gateway               → signed provider callback
//	GET    /health                         → liveness
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"taskpay/escrow-service/internal/contract"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/gateway"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/payment"
	"taskpay/escrow-service/internal/referral"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	contracts     *contract.Service
	payments      *payment.Service
	referrals     *referral.Service
	webhookSecret []byte
}

// NewHandler returns a configured Handler.
func NewHandler(contracts *contract.Service, payments *payment.Service,
	referrals *referral.Service, webhookSecret []byte) *Handler {
	return &Handler{
		contracts:     contracts,
		payments:      payments,
		referrals:     referrals,
		webhookSecret: webhookSecret,
	}
}

// RegisterRoutes mounts all settlement-engine routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/contracts", h.handleContracts)
	mux.HandleFunc("/contracts/", h.handleContractAction)
	mux.HandleFunc("/payments/", h.handlePaymentAction)
	mux.HandleFunc("/payments/confirm", h.confirmCapture)
	mux.HandleFunc("/referrals", h.registerReferral)
	mux.HandleFunc("/webhooks/gateway", h.gatewayWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonOK(w, map[string]string{"status": "ok"})
	})
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleContracts handles POST /contracts
func (h *Handler) handleContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.createContract(w, r)
}

// handleContractAction handles /contracts/{id} and /contracts/{id}/{action}
func (h *Handler) handleContractAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 2 {
		switch parts[1] {
		case "allocate":
			if r.Method != http.MethodPost {
				jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.allocateWorkers(w, r)
		default:
			switch r.Method {
			case http.MethodGet:
				h.getContract(w, r, parts[1])
			case http.MethodDelete:
				h.deleteContract(w, r, parts[1])
			default:
				jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		}
		return
	}

	if len(parts) != 3 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	contractID := parts[1]
	action := parts[2]

	if action == "payments" {
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.listPayments(w, r, contractID)
		return
	}

	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "accept":
		h.acceptProposal(w, r, contractID)
	case "pair":
		h.confirmPairing(w, r, contractID)
	case "start":
		h.startWork(w, r, contractID)
	case "complete":
		h.markCompleted(w, r, contractID)
	case "dispute":
		h.openDispute(w, r, contractID)
	case "cancel":
		h.cancelContract(w, r, contractID)
	case "extend":
		h.requestExtension(w, r, contractID)
	case "extension":
		h.respondToExtension(w, r, contractID)
	case "order":
		h.openOrder(w, r, contractID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handlePaymentAction handles GET /payments/{id} and POST /payments/{id}/release|refund
func (h *Handler) handlePaymentAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getPayment(w, r, parts[1])
		return
	}

	if len(parts) != 3 || r.Method != http.MethodPost {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	switch parts[2] {
	case "release":
		h.releaseEscrow(w, r, parts[1])
	case "refund":
		h.refundPayment(w, r, parts[1])
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", parts[2]), http.StatusNotFound)
	}
}

// ─── Contract handlers ────────────────────────────────────────────────────────

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		JobID     string      `json:"jobId"`
		WorkerID  string      `json:"workerId"`
		BasePrice money.Money `json:"basePrice"`
		StartDate time.Time   `json:"startDate"`
		EndDate   time.Time   `json:"endDate"`
		Escrow    bool        `json:"escrow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, err := h.contracts.Create(r.Context(), contract.CreateInput{
		JobID:       body.JobID,
		RequesterID: userID,
		WorkerID:    body.WorkerID,
		BasePrice:   body.BasePrice,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Escrow:      body.Escrow,
	})
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) allocateWorkers(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		JobID       string                `json:"jobId"`
		JobPrice    money.Money           `json:"jobPrice"`
		StartDate   time.Time             `json:"startDate"`
		EndDate     time.Time             `json:"endDate"`
		Escrow      bool                  `json:"escrow"`
		Allocations []contract.Allocation `json:"allocations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	contracts, err := h.contracts.AllocateWorkers(r.Context(), contract.JobAllocation{
		JobID:       body.JobID,
		RequesterID: userID,
		JobPrice:    body.JobPrice,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Escrow:      body.Escrow,
		Allocations: body.Allocations,
	})
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, contracts)
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.contracts.Get(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) deleteContract(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	if err := h.contracts.SoftDelete(r.Context(), id, userID); err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

func (h *Handler) acceptProposal(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	c, err := h.contracts.AcceptProposal(r.Context(), id, userID, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) confirmPairing(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, err := h.contracts.ConfirmPairing(r.Context(), id, userID, body.Code, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) startWork(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.contracts.StartWork(r.Context(), id, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) markCompleted(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	c, err := h.contracts.MarkCompleted(r.Context(), id, userID, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	c, err := h.contracts.OpenDispute(r.Context(), id, userID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) cancelContract(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	c, err := h.contracts.Cancel(r.Context(), id, userID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) requestExtension(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		Days     int          `json:"days"`
		NewPrice *money.Money `json:"newPrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, err := h.contracts.RequestExtension(r.Context(), id, userID, body.Days, body.NewPrice, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, c)
}

// respondToExtension resolves a staged extension. When the accepted
// extension raises the price, a new gateway order is opened for the
// delta and the approval URL returned alongside the contract.
func (h *Handler) respondToExtension(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, delta, err := h.contracts.RespondToExtension(r.Context(), id, userID, body.Accept, time.Now().UTC())
	if err != nil {
		domainError(w, err)
		return
	}

	resp := map[string]any{"contract": c}
	if delta != nil && c.Escrow.Enabled {
		p, approvalURL, err := h.payments.OpenOrder(r.Context(), id, delta)
		if err != nil {
			domainError(w, err)
			return
		}
		resp["deltaPayment"] = p
		resp["approvalUrl"] = approvalURL
	}
	jsonOK(w, resp)
}

// ─── Payment handlers ─────────────────────────────────────────────────────────

func (h *Handler) openOrder(w http.ResponseWriter, r *http.Request, contractID string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	p, approvalURL, err := h.payments.OpenOrder(r.Context(), contractID, nil)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, map[string]any{"payment": p, "approvalUrl": approvalURL})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request, contractID string) {
	payments, err := h.payments.ListByContract(r.Context(), contractID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, payments)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.payments.Get(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, p)
}

// confirmCapture handles POST /payments/confirm — the client-driven
// confirmation path after payer approval. Idempotent with the webhook.
func (h *Handler) confirmCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrderID == "" {
		jsonError(w, "body must contain orderId", http.StatusBadRequest)
		return
	}

	p, err := h.payments.ConfirmCapture(r.Context(), body.OrderID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) releaseEscrow(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	p, err := h.payments.ReleaseEscrow(r.Context(), id, userID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	p, err := h.payments.Refund(r.Context(), id, userID, body.Reason)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, p)
}

// ─── Referral handler ─────────────────────────────────────────────────────────

func (h *Handler) registerReferral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		ReferredUserID string `json:"referredUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReferredUserID == "" {
		jsonError(w, "body must contain referredUserId", http.StatusBadRequest)
		return
	}

	ref, err := h.referrals.Register(r.Context(), userID, body.ReferredUserID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonOK(w, ref)
}

// ─── Webhook receiver ─────────────────────────────────────────────────────────

// gatewayWebhook handles signed provider callbacks. Unverified payloads
// are rejected before any of their content is read.
func (h *Handler) gatewayWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		jsonError(w, "cannot read body", http.StatusBadRequest)
		return
	}

	ev, err := gateway.VerifyWebhook(h.webhookSecret, body, r.Header.Get("x-webhook-signature"))
	if err != nil {
		log.Printf("[api] webhook rejected: %v", err)
		jsonError(w, "invalid webhook signature", http.StatusUnauthorized)
		return
	}

	switch ev.EventType {
	case gateway.WebhookOrderApproved, gateway.WebhookOrderCaptured:
		if _, err := h.payments.ConfirmCapture(r.Context(), ev.OrderID); err != nil {
			domainError(w, err)
			return
		}
	default:
		log.Printf("[api] webhook event %q ignored", ev.EventType)
	}

	jsonOK(w, map[string]string{"status": "received"})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// domainError maps a service error to its HTTP status, preserving the
// machine-readable code for the client.
func domainError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  string(apperr.GetCode(err)),
	})
}
