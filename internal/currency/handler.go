package currency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/JC-Coder/w-wire-api-test/internal/auth"
	"github.com/JC-Coder/w-wire-api-test/internal/transaction"
)

const maxJSONBodyBytes = 1 << 20

// TransactionRecorder persists a conversion for the caller's history.
type TransactionRecorder interface {
	Create(ctx context.Context, t transaction.Transaction) (transaction.Transaction, error)
}

type Handler struct {
	service  *Service
	recorder TransactionRecorder
}

func NewHandler(service *Service, recorder TransactionRecorder) *Handler {
	return &Handler{service: service, recorder: recorder}
}

func (h *Handler) GetExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.CurrentRates(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "unable to retrieve exchange rates, try again later")
		return
	}

	writeJSON(w, http.StatusOK, rates)
}

type convertRequest struct {
	Amount       float64 `json:"amount"`
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body convertRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if body.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	if len(body.FromCurrency) != 3 || len(body.ToCurrency) != 3 {
		writeError(w, http.StatusBadRequest, "currency codes must be 3 letters")
		return
	}

	conversion, err := h.service.Convert(r.Context(), body.Amount, body.FromCurrency, body.ToCurrency)
	if err != nil {
		if errors.Is(err, ErrUnknownCurrency) {
			writeError(w, http.StatusBadRequest, "unknown currency code")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "unable to convert currency, try again later")
		return
	}

	if _, err := h.recorder.Create(r.Context(), transaction.Transaction{
		UserID:       claims.Subject,
		Amount:       conversion.Amount,
		FromCurrency: conversion.FromCurrency,
		ToCurrency:   conversion.ToCurrency,
		Rate:         conversion.Rate,
		Result:       conversion.Result,
	}); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to record conversion")
		return
	}

	writeJSON(w, http.StatusOK, conversion)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
