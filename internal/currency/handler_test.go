package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/JC-Coder/w-wire-api-test/internal/auth"
	"github.com/JC-Coder/w-wire-api-test/internal/cache"
	"github.com/JC-Coder/w-wire-api-test/internal/transaction"
)

type fakeRecorder struct {
	created []transaction.Transaction
	err     error
}

func (f *fakeRecorder) Create(ctx context.Context, t transaction.Transaction) (transaction.Transaction, error) {
	if f.err != nil {
		return transaction.Transaction{}, f.err
	}
	f.created = append(f.created, t)
	return t, nil
}

func postConvert(t *testing.T, handler *Handler, body string, withClaims bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/currency/convert", strings.NewReader(body))
	if withClaims {
		claims := auth.Claims{Username: "user1"}
		claims.Subject = "u-1"
		req = req.WithContext(auth.ContextWithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	handler.Convert(rec, req)
	return rec
}

func TestConvertHandlerRecordsTransaction(t *testing.T) {
	var hits atomic.Int32
	server := newRatesServer(t, &hits)
	defer server.Close()

	recorder := &fakeRecorder{}
	handler := NewHandler(NewService(cache.NewMemory(), "test-app-id", server.URL), recorder)

	rec := postConvert(t, handler, `{"amount":100,"fromCurrency":"EUR","toCurrency":"GBP"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if len(recorder.created) != 1 {
		t.Fatalf("recorded %d transactions, want 1", len(recorder.created))
	}
	tx := recorder.created[0]
	if tx.UserID != "u-1" || tx.FromCurrency != "EUR" || tx.ToCurrency != "GBP" || tx.Result != 50 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestConvertHandlerValidation(t *testing.T) {
	var hits atomic.Int32
	server := newRatesServer(t, &hits)
	defer server.Close()

	handler := NewHandler(NewService(cache.NewMemory(), "test-app-id", server.URL), &fakeRecorder{})

	cases := []struct {
		name string
		body string
		want int
	}{
		{"negative amount", `{"amount":-1,"fromCurrency":"EUR","toCurrency":"GBP"}`, http.StatusBadRequest},
		{"short code", `{"amount":1,"fromCurrency":"EU","toCurrency":"GBP"}`, http.StatusBadRequest},
		{"unknown currency", `{"amount":1,"fromCurrency":"EUR","toCurrency":"XXX"}`, http.StatusBadRequest},
		{"bad json", `nope`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postConvert(t, handler, tc.body, true)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestConvertHandlerRequiresClaims(t *testing.T) {
	handler := NewHandler(NewService(cache.NewMemory(), "test-app-id", "http://localhost:0"), &fakeRecorder{})

	rec := postConvert(t, handler, `{"amount":1,"fromCurrency":"EUR","toCurrency":"GBP"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetExchangeRatesHandler(t *testing.T) {
	var hits atomic.Int32
	server := newRatesServer(t, &hits)
	defer server.Close()

	handler := NewHandler(NewService(cache.NewMemory(), "test-app-id", server.URL), &fakeRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/exchange-rates", nil)
	rec := httptest.NewRecorder()
	handler.GetExchangeRates(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"base":"USD"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	upstreamDown := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstreamDown.Close()

	failing := NewHandler(NewService(cache.NewMemory(), "test-app-id", upstreamDown.URL), &fakeRecorder{})
	rec = httptest.NewRecorder()
	failing.GetExchangeRates(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
