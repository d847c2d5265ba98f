package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "sk_test_key", 2*time.Second)
	t.Cleanup(c.http.CloseIdleConnections)
	return c
}

func TestNotConfigured(t *testing.T) {
	c := New("", "", 0)
	if c.Configured() {
		t.Fatal("keyless client must not be configured")
	}
	if _, err := c.Transfer(context.Background(), "acct_1", 100, "usd", "k"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestCreateExpressAccount(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_key" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("type") != "express" || r.PostForm.Get("country") != "KE" {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.PostForm.Get("capabilities[transfers][requested]") != "true" {
			t.Error("transfers capability not requested")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acct_123"})
	})

	id, err := c.CreateExpressAccount(context.Background(), "ann@example.com", "ke")
	if err != nil {
		t.Fatal(err)
	}
	if id != "acct_123" {
		t.Fatalf("account id = %s", id)
	}
}

func TestAccountStatus(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/accounts/acct_123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                "acct_123",
			"payouts_enabled":   true,
			"details_submitted": true,
			"requirements":      map[string]any{"currently_due": []string{"individual.dob"}},
		})
	})

	acct, err := c.AccountStatus(context.Background(), "acct_123")
	if err != nil {
		t.Fatal(err)
	}
	if !acct.PayoutsEnabled || !acct.DetailsSubmitted {
		t.Fatalf("account = %+v", acct)
	}
	if len(acct.CurrentlyDue) != 1 || acct.CurrentlyDue[0] != "individual.dob" {
		t.Fatalf("currently due = %v", acct.CurrentlyDue)
	}
}

func TestTransferSendsIdempotencyKey(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != "transfer-w1" {
			t.Errorf("idempotency key = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("amount") != "500" || r.PostForm.Get("destination") != "acct_123" {
			t.Errorf("form = %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr_1"})
	})

	id, err := c.Transfer(context.Background(), "acct_123", 500, "USD", "transfer-w1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "tr_1" {
		t.Fatalf("transfer id = %s", id)
	}
}

func TestPayoutRunsOnConnectedAccount(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Stripe-Account"); got != "acct_123" {
			t.Errorf("stripe-account header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "po_1"})
	})

	id, err := c.Payout(context.Background(), "acct_123", 500, "usd", "payout-w1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "po_1" {
		t.Fatalf("payout id = %s", id)
	}
}

func TestAPIErrorMessageSurfaced(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "insufficient funds", "type": "invalid_request_error"},
		})
	})

	_, err := c.Transfer(context.Background(), "acct_123", 500, "usd", "k")
	if err == nil || !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("err = %v", err)
	}
}
