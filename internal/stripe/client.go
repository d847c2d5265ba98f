// Package stripe is a minimal form-encoded client for the parts of the
// Stripe Connect API the payout flow needs: Express accounts, onboarding
// links, transfers, and payouts.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lingualabel.org/internal/obs"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("stripe: api key not configured")

// Account is the subset of a Connect account the platform cares about.
type Account struct {
	ID               string   `json:"id"`
	ChargesEnabled   bool     `json:"charges_enabled"`
	PayoutsEnabled   bool     `json:"payouts_enabled"`
	DetailsSubmitted bool     `json:"details_submitted"`
	CurrentlyDue     []string `json:"currently_due"`
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New builds a client against baseURL (the live API by default; tests point
// it at a local server).
func New(baseURL, key string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.key != "" }

// CreateExpressAccount opens a Connect Express account for an annotator and
// returns its id.
func (c *Client) CreateExpressAccount(ctx context.Context, email, country string) (string, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", strings.ToUpper(country))
	form.Set("email", email)
	form.Set("business_type", "individual")
	form.Set("capabilities[transfers][requested]", "true")

	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, "/v1/accounts", form, nil, &out)
	obs.ObserveExternalCall("stripe", "create_account", err)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// AccountLink creates an onboarding link for an Express account.
func (c *Client) AccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, "/v1/account_links", form, nil, &out)
	obs.ObserveExternalCall("stripe", "account_link", err)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// AccountStatus retrieves the onboarding state of a Connect account.
func (c *Client) AccountStatus(ctx context.Context, accountID string) (Account, error) {
	var out struct {
		ID               string `json:"id"`
		ChargesEnabled   bool   `json:"charges_enabled"`
		PayoutsEnabled   bool   `json:"payouts_enabled"`
		DetailsSubmitted bool   `json:"details_submitted"`
		Requirements     struct {
			CurrentlyDue []string `json:"currently_due"`
		} `json:"requirements"`
	}
	err := c.get(ctx, "/v1/accounts/"+url.PathEscape(accountID), &out)
	obs.ObserveExternalCall("stripe", "account_status", err)
	if err != nil {
		return Account{}, err
	}
	return Account{
		ID:               out.ID,
		ChargesEnabled:   out.ChargesEnabled,
		PayoutsEnabled:   out.PayoutsEnabled,
		DetailsSubmitted: out.DetailsSubmitted,
		CurrentlyDue:     out.Requirements.CurrentlyDue,
	}, nil
}

// Transfer moves platform funds to a Connect account. The idempotency key
// makes retries safe.
func (c *Client) Transfer(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("destination", accountID)

	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, "/v1/transfers", form, map[string]string{"Idempotency-Key": idemKey}, &out)
	obs.ObserveExternalCall("stripe", "transfer", err)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// Payout sends Connect account funds to the annotator's bank. Executed on
// behalf of the connected account.
func (c *Client) Payout(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", strings.ToLower(currency))

	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, "/v1/payouts", form, map[string]string{
		"Idempotency-Key": idemKey,
		"Stripe-Account":  accountID,
	}, &out)
	obs.ObserveExternalCall("stripe", "payout", err)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, path string, form url.Values, headers map[string]string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return c.send(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s: %s", path, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe: %s: status %d", path, resp.StatusCode)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("stripe: decode %s: %w", path, err)
		}
	}
	return nil
}
