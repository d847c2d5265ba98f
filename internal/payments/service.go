// Package payments mediates between annotator earnings and the external
// payment processor: connected-account onboarding, status checks, and the
// withdrawal flow.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lingualabel.org/internal/audit"
	"lingualabel.org/internal/market"
	"lingualabel.org/internal/stripe"
)

// Processor is the external payment surface. Satisfied by *stripe.Client.
type Processor interface {
	Configured() bool
	CreateExpressAccount(ctx context.Context, email, country string) (string, error)
	AccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	AccountStatus(ctx context.Context, accountID string) (stripe.Account, error)
	Transfer(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error)
	Payout(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error)
}

// ConnectStatus is the connected-account view shown to an annotator. It is
// recomputed from the processor on every read, never persisted.
type ConnectStatus struct {
	AccountID        *string  `json:"account_id,omitempty"`
	Connected        bool     `json:"connected"`
	ChargesEnabled   bool     `json:"charges_enabled"`
	PayoutsEnabled   bool     `json:"payouts_enabled"`
	DetailsSubmitted bool     `json:"details_submitted"`
	RequirementsDue  []string `json:"requirements_due,omitempty"`
	Message          string   `json:"message"`
}

type Service struct {
	svc  market.Service
	proc Processor
}

func New(svc market.Service, proc Processor) *Service {
	return &Service{svc: svc, proc: proc}
}

// ConnectStatus reports the annotator's payout account state. A missing
// profile or account yields the "not connected" default instead of an error.
func (s *Service) ConnectStatus(ctx context.Context, userID string) (ConnectStatus, error) {
	notConnected := ConnectStatus{Message: "No payout account connected. Start onboarding to receive payments."}

	profile, err := s.svc.GetAnnotatorByUser(ctx, userID)
	if errors.Is(err, market.ErrNotFound) {
		return notConnected, nil
	}
	if err != nil {
		return ConnectStatus{}, err
	}
	if profile.PayoutAccountID == nil {
		return notConnected, nil
	}

	acct, err := s.proc.AccountStatus(ctx, *profile.PayoutAccountID)
	if err != nil {
		return ConnectStatus{}, fmt.Errorf("%w: %v", market.ErrExternal, err)
	}
	st := ConnectStatus{
		AccountID:        profile.PayoutAccountID,
		Connected:        true,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		RequirementsDue:  acct.CurrentlyDue,
	}
	switch {
	case acct.PayoutsEnabled:
		st.Message = "Payout account is active."
	case acct.DetailsSubmitted:
		st.Message = "Onboarding submitted, waiting for the processor to enable payouts."
	default:
		st.Message = "Onboarding incomplete. Finish onboarding to enable payouts."
	}
	return st, nil
}

// StartOnboarding creates the connected account on first use, then returns a
// redirect URL for the hosted onboarding flow. Re-running it resumes the
// existing account.
func (s *Service) StartOnboarding(ctx context.Context, userID, country, returnURL, refreshURL string) (string, error) {
	if !s.proc.Configured() {
		return "", fmt.Errorf("%w: payment processor is not configured", market.ErrExternal)
	}
	profile, err := s.svc.GetAnnotatorByUser(ctx, userID)
	if errors.Is(err, market.ErrNotFound) {
		return "", fmt.Errorf("%w: annotator profile required before onboarding", market.ErrPrecondition)
	}
	if err != nil {
		return "", err
	}

	accountID := ""
	if profile.PayoutAccountID != nil {
		accountID = *profile.PayoutAccountID
	} else {
		if country == "" {
			country = profile.Country
		}
		accountID, err = s.proc.CreateExpressAccount(ctx, profile.Email, country)
		if err != nil {
			return "", fmt.Errorf("%w: %v", market.ErrExternal, err)
		}
		if err := s.svc.SetAnnotatorPayoutAccount(ctx, userID, accountID); err != nil {
			return "", err
		}
		audit.LogEvent(ctx, "payments.account_created", map[string]any{"payout_account_id": accountID})
	}

	link, err := s.proc.AccountLink(ctx, accountID, refreshURL, returnURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", market.ErrExternal, err)
	}
	return link, nil
}

// Earnings returns the derived earnings snapshot for the annotator.
func (s *Service) Earnings(ctx context.Context, userID string) (market.Earnings, error) {
	return s.svc.Earnings(ctx, userID)
}

// Withdraw moves available earnings to the annotator's bank. The amount is
// reserved before any processor call, so a crash or processor failure can
// only leave a pending or failed record, never an unbacked payout. idemKey
// makes client retries replay the original withdrawal.
func (s *Service) Withdraw(ctx context.Context, userID string, amountCents int64, currency, idemKey string) (market.Withdrawal, error) {
	if amountCents <= 0 {
		return market.Withdrawal{}, fmt.Errorf("%w: amount_cents must be > 0", market.ErrValidation)
	}
	profile, err := s.svc.GetAnnotatorByUser(ctx, userID)
	if errors.Is(err, market.ErrNotFound) {
		return market.Withdrawal{}, fmt.Errorf("%w: annotator profile required", market.ErrPrecondition)
	}
	if err != nil {
		return market.Withdrawal{}, err
	}
	if profile.PayoutAccountID == nil {
		return market.Withdrawal{}, fmt.Errorf("%w: no payout account connected", market.ErrPrecondition)
	}
	accountID := *profile.PayoutAccountID

	acct, err := s.proc.AccountStatus(ctx, accountID)
	if err != nil {
		return market.Withdrawal{}, fmt.Errorf("%w: %v", market.ErrExternal, err)
	}
	if !acct.PayoutsEnabled {
		return market.Withdrawal{}, fmt.Errorf("%w: payouts are not enabled on the connected account", market.ErrPrecondition)
	}

	if currency == "" {
		currency = market.DefaultCurrency
	}
	w, err := s.svc.ReserveWithdrawal(ctx, userID, amountCents, currency, idemKey)
	if err != nil {
		return market.Withdrawal{}, err
	}
	// Idempotent replay: the money already moved (or the record is failed),
	// do not charge the processor again.
	if w.Status != market.WithdrawalPending {
		return w, nil
	}

	cur := strings.ToLower(w.Currency)
	if _, err := s.proc.Transfer(ctx, accountID, w.AmountCents, cur, "transfer-"+w.ID); err != nil {
		return s.failWithdrawal(ctx, w, err)
	}
	payoutID, err := s.proc.Payout(ctx, accountID, w.AmountCents, cur, "payout-"+w.ID)
	if err != nil {
		return s.failWithdrawal(ctx, w, err)
	}

	settled, err := s.svc.SettleWithdrawal(ctx, w.ID, payoutID)
	if err != nil {
		return market.Withdrawal{}, err
	}
	audit.LogEvent(ctx, "payments.withdrawal_completed", map[string]any{
		"withdrawal_id": settled.ID,
		"amount_cents":  settled.AmountCents,
		"currency":      settled.Currency,
	})
	return settled, nil
}

func (s *Service) failWithdrawal(ctx context.Context, w market.Withdrawal, cause error) (market.Withdrawal, error) {
	if err := s.svc.FailWithdrawal(ctx, w.ID, cause.Error()); err != nil {
		return market.Withdrawal{}, err
	}
	audit.LogEvent(ctx, "payments.withdrawal_failed", map[string]any{
		"withdrawal_id": w.ID,
		"reason":        cause.Error(),
	})
	return market.Withdrawal{}, fmt.Errorf("%w: %v", market.ErrExternal, cause)
}
