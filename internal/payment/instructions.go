package payment

import (
	"time"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/pkg/config"
)

// Copyable fields of the instructions.
const (
	FieldAccount = "account"
	FieldCode    = "code"
)

// AckDuration is how long a copy button reads as copied.
const AckDuration = 2 * time.Second

// Account is the receiving bank account.
type Account struct {
	BankName string
	Number   string
	Holder   string
}

func AccountFromConfig(cfg config.PaymentConfig) Account {
	return Account{BankName: cfg.BankName, Number: cfg.AccountNumber, Holder: cfg.AccountHolder}
}

// Instructions is everything the payment page shows for one Payment.
type Instructions struct {
	Payment   domain.Payment
	Account   Account
	Countdown Remaining
}

func NewInstructions(p domain.Payment, account Account, window time.Duration, now time.Time) Instructions {
	return Instructions{
		Payment:   p,
		Account:   account,
		Countdown: Countdown(p, window, now),
	}
}

// Verified reports whether an admin has confirmed the transfer.
func (i Instructions) Verified() bool {
	return i.Payment.Verified()
}

// CopyText is the exact text a copy button puts on the clipboard. It equals the displayed text.
func (i Instructions) CopyText(field string) (string, bool) {
	switch field {
	case FieldAccount:
		return i.Account.Number, i.Account.Number != ""
	case FieldCode:
		return i.Payment.Code, i.Payment.Code != ""
	default:
		return "", false
	}
}

// CopyAck remembers the last copied field for AckDuration.
type CopyAck struct {
	Field string
	Until time.Time
}

// Copy acknowledges field at now, replacing any earlier acknowledgement.
func (a CopyAck) Copy(field string, now time.Time) CopyAck {
	return CopyAck{Field: field, Until: now.Add(AckDuration)}
}

// Copied reports whether field still shows as copied at now.
func (a CopyAck) Copied(field string, now time.Time) bool {
	return a.Field == field && now.Before(a.Until)
}

// ButtonLabel is the copy button text for field.
func (a CopyAck) ButtonLabel(field string, now time.Time) string {
	if a.Copied(field, now) {
		return "복사됨!"
	}
	return "복사"
}
