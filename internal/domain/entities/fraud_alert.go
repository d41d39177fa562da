package entities

import "time"

// AlertType classifies a fraud alert.
type AlertType string

const (
	AlertHighValueTransaction AlertType = "HIGH_VALUE_TRANSACTION"
	AlertRapidWithdrawals     AlertType = "RAPID_WITHDRAWALS"
)

// FraudAlert is an append-only record written by the fraud consumer when a
// rule fires.
type FraudAlert struct {
	id        int64
	walletID  string
	alertType AlertType
	details   map[string]any
	createdAt time.Time
}

// NewFraudAlert builds an alert pending insertion.
func NewFraudAlert(walletID string, alertType AlertType, details map[string]any) *FraudAlert {
	if details == nil {
		details = map[string]any{}
	}
	return &FraudAlert{
		walletID:  walletID,
		alertType: alertType,
		details:   details,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructFraudAlert hydrates an alert from stored data.
func ReconstructFraudAlert(id int64, walletID string, alertType AlertType, details map[string]any, createdAt time.Time) *FraudAlert {
	if details == nil {
		details = map[string]any{}
	}
	return &FraudAlert{id: id, walletID: walletID, alertType: alertType, details: details, createdAt: createdAt}
}

func (a *FraudAlert) ID() int64            { return a.id }
func (a *FraudAlert) WalletID() string     { return a.walletID }
func (a *FraudAlert) AlertType() AlertType { return a.alertType }
func (a *FraudAlert) CreatedAt() time.Time { return a.createdAt }

// Details returns a copy of the alert details.
func (a *FraudAlert) Details() map[string]any {
	out := make(map[string]any, len(a.details))
	for k, v := range a.details {
		out[k] = v
	}
	return out
}
