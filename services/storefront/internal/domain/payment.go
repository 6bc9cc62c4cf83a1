package domain

import "strings"

// MinIntentAmount is the smallest charge, in minor units, a provider accepts.
const MinIntentAmount = 50

// PaymentIntent is a provider-side intent the browser confirms with the
// client secret.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// NormalizeCurrency lowercases an ISO 4217 code.
func NormalizeCurrency(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
