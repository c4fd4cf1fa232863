package transaction

import "time"

// Transaction records a completed currency conversion for a user.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       float64   `json:"amount"`
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Rate         float64   `json:"rate"`
	Result       float64   `json:"result"`
	CreatedAt    time.Time `json:"created_at"`
}
