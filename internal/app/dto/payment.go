package dto

type PaymentOrder struct {
	BookingID        string `json:"booking_id"`
	OrderRef         string `json:"order_ref"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	KeyID            string `json:"key_id,omitempty"`
}

type BookingTransition struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type BookingStatus struct {
	BookingID  string   `json:"booking_id"`
	TotalPrice MoneyDTO `json:"total_price"`
	Status     string   `json:"status"`
}

type ReconcileResult struct {
	Scanned int      `json:"scanned"`
	Failed  []string `json:"failed"`
}
