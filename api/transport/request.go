package transport

type CreateAccountRequest struct {
	Email   string `json:"email"`
	Balance string `json:"balance"`
}

// MoneyRequest is the body of deposit and withdraw calls.
type MoneyRequest struct {
	Amount string `json:"amount"`
}

type CreateTransactionRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	CorrelationID string `json:"correlation_id"`
}

type CancelTransactionRequest struct {
	Reason string `json:"reason"`
}
