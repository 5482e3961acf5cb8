package websocket

// Event types for WebSocket messages
const (
	// Transaction events
	EventTransactionCreated  = "transaction:created"
	EventRedemptionProcessed = "redemption:processed"

	// Event events
	EventEventPublished = "event:published"
	EventEventAwarded   = "event:awarded"
)

// TransactionEvent represents a ledger activity notification
type TransactionEvent struct {
	TransactionID uint   `json:"transaction_id"`
	Utorid        string `json:"utorid"`
	Type          string `json:"type"`
	Amount        int    `json:"amount"`
	CreatedBy     string `json:"created_by"`
}

// EventNotification represents an event lifecycle notification
type EventNotification struct {
	EventID uint   `json:"event_id"`
	Name    string `json:"name"`
}
