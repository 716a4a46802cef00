package events

// Refund lifecycle event types consumed by the notification dispatcher and
// downstream rollups. The core raises events; it never sends email itself.
const (
	EventRefundRequested = "refund.requested"
	EventRefundApproved  = "refund.approved"
	EventRefundRejected  = "refund.rejected"
	EventRefundCancelled = "refund.cancelled"
	EventRefundCompleted = "refund.completed"
	EventRefundFailed    = "refund.failed"

	EventCreditNoteIssued   = "credit_note.issued"
	EventCreditNoteConsumed = "credit_note.consumed"
	EventCreditNoteExpired  = "credit_note.expired"
)

// RefundPayload captures the minimal data a consumer needs to act on a
// refund transition.
type RefundPayload struct {
	RefundID   string `json:"refund_id"`
	Reference  string `json:"reference"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p RefundPayload) ToMap() map[string]any {
	return map[string]any{
		"refund_id":   p.RefundID,
		"reference":   p.Reference,
		"customer_id": p.CustomerID,
		"status":      p.Status,
		"amount":      p.Amount,
		"method":      p.Method,
	}
}

// CreditNotePayload captures the minimal data for credit note events.
type CreditNotePayload struct {
	CreditNoteID string `json:"credit_note_id"`
	Reference    string `json:"reference"`
	CustomerID   string `json:"customer_id"`
	Remaining    string `json:"remaining_amount"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p CreditNotePayload) ToMap() map[string]any {
	return map[string]any{
		"credit_note_id":   p.CreditNoteID,
		"reference":        p.Reference,
		"customer_id":      p.CustomerID,
		"remaining_amount": p.Remaining,
	}
}
