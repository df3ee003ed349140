package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Sales events
	EventSaleRecorded      = "sales.sale.recorded"
	EventSaleDeleted       = "sales.sale.deleted"
	EventSaleReturnCreated = "sales.return.created"

	// Purchasing events
	EventPurchaseBillRecorded  = "purchasing.bill.recorded"
	EventPurchaseReturnCreated = "purchasing.return.created"

	// Inventory events
	EventStockLow      = "inventory.stock.low"
	EventBatchExpiring = "inventory.batch.expiring"
)

// Exchange names
const (
	ExchangeSalesEvents     = "sales.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// SaleRecordedEvent is published when a sale is committed
type SaleRecordedEvent struct {
	SaleID      string `json:"sale_id"`
	CustomerID  string `json:"customer_id,omitempty"`
	ItemCount   int    `json:"item_count"`
	TotalAmount string `json:"total_amount"`
	PromoCode   string `json:"promo_code,omitempty"`
}

// SaleDeletedEvent is published when a sale is deleted and its stock restored
type SaleDeletedEvent struct {
	SaleID        string `json:"sale_id"`
	RestoredUnits int    `json:"restored_units"`
}

// SaleReturnCreatedEvent is published when a customer return is recorded
type SaleReturnCreatedEvent struct {
	ReturnID  string `json:"return_id"`
	SaleID    string `json:"sale_id,omitempty"`
	ItemCount int    `json:"item_count"`
}

// PurchaseBillRecordedEvent is published when a purchase bill is committed
type PurchaseBillRecordedEvent struct {
	BillID     string `json:"bill_id"`
	SupplierID string `json:"supplier_id"`
	BatchCount int    `json:"batch_count"`
}

// PurchaseReturnCreatedEvent is published when a purchase return is recorded
type PurchaseReturnCreatedEvent struct {
	ReturnID   string `json:"return_id"`
	SupplierID string `json:"supplier_id"`
	ItemCount  int    `json:"item_count"`
}

// StockLowEvent is published when a sale drives a medicine below its
// configured low-stock threshold
type StockLowEvent struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Available    int    `json:"available"`
	Threshold    int    `json:"threshold"`
}

// BatchExpiringEvent is published for batches nearing expiry
type BatchExpiringEvent struct {
	MedicineID string    `json:"medicine_id"`
	BatchID    string    `json:"batch_id"`
	BatchNo    string    `json:"batch_no"`
	ExpiryDate time.Time `json:"expiry_date"`
	DaysUntil  int       `json:"days_until"`
	Available  int       `json:"available"`
}
