package syncer

import (
	"fmt"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/mirror"
)

// Wire form of each entity. Only business fields travel: local id,
// dirty flag and row state are device bookkeeping and stay home.
// Timestamps are RFC3339Nano strings so payloads survive a JSON
// round-trip through any mirror backend.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func payloadString(payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %s: expected string, got %T", key, raw)
	}
	return value, nil
}

func payloadInt64(payload map[string]any, key string) (int64, error) {
	raw, ok := payload[key]
	if !ok {
		return 0, nil
	}
	switch value := raw.(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case float64:
		// encoding/json decodes numbers as float64.
		return int64(value), nil
	}
	return 0, fmt.Errorf("field %s: expected number, got %T", key, raw)
}

func payloadInt(payload map[string]any, key string) (int, error) {
	value, err := payloadInt64(payload, key)
	return int(value), err
}

func payloadBool(payload map[string]any, key string) (bool, error) {
	raw, ok := payload[key]
	if !ok {
		return false, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("field %s: expected bool, got %T", key, raw)
	}
	return value, nil
}

func payloadTime(payload map[string]any, key string) (time.Time, error) {
	value, err := payloadString(payload, key)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %v", key, err)
	}
	return parsed.UTC(), nil
}

func payloadList(payload map[string]any, key string) ([]map[string]any, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch value := raw.(type) {
	case []map[string]any:
		return value, nil
	case []any:
		out := make([]map[string]any, 0, len(value))
		for _, el := range value {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %s: expected object list, got %T element", key, el)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("field %s: expected list, got %T", key, raw)
}

// Clients.

func encodeClient(c domain.Client) mirror.Document {
	return mirror.Document{
		RemoteID:  c.RemoteID,
		UpdatedAt: c.UpdatedAt,
		Payload: map[string]any{
			"name":       c.Name,
			"phone":      c.Phone,
			"address":    c.Address,
			"created_at": encodeTime(c.CreatedAt),
		},
	}
}

func decodeClient(doc mirror.Document) (domain.Client, error) {
	var c domain.Client
	var err error
	c.RemoteID = doc.RemoteID
	c.UpdatedAt = doc.UpdatedAt.UTC()
	if c.Name, err = payloadString(doc.Payload, "name"); err != nil {
		return c, err
	}
	if c.Name == "" {
		return c, fmt.Errorf("field name: empty")
	}
	if c.Phone, err = payloadString(doc.Payload, "phone"); err != nil {
		return c, err
	}
	if c.Address, err = payloadString(doc.Payload, "address"); err != nil {
		return c, err
	}
	if c.CreatedAt, err = payloadTime(doc.Payload, "created_at"); err != nil {
		return c, err
	}
	return c, nil
}

// Products.

func encodeProduct(p domain.Product) mirror.Document {
	return mirror.Document{
		RemoteID:  p.RemoteID,
		UpdatedAt: p.UpdatedAt,
		Payload: map[string]any{
			"name":        p.Name,
			"unit_grams":  p.UnitGrams,
			"price_paise": p.PricePaise,
			"cost_paise":  p.CostPaise,
			"stock":       p.Stock,
			"created_at":  encodeTime(p.CreatedAt),
		},
	}
}

func decodeProduct(doc mirror.Document) (domain.Product, error) {
	var p domain.Product
	var err error
	p.RemoteID = doc.RemoteID
	p.UpdatedAt = doc.UpdatedAt.UTC()
	if p.Name, err = payloadString(doc.Payload, "name"); err != nil {
		return p, err
	}
	if p.Name == "" {
		return p, fmt.Errorf("field name: empty")
	}
	if p.UnitGrams, err = payloadInt(doc.Payload, "unit_grams"); err != nil {
		return p, err
	}
	if p.PricePaise, err = payloadInt64(doc.Payload, "price_paise"); err != nil {
		return p, err
	}
	if p.CostPaise, err = payloadInt64(doc.Payload, "cost_paise"); err != nil {
		return p, err
	}
	if p.Stock, err = payloadInt(doc.Payload, "stock"); err != nil {
		return p, err
	}
	if p.CreatedAt, err = payloadTime(doc.Payload, "created_at"); err != nil {
		return p, err
	}
	return p, nil
}

// Bills travel as one document with their items embedded, so a bill
// and its lines can never sync half-and-half.

func encodeBill(b domain.Bill) mirror.Document {
	items := make([]map[string]any, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, map[string]any{
			"remote_id":   item.RemoteID,
			"product_id":  item.ProductID,
			"quantity":    item.Quantity,
			"price_paise": item.PricePaise,
		})
	}
	return mirror.Document{
		RemoteID:  b.RemoteID,
		UpdatedAt: b.UpdatedAt,
		Payload: map[string]any{
			"client_id":   b.ClientID,
			"total_paise": b.TotalPaise,
			"paid_paise":  b.PaidPaise,
			"date":        encodeTime(b.Date),
			"created_at":  encodeTime(b.CreatedAt),
			"items":       items,
		},
	}
}

func decodeBill(doc mirror.Document) (domain.Bill, error) {
	var b domain.Bill
	var err error
	b.RemoteID = doc.RemoteID
	b.UpdatedAt = doc.UpdatedAt.UTC()
	if b.ClientID, err = payloadString(doc.Payload, "client_id"); err != nil {
		return b, err
	}
	if b.ClientID == "" {
		return b, fmt.Errorf("field client_id: empty")
	}
	if b.TotalPaise, err = payloadInt64(doc.Payload, "total_paise"); err != nil {
		return b, err
	}
	if b.PaidPaise, err = payloadInt64(doc.Payload, "paid_paise"); err != nil {
		return b, err
	}
	if b.Date, err = payloadTime(doc.Payload, "date"); err != nil {
		return b, err
	}
	if b.CreatedAt, err = payloadTime(doc.Payload, "created_at"); err != nil {
		return b, err
	}

	rawItems, err := payloadList(doc.Payload, "items")
	if err != nil {
		return b, err
	}
	b.Items = make([]domain.BillItem, 0, len(rawItems))
	for _, raw := range rawItems {
		var item domain.BillItem
		item.BillID = b.RemoteID
		if item.RemoteID, err = payloadString(raw, "remote_id"); err != nil {
			return b, err
		}
		if item.ProductID, err = payloadString(raw, "product_id"); err != nil {
			return b, err
		}
		if item.Quantity, err = payloadInt(raw, "quantity"); err != nil {
			return b, err
		}
		if item.PricePaise, err = payloadInt64(raw, "price_paise"); err != nil {
			return b, err
		}
		b.Items = append(b.Items, item)
	}
	return b, nil
}

// Demand batches embed their entries the same way bills embed items.

func encodeBatch(b domain.DemandBatch) mirror.Document {
	entries := make([]map[string]any, 0, len(b.Entries))
	for _, entry := range b.Entries {
		entries = append(entries, map[string]any{
			"remote_id":  entry.RemoteID,
			"client_id":  entry.ClientID,
			"product_id": entry.ProductID,
			"quantity":   entry.Quantity,
			"deleted":    entry.Deleted,
		})
	}
	return mirror.Document{
		RemoteID:  b.RemoteID,
		UpdatedAt: b.UpdatedAt,
		Payload: map[string]any{
			"date":       encodeTime(b.Date),
			"closed":     b.Closed,
			"created_at": encodeTime(b.CreatedAt),
			"entries":    entries,
		},
	}
}

func decodeBatch(doc mirror.Document) (domain.DemandBatch, error) {
	var b domain.DemandBatch
	var err error
	b.RemoteID = doc.RemoteID
	b.UpdatedAt = doc.UpdatedAt.UTC()
	if b.Date, err = payloadTime(doc.Payload, "date"); err != nil {
		return b, err
	}
	if b.Date.IsZero() {
		return b, fmt.Errorf("field date: empty")
	}
	if b.Closed, err = payloadBool(doc.Payload, "closed"); err != nil {
		return b, err
	}
	if b.CreatedAt, err = payloadTime(doc.Payload, "created_at"); err != nil {
		return b, err
	}

	rawEntries, err := payloadList(doc.Payload, "entries")
	if err != nil {
		return b, err
	}
	b.Entries = make([]domain.DemandEntry, 0, len(rawEntries))
	for _, raw := range rawEntries {
		var entry domain.DemandEntry
		entry.BatchID = b.RemoteID
		if entry.RemoteID, err = payloadString(raw, "remote_id"); err != nil {
			return b, err
		}
		if entry.ClientID, err = payloadString(raw, "client_id"); err != nil {
			return b, err
		}
		if entry.ProductID, err = payloadString(raw, "product_id"); err != nil {
			return b, err
		}
		if entry.Quantity, err = payloadInt(raw, "quantity"); err != nil {
			return b, err
		}
		if entry.Deleted, err = payloadBool(raw, "deleted"); err != nil {
			return b, err
		}
		b.Entries = append(b.Entries, entry)
	}
	return b, nil
}

// Ledger entries.

func encodeLedgerEntry(e domain.LedgerEntry) mirror.Document {
	return mirror.Document{
		RemoteID:  e.RemoteID,
		UpdatedAt: e.UpdatedAt,
		Payload: map[string]any{
			"client_id":        e.ClientID,
			"bill_id":          e.BillID,
			"type":             string(e.Type),
			"amount_paise":     e.AmountPaise,
			"date":             encodeTime(e.Date),
			"note":             e.Note,
			"payment_method":   e.PaymentMethod,
			"reference_number": e.ReferenceNumber,
			"created_at":       encodeTime(e.CreatedAt),
		},
	}
}

func decodeLedgerEntry(doc mirror.Document) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var err error
	e.RemoteID = doc.RemoteID
	e.UpdatedAt = doc.UpdatedAt.UTC()
	if e.ClientID, err = payloadString(doc.Payload, "client_id"); err != nil {
		return e, err
	}
	if e.ClientID == "" {
		return e, fmt.Errorf("field client_id: empty")
	}
	if e.BillID, err = payloadString(doc.Payload, "bill_id"); err != nil {
		return e, err
	}
	entryType, err := payloadString(doc.Payload, "type")
	if err != nil {
		return e, err
	}
	switch domain.LedgerType(entryType) {
	case domain.LedgerBill, domain.LedgerPayment, domain.LedgerCredit, domain.LedgerAdjustment:
		e.Type = domain.LedgerType(entryType)
	default:
		return e, fmt.Errorf("field type: unknown value %q", entryType)
	}
	if e.AmountPaise, err = payloadInt64(doc.Payload, "amount_paise"); err != nil {
		return e, err
	}
	if e.Date, err = payloadTime(doc.Payload, "date"); err != nil {
		return e, err
	}
	if e.Note, err = payloadString(doc.Payload, "note"); err != nil {
		return e, err
	}
	if e.PaymentMethod, err = payloadString(doc.Payload, "payment_method"); err != nil {
		return e, err
	}
	if e.ReferenceNumber, err = payloadString(doc.Payload, "reference_number"); err != nil {
		return e, err
	}
	if e.CreatedAt, err = payloadTime(doc.Payload, "created_at"); err != nil {
		return e, err
	}
	return e, nil
}
