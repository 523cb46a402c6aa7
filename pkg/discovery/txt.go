package discovery

import (
	"fmt"
	"strings"
)

// TXT record keys published by a bridge.
const (
	TXTKeySerial  = "serial"
	TXTKeyModel   = "model"
	TXTKeyService = "svc"
)

// MaxTXTValueLength bounds a single TXT value.
const MaxTXTValueLength = 63

// BridgeTXT is the TXT record of a _x2bridge._tcp service.
type BridgeTXT struct {
	// Serial is the serial number of the pump the bridge is attached to.
	Serial string

	// Model is the pump model name (optional).
	Model string

	// Service is the UUID of the BLE service the bridge relays (optional).
	Service string
}

// Validate checks that the record can be published.
func (t *BridgeTXT) Validate() error {
	if t.Serial == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidTXTRecord, TXTKeySerial)
	}
	for key, v := range map[string]string{TXTKeySerial: t.Serial, TXTKeyModel: t.Model, TXTKeyService: t.Service} {
		if len(v) > MaxTXTValueLength {
			return fmt.Errorf("%w: %s longer than %d", ErrInvalidTXTRecord, key, MaxTXTValueLength)
		}
		if strings.ContainsRune(v, '=') {
			return fmt.Errorf("%w: %s contains '='", ErrInvalidTXTRecord, key)
		}
	}
	return nil
}

// Encode returns the record as key=value strings.
func (t *BridgeTXT) Encode() []string {
	records := []string{TXTKeySerial + "=" + t.Serial}
	if t.Model != "" {
		records = append(records, TXTKeyModel+"="+t.Model)
	}
	if t.Service != "" {
		records = append(records, TXTKeyService+"="+t.Service)
	}
	return records
}

// ParseTXT splits key=value records into a map. Keys without '=' map to "".
func ParseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		key, value, _ := strings.Cut(rec, "=")
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// ParseBridgeTXT decodes a bridge TXT record.
func ParseBridgeTXT(records []string) (*BridgeTXT, error) {
	m := ParseTXT(records)
	serial, ok := m[TXTKeySerial]
	if !ok || serial == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeySerial)
	}
	return &BridgeTXT{
		Serial:  serial,
		Model:   m[TXTKeyModel],
		Service: m[TXTKeyService],
	}, nil
}
