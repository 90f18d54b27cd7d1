package sii

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
)

// Response is the envelope of the sales and purchases query endpoints.
type Response struct {
	Success decode.Bool     `json:"success"`
	Message decode.Text     `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   decode.Int      `json:"total"`
	Storage *StorageOutcome `json:"almacenamiento"`
}

// ParseResponse decodes the envelope. Only a body that is not a JSON object
// at all is an error; every member inside it is decoded tolerantly.
func ParseResponse(body []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (r *Response) UnmarshalJSON(raw []byte) error {
	type envelope Response
	var wire struct {
		envelope
		Storage json.RawMessage `json:"almacenamiento"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	*r = Response(wire.envelope)
	r.Storage = decodeStorage(wire.Storage)
	return nil
}

// decodeStorage returns nil unless the member is a JSON object.
func decodeStorage(raw json.RawMessage) *StorageOutcome {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var outcome StorageOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil && !isTypeError(err) {
		return nil
	}
	return &outcome
}

// Payload is the data member of a query response. It is either FlatPayload
// or NestedPayload, or nil when no usable data was sent.
type Payload interface {
	isPayload()
}

// FlatPayload is the legacy list shape.
type FlatPayload []FlatRecord

// NestedPayload holds the sales and purchases registers. Either may be nil.
type NestedPayload struct {
	Sales     *Register[SalesDetail]
	Purchases *Register[PurchaseDetail]
}

func (FlatPayload) isPayload()   {}
func (NestedPayload) isPayload() {}

// Register is a section of the nested shape; the backend has used both
// "detalle" and "detail" as its list key.
type Register[T any] struct {
	Detail []T
}

func (r *Register[T]) UnmarshalJSON(raw []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil
	}
	list, ok := firstMember(members, "detalle", "detail")
	if !ok {
		return nil
	}
	var detail []T
	if err := json.Unmarshal(list, &detail); err != nil && !isTypeError(err) {
		return nil
	}
	r.Detail = detail
	return nil
}

func (p *NestedPayload) UnmarshalJSON(raw []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil
	}
	if section, ok := firstMember(members, "ventas", "sales"); ok {
		p.Sales = &Register[SalesDetail]{}
		_ = json.Unmarshal(section, p.Sales)
	}
	if section, ok := firstMember(members, "compras", "purchases"); ok {
		p.Purchases = &Register[PurchaseDetail]{}
		_ = json.Unmarshal(section, p.Purchases)
	}
	return nil
}

// Payload resolves the shape of the data member once.
func (r Response) Payload() Payload {
	return DecodePayload(r.Data)
}

// DecodePayload picks the wire shape by the first JSON token of raw.
func DecodePayload(raw json.RawMessage) Payload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var flat FlatPayload
		if err := json.Unmarshal(raw, &flat); err != nil && !isTypeError(err) {
			return nil
		}
		return flat
	case '{':
		var nested NestedPayload
		_ = json.Unmarshal(raw, &nested)
		return nested
	default:
		return nil
	}
}

func firstMember(members map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		value, ok := members[key]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return value, true
	}
	return nil, false
}

// isTypeError reports a mismatch json.Unmarshal recovered from; the rest of
// the value was still decoded.
func isTypeError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}
