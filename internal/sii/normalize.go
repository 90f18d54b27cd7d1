package sii

import (
	"strconv"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
)

type Shape string

const (
	ShapeNone   Shape = "none"
	ShapeFlat   Shape = "flat"
	ShapeNested Shape = "nested"
)

// Normalized is the outcome of normalizing one payload. An empty Records
// slice is a valid result, not a failure.
type Normalized struct {
	Records []Record
	Shape   Shape
	// Coerced counts wire positions the decoder replaced with a default.
	Coerced int
}

func (n Normalized) Empty() bool {
	return len(n.Records) == 0
}

// Normalize maps either wire shape onto canonical records. The flat shape
// is already kind specific and is renamed as is; the nested shape yields
// only the register that matches kind.
func Normalize(payload Payload, kind QueryKind) Normalized {
	var tally decode.Tally

	switch p := payload.(type) {
	case FlatPayload:
		records := make([]Record, 0, len(p))
		for _, row := range p {
			tally.Observe(row.fields()...)
			records = append(records, fromFlat(row))
		}
		return Normalized{Records: records, Shape: ShapeFlat, Coerced: tally.Coerced()}
	case NestedPayload:
		records := []Record{}
		switch kind {
		case KindSales:
			if p.Sales != nil {
				for _, row := range p.Sales.Detail {
					tally.Observe(row.fields()...)
					records = append(records, fromSales(row))
				}
			}
		case KindPurchases:
			if p.Purchases != nil {
				for _, row := range p.Purchases.Detail {
					tally.Observe(row.fields()...)
					records = append(records, fromPurchase(row))
				}
			}
		}
		return Normalized{Records: records, Shape: ShapeNested, Coerced: tally.Coerced()}
	default:
		return Normalized{Records: []Record{}, Shape: ShapeNone}
	}
}

func fromFlat(row FlatRecord) Record {
	return Record{
		Folio:             row.Folio.Value,
		CounterpartyTaxID: row.RutCliente.Value,
		CounterpartyName:  row.RazonSocial.Value,
		IssueDate:         row.FechaEmision.Value,
		NetAmount:         row.MontoNeto.Value,
		VATAmount:         row.MontoIva.Value,
		TotalAmount:       row.MontoTotal.Value,
		Status:            row.Estado.Value,
	}
}

func fromSales(row SalesDetail) Record {
	return Record{
		Folio:             folioText(row.Folio),
		CounterpartyTaxID: row.RutCliente.Value,
		CounterpartyName:  row.RazonSocial.Value,
		IssueDate:         row.FechaEmision.Value,
		NetAmount:         row.MontoNeto.Value,
		VATAmount:         row.MontoIva.Value,
		TotalAmount:       row.MontoTotal.Value,
		Status:            row.Estado.Value,
	}
}

func fromPurchase(row PurchaseDetail) Record {
	return Record{
		Folio:             folioText(row.Folio),
		CounterpartyTaxID: row.RutProveedor.Value,
		CounterpartyName:  row.RazonSocial.Value,
		IssueDate:         row.FechaEmision.Value,
		NetAmount:         row.MontoNeto.Value,
		VATAmount:         row.MontoIvaRecuperable.Value,
		TotalAmount:       row.MontoTotal.Value,
		Status:            row.Estado.Value,
	}
}

func folioText(folio decode.Int) string {
	if !folio.Valid {
		return ""
	}
	return strconv.FormatInt(folio.Value, 10)
}
