// Package prices retrieves Agile half-hourly unit rates from the pricing API
// and reports them through a FetchResult envelope that never carries a Go
// error to the caller.
package prices

import (
	"time"

	"github.com/go-openapi/strfmt"
)

// PricePoint is one half-hour pricing period, valid over [ValidFrom, ValidTo).
// Values are in pence per kWh.
type PricePoint struct {
	ValueExcVAT float64   `json:"value_exc_vat"`
	ValueIncVAT float64   `json:"value_inc_vat"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
}

// Contains reports whether t falls inside the period.
func (p PricePoint) Contains(t time.Time) bool {
	return !t.Before(p.ValidFrom) && t.Before(p.ValidTo)
}

// wirePoint mirrors one element of the upstream results array.
type wirePoint struct {
	ValueExcVAT float64         `json:"value_exc_vat"`
	ValueIncVAT float64         `json:"value_inc_vat"`
	ValidFrom   strfmt.DateTime `json:"valid_from"`
	ValidTo     strfmt.DateTime `json:"valid_to"`
}

func (w wirePoint) point() PricePoint {
	return PricePoint{
		ValueExcVAT: w.ValueExcVAT,
		ValueIncVAT: w.ValueIncVAT,
		ValidFrom:   time.Time(w.ValidFrom),
		ValidTo:     time.Time(w.ValidTo),
	}
}

// wirePage mirrors one upstream page.
type wirePage struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []wirePoint `json:"results"`
}
