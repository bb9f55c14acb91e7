package domain

import "context"

// Conversion carries the attribution fields merged into a postback URL. The
// conversion domain itself lives outside this service; this is the minimal
// shape the URL builder needs.
type Conversion struct {
	ConversionID   string
	ClickID        string
	ConversionType string
	OrderID        string
	ProductID      string
	Value          *ConversionValue
}

// ConversionValue is the optional monetary value of a conversion.
type ConversionValue struct {
	Revenue  float64
	Currency string
}

// ConversionLookup resolves a conversion id to its attribution fields.
type ConversionLookup interface {
	GetByID(ctx context.Context, conversionID string) (*Conversion, error)
}
