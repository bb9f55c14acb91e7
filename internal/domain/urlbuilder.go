package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildPostbackURL merges conversion attribution fields into the base URL's
// query string. Attribution parameters overwrite same-named existing
// parameters; everything else (scheme, host, path, fragment, other params) is
// preserved. Pure function, no side effects.
func BuildPostbackURL(baseURL string, conv Conversion) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", ErrMalformedURL, baseURL)
	}

	q := u.Query()
	q.Set("click_id", conv.ClickID)
	q.Set("conversion_id", conv.ConversionID)
	q.Set("conversion_type", conv.ConversionType)
	q.Set("order_id", conv.OrderID)
	q.Set("product_id", conv.ProductID)
	if conv.Value != nil {
		q.Set("revenue", strconv.FormatFloat(conv.Value.Revenue, 'f', -1, 64))
		q.Set("currency", conv.Value.Currency)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
