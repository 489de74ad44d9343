// Package provider holds the reputation service clients used by the
// classification pipeline.
package provider

import (
	"errors"
	"net/url"
)

// stripURL drops the request URL from transport errors. Some services carry
// the API key in the query string and it must not reach the logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
