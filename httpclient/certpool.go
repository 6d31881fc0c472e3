package httpclient

import (
	"crypto/x509"
	"fmt"
)

func newCertPool(pem []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("httpclient: no certificates found in CA bundle")
	}
	return pool, nil
}
