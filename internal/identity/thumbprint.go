package identity

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCertificate = errors.New("no certificate found in PEM file")
	ErrNoPrivateKey  = errors.New("no private key found in PEM file")
)

// Bundle is the certificate chain and RSA private key read from one PEM file
type Bundle struct {
	Certificates []*x509.Certificate
	PrivateKey   *rsa.PrivateKey
}

// Leaf returns the first certificate in the file
func (b *Bundle) Leaf() *x509.Certificate {
	return b.Certificates[0]
}

// Thumbprint returns the SHA-1 thumbprint of the leaf certificate
func (b *Bundle) Thumbprint() string {
	return Thumbprint(b.Leaf())
}

// Thumbprint returns the upper-case hex SHA-1 digest of the certificate's DER
// encoding, the form identity portals display.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ThumbprintFile loads the first certificate from a PEM file and returns
// its thumbprint. The private key is not required.
func ThumbprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read certificate file: %w", err)
	}
	certs, _, err := parsePEM(data, false)
	if err != nil {
		return "", err
	}
	return Thumbprint(certs[0]), nil
}

// LoadBundle reads certificates and the private key from a PEM file.
// Blocks may appear in any order; PKCS#1 and PKCS#8 RSA keys are accepted.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	certs, key, err := parsePEM(data, true)
	if err != nil {
		return nil, err
	}
	return &Bundle{Certificates: certs, PrivateKey: key}, nil
}

func parsePEM(data []byte, needKey bool) ([]*x509.Certificate, *rsa.PrivateKey, error) {
	var (
		certs []*x509.Certificate
		key   *rsa.PrivateKey
	)

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			if !needKey || key != nil {
				continue
			}
			parsed, err := jwt.ParseRSAPrivateKeyFromPEM(pem.EncodeToMemory(block))
			if err != nil {
				return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			key = parsed
		}
	}

	if len(certs) == 0 {
		return nil, nil, ErrNoCertificate
	}
	if needKey && key == nil {
		return nil, nil, ErrNoPrivateKey
	}
	return certs, key, nil
}
