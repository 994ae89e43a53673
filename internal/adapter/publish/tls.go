package publish

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"

	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
)

// LoadTLSConfig builds a client tls.Config for mutual TLS from PEM files.
func LoadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	caPEM, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, apperr.NewConfigErr("failed to read kafka CA bundle", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		return nil, apperr.NewConfigErr("no certificates found in kafka CA bundle "+cfg.CAFile, nil)
	}

	keystore, err := os.ReadFile(cfg.KeystoreFile)
	if err != nil {
		return nil, apperr.NewConfigErr("failed to read kafka keystore", err)
	}
	keySource := keystore
	if cfg.KeyFile != "" {
		if keySource, err = os.ReadFile(cfg.KeyFile); err != nil {
			return nil, apperr.NewConfigErr("failed to read kafka client key", err)
		}
	}

	cert, err := clientCertificate(keystore, keySource, []byte(cfg.KeyPassword))
	if err != nil {
		return nil, apperr.NewConfigErr("invalid kafka client certificate", err)
	}

	tc := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      roots,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.SkipHostnameVerify {
		// Chain verification moves into VerifyConnection; only the name check is dropped.
		tc.InsecureSkipVerify = true
		tc.VerifyConnection = verifyChain(roots)
	}
	return tc, nil
}

func verifyChain(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("broker presented no certificate")
		}
		intermediates := x509.NewCertPool()
		for _, c := range cs.PeerCertificates[1:] {
			intermediates.AddCert(c)
		}
		_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		return err
	}
}

func clientCertificate(certPEM, keyPEM, password []byte) (tls.Certificate, error) {
	var chain []byte
	for rest := certPEM; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, pem.EncodeToMemory(block)...)
		}
	}
	if len(chain) == 0 {
		return tls.Certificate{}, errors.New("no CERTIFICATE block in keystore")
	}

	key, err := privateKey(keyPEM, password)
	if err != nil {
		return tls.Certificate{}, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}

	// X509KeyPair also checks that the key matches the leaf certificate.
	return tls.X509KeyPair(chain, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func privateKey(data, password []byte) (any, error) {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no private key block found")
		}
		switch block.Type {
		case "ENCRYPTED PRIVATE KEY":
			if len(password) == 0 {
				return nil, errors.New("private key is encrypted but no password was configured")
			}
			return pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
		case "PRIVATE KEY":
			return pkcs8.ParsePKCS8PrivateKey(block.Bytes)
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			return x509.ParseECPrivateKey(block.Bytes)
		case "CERTIFICATE":
			continue
		default:
			return nil, fmt.Errorf("unsupported key block %q", block.Type)
		}
	}
}
