package publish

const (
	SecuritySASLSSL   = "SASL_SSL"
	SecurityPlaintext = "PLAINTEXT"
)

// Config captures the Kafka connectivity, security and acknowledgment
// behavior of the publisher.
//
// SASL and TLS are only validated when SecurityProtocol is SASL_SSL.
type Config struct {
	Host                string     `validate:"required,hostname_rfc1123|ip"`
	Port                int        `validate:"required,gte=1,lte=65535"`
	Topic               string     `validate:"required"`
	ClientID            string     `validate:"required"`
	SecurityProtocol    string     `validate:"required,oneof=SASL_SSL PLAINTEXT"`
	SASL                SASLConfig `validate:"-"`
	TLS                 TLSConfig  `validate:"-"`
	WriteTimeoutSeconds int        `validate:"omitempty,gte=1"`
	PingAttempts        int        `validate:"omitempty,gte=1"`
}

// SASLConfig holds SCRAM-SHA-512 credentials.
type SASLConfig struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// TLSConfig points at PEM material for mutual TLS.
//
// KeystoreFile holds the client certificate chain and, unless KeyFile is set,
// the private key. KeyPassword decrypts an encrypted PKCS#8 key. With
// SkipHostnameVerify the broker chain is still verified against CAFile but
// its hostname is not checked.
type TLSConfig struct {
	CAFile             string `validate:"required,file"`
	KeystoreFile       string `validate:"required,file"`
	KeyFile            string `validate:"omitempty,file"`
	KeyPassword        string
	SkipHostnameVerify bool
}
