package provision

import (
	"crypto/x509/pkix"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfeidau/hostident/internal/pki"
	"github.com/wolfeidau/hostident/internal/telemetry"
)

const (
	DefaultRootCommonName = "hostident Root CA"
	DefaultHostCommonName = "hostident Host"
)

// Config controls the shape of the provisioned identity.
type Config struct {
	// KeyBits is the RSA modulus size for both keys. Defaults to 2048.
	KeyBits int
	// Validity applies to both certificates. Defaults to ten years.
	Validity time.Duration
	// HostIsCA marks the host certificate as a certificate authority.
	HostIsCA bool

	RootSubject pkix.Name
	// HostSubject CommonName is replaced by the host id when one is set.
	HostSubject pkix.Name

	// GenerateHostID assigns a fresh host id when the caller does not supply one.
	GenerateHostID bool
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.KeyBits == 0 {
		c.KeyBits = pki.DefaultKeyBits
	}
	if c.Validity == 0 {
		c.Validity = pki.DefaultValidity
	}
	if c.RootSubject.CommonName == "" {
		c.RootSubject.CommonName = DefaultRootCommonName
	}
	if c.HostSubject.CommonName == "" {
		c.HostSubject.CommonName = DefaultHostCommonName
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.KeyBits < 0 {
		return fmt.Errorf("key bits must be positive, got %d", c.KeyBits)
	}
	if c.Validity < 0 {
		return fmt.Errorf("validity must be positive, got %s", c.Validity)
	}
	return nil
}

// NewHostID returns a new upper-case UUID host identifier.
func NewHostID() string {
	return strings.ToUpper(uuid.NewString())
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithClock sets the clock used for certificate activation times.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) {
		p.now = now
	}
}

// WithRandom sets the entropy source used for key generation.
func WithRandom(random io.Reader) Option {
	return func(p *Provisioner) {
		p.random = random
	}
}

// WithSerials sets the serial number source shared by both certificates.
func WithSerials(serials pki.SerialSource) Option {
	return func(p *Provisioner) {
		p.serials = serials
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithObserver registers a callback invoked each time a run enters a new state.
func WithObserver(observe func(State)) Option {
	return func(p *Provisioner) {
		p.observe = observe
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Provisioner) {
		p.tracer = tracer
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(p *Provisioner) {
		p.metrics = metrics
	}
}
