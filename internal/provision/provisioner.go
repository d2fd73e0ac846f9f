// Package provision builds a root CA and a host certificate signed by it, encodes both key
// pairs and certificates, and hands the result to a persistence backend.
package provision

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfeidau/hostident/internal/codec"
	"github.com/wolfeidau/hostident/internal/identity"
	"github.com/wolfeidau/hostident/internal/logger"
	"github.com/wolfeidau/hostident/internal/pki"
	"github.com/wolfeidau/hostident/internal/telemetry"
)

// ErrPersistence wraps any failure reported by the Persister.
var ErrPersistence = errors.New("persistence failed")

// Persister stores a provisioned identity. It must write all values or none.
type Persister interface {
	Persist(ctx context.Context, id *identity.Identity) error
}

// Provisioner runs the provisioning pipeline. A Provisioner is not safe for concurrent
// runs against the same Persister unless the Persister serialises writes.
type Provisioner struct {
	cfg       Config
	persister Persister

	now     func() time.Time
	random  io.Reader
	serials pki.SerialSource
	logger  zerolog.Logger
	observe func(State)
	tracer  trace.Tracer
	metrics *telemetry.Metrics
}

// New returns a Provisioner writing to persister.
func New(cfg Config, persister Persister, opts ...Option) (*Provisioner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provisioning config: %w", err)
	}
	if persister == nil {
		return nil, errors.New("persister is required")
	}

	p := &Provisioner{
		cfg:       cfg,
		persister: persister,
		now:       time.Now,
		serials:   pki.RandomSerials{},
		logger:    zerolog.Nop(),
		observe:   func(State) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	if p.metrics == nil {
		p.metrics = telemetry.GetMetrics()
	}

	return p, nil
}

// Result summarises a completed run. It holds no private material.
type Result struct {
	HostID   string
	RootCert *x509.Certificate
	HostCert *x509.Certificate
}

// Provision generates and encodes a new identity without persisting it.
// An empty existingHostID means unset; a new id is generated when configured to.
func (p *Provisioner) Provision(ctx context.Context, existingHostID string) (*identity.Identity, error) {
	r, err := p.provision(ctx, existingHostID)
	if err != nil {
		return nil, err
	}
	return r.id, nil
}

// Persist hands a complete identity to the Persister exactly once.
func (p *Provisioner) Persist(ctx context.Context, id *identity.Identity) error {
	return p.step(ctx, StatePersisted, func(ctx context.Context) error {
		if err := id.Complete(); err != nil {
			return err
		}

		started := time.Now()
		err := p.persister.Persist(ctx, id)
		p.metrics.PersistDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil
	})
}

// Run provisions and persists an identity, then scrubs the encoded blobs.
func (p *Provisioner) Run(ctx context.Context, existingHostID string) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "provision.Run")
	defer span.End()

	r, err := p.provision(ctx, existingHostID)
	if err != nil {
		return nil, err
	}
	defer r.id.Wipe()

	if err := p.Persist(ctx, r.id); err != nil {
		return nil, err
	}

	p.observe(StateDone)

	p.logger.Info().
		Str("host_id", r.id.HostID).
		Str("root_serial", r.root.SerialNumber().Text(16)).
		Str("host_serial", r.host.SerialNumber().Text(16)).
		Time("not_after", r.host.NotAfter()).
		Msg("identity provisioned")

	return &Result{
		HostID:   r.id.HostID,
		RootCert: r.root.X509(),
		HostCert: r.host.X509(),
	}, nil
}

// run carries the intermediate values of one provisioning run.
type run struct {
	hostID string

	rootKey *pki.KeyPair
	hostKey *pki.KeyPair

	rootTemplate *pki.Certificate
	hostTemplate *pki.Certificate
	root         *pki.Certificate
	host         *pki.Certificate
	signer       pki.CASigner

	rootKeyPEM  []byte
	hostKeyPEM  []byte
	rootCertPEM []byte
	hostCertPEM []byte

	id *identity.Identity
}

// release scrubs any private key material still held by the run.
func (r *run) release() {
	r.rootKey.Destroy()
	r.hostKey.Destroy()
	clear(r.rootKeyPEM)
	clear(r.hostKeyPEM)
	r.rootKeyPEM, r.hostKeyPEM = nil, nil
}

func (p *Provisioner) provision(ctx context.Context, existingHostID string) (*run, error) {
	ctx, span := p.tracer.Start(ctx, "provision.Provision")
	defer span.End()

	p.metrics.ProvisionRunsTotal.Add(ctx, 1)

	r := &run{hostID: existingHostID}
	if r.hostID == "" && p.cfg.GenerateHostID {
		r.hostID = NewHostID()
	}
	defer r.release()

	p.observe(StateStart)

	builder := &pki.Builder{
		Now:      p.now,
		Validity: p.cfg.Validity,
		Serials:  p.serials,
	}

	steps := []struct {
		state State
		fn    func(ctx context.Context) error
	}{
		{StateRootKeyGenerated, func(ctx context.Context) (err error) {
			r.rootKey, err = p.generateKey(ctx)
			return err
		}},
		{StateRootCertBuilt, func(context.Context) (err error) {
			r.rootTemplate, err = builder.Build(r.rootKey.Public(), pki.CertificateRequest{
				Subject:    p.cfg.RootSubject,
				IsCA:       true,
				MaxPathLen: 1,
			})
			return err
		}},
		{StateRootCertSigned, func(context.Context) (err error) {
			if r.root, err = pki.Sign(r.rootTemplate, r.rootTemplate, r.rootKey); err != nil {
				return err
			}
			r.signer, err = pki.NewLocalSigner(r.root, r.rootKey)
			return err
		}},
		{StateHostKeyGenerated, func(ctx context.Context) (err error) {
			r.hostKey, err = p.generateKey(ctx)
			return err
		}},
		{StateHostCertBuilt, func(context.Context) (err error) {
			req, err := p.hostRequest(r.hostID)
			if err != nil {
				return err
			}
			r.hostTemplate, err = builder.Build(r.hostKey.Public(), req)
			return err
		}},
		{StateHostCertSigned, func(context.Context) (err error) {
			r.host, err = r.signer.Issue(r.hostTemplate)
			return err
		}},
		{StateExported, func(context.Context) (err error) {
			if r.rootKeyPEM, err = pki.ExportPrivateKey(r.rootKey); err != nil {
				return err
			}
			if r.hostKeyPEM, err = pki.ExportPrivateKey(r.hostKey); err != nil {
				return err
			}
			if r.rootCertPEM, err = pki.ExportCertificate(r.root); err != nil {
				return err
			}
			if r.hostCertPEM, err = pki.ExportCertificate(r.host); err != nil {
				return err
			}
			// keys are no longer needed once exported
			r.rootKey.Destroy()
			r.hostKey.Destroy()
			return nil
		}},
		{StateEncoded, func(context.Context) error {
			r.id = &identity.Identity{
				HostID:   r.hostID,
				RootKey:  codec.EncodeBytes(r.rootKeyPEM),
				HostKey:  codec.EncodeBytes(r.hostKeyPEM),
				RootCert: codec.EncodeBytes(r.rootCertPEM),
				HostCert: codec.EncodeBytes(r.hostCertPEM),
			}
			return nil
		}},
	}

	for _, s := range steps {
		if err := p.step(ctx, s.state, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	return r, nil
}

// step runs fn inside a span and moves the run to state when it succeeds.
func (p *Provisioner) step(ctx context.Context, state State, fn func(ctx context.Context) error) error {
	started := time.Now()

	ctx, span := p.tracer.Start(ctx, "provision."+state.String())
	defer span.End()

	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	logger.Stage(p.logger, state.String(), started, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ProvisionErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", state.String())))
		return &StageError{Stage: state, Err: err}
	}

	p.observe(state)
	return nil
}

func (p *Provisioner) generateKey(ctx context.Context) (*pki.KeyPair, error) {
	started := time.Now()
	defer func() {
		p.metrics.KeygenDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
			metric.WithAttributes(attribute.Int("bits", p.cfg.KeyBits)))
	}()

	return pki.GenerateKeyPair(p.random, p.cfg.KeyBits)
}

func (p *Provisioner) hostRequest(hostID string) (pki.CertificateRequest, error) {
	req := pki.CertificateRequest{
		Subject: p.cfg.HostSubject,
		IsCA:    p.cfg.HostIsCA,
	}
	if hostID == "" {
		return req, nil
	}

	ext, err := pki.HostIDExtension(hostID)
	if err != nil {
		return req, fmt.Errorf("%w: %w", pki.ErrSigning, err)
	}

	req.Subject = cloneName(p.cfg.HostSubject)
	req.Subject.CommonName = hostID
	req.ExtraExtensions = []pkix.Extension{ext}

	return req, nil
}

func cloneName(n pkix.Name) pkix.Name {
	n.Country = append([]string(nil), n.Country...)
	n.Organization = append([]string(nil), n.Organization...)
	n.OrganizationalUnit = append([]string(nil), n.OrganizationalUnit...)
	n.Locality = append([]string(nil), n.Locality...)
	n.Province = append([]string(nil), n.Province...)
	return n
}
