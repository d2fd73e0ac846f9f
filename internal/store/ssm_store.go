package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/hostident/internal/identity"
	"github.com/wolfeidau/hostident/internal/telemetry"
)

// Parameter names under the store prefix.
const (
	paramHostID   = "host-id"
	paramRootKey  = "root-key"
	paramHostKey  = "host-key"
	paramRootCert = "root-cert"
	paramHostCert = "host-cert"
)

// SSMAPI is the subset of the SSM client used by SSMStore.
type SSMAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
	DeleteParameters(ctx context.Context, params *ssm.DeleteParametersInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParametersOutput, error)
}

// SSMStoreConfig configures an SSMStore.
type SSMStoreConfig struct {
	// Prefix is the parameter path, e.g. /hostident/prod
	Prefix string

	// KMSKeyID encrypts the private key parameters. Empty uses the account default key.
	KMSKeyID string

	// Overwrite replaces an existing identity instead of returning ErrIdentityExists.
	Overwrite bool

	// MaxRetryElapsed bounds retries of throttled writes.
	// Default: 30 seconds
	MaxRetryElapsed time.Duration
}

// Validate checks that the configuration is valid.
func (c *SSMStoreConfig) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("parameter prefix is required")
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("parameter prefix must start with /, got %q", c.Prefix)
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *SSMStoreConfig) ApplyDefaults() {
	c.Prefix = strings.TrimSuffix(c.Prefix, "/")
	if c.MaxRetryElapsed == 0 {
		c.MaxRetryElapsed = 30 * time.Second
	}
}

// SSMStore keeps the identity in AWS SSM Parameter Store. Private keys are stored as
// SecureString parameters.
type SSMStore struct {
	client     SSMAPI
	cfg        SSMStoreConfig
	newBackOff func() backoff.BackOff
}

// NewSSMStore creates a new SSM parameter store.
func NewSSMStore(client SSMAPI, cfg SSMStoreConfig) (*SSMStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssm store config: %w", err)
	}

	return &SSMStore{
		client:     client,
		cfg:        cfg,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}, nil
}

// Location returns the parameter prefix.
func (s *SSMStore) Location() string {
	return "ssm:" + s.cfg.Prefix
}

type ssmParam struct {
	name   string
	value  string
	secure bool
}

// Persist writes each value as its own parameter. If any write fails the parameters
// written by this call are deleted again.
func (s *SSMStore) Persist(ctx context.Context, id *identity.Identity) error {
	if err := id.Complete(); err != nil {
		return err
	}

	params := []ssmParam{
		{name: s.name(paramRootKey), value: id.RootKey.String(), secure: true},
		{name: s.name(paramHostKey), value: id.HostKey.String(), secure: true},
		{name: s.name(paramRootCert), value: id.RootCert.String()},
		{name: s.name(paramHostCert), value: id.HostCert.String()},
	}
	if id.HasHostID() {
		params = append([]ssmParam{{name: s.name(paramHostID), value: id.HostID}}, params...)
	}

	var written []string
	for _, p := range params {
		if err := s.put(ctx, p); err != nil {
			if s.cfg.Overwrite && len(written) > 0 {
				// earlier values were already replaced, so nothing consistent remains
				written = s.names()
			}
			s.rollback(ctx, written)
			return err
		}
		written = append(written, p.name)
	}

	// A host id left over from a previous identity would no longer match.
	if !id.HasHostID() && s.cfg.Overwrite {
		if err := s.delete(ctx, []string{s.name(paramHostID)}); err != nil {
			log.Warn().Err(err).Str("prefix", s.cfg.Prefix).Msg("failed to remove stale host id")
		}
	}

	log.Info().
		Str("prefix", s.cfg.Prefix).
		Int("parameters", len(written)).
		Msg("identity saved to ssm")

	return nil
}

// Load reads all parameters in one call.
func (s *SSMStore) Load(ctx context.Context) (*identity.Identity, error) {
	names := s.names()

	out, err := s.client.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapAWSError(err, "failed to get identity parameters")
	}

	values := make(map[string]string, len(out.Parameters))
	for _, p := range out.Parameters {
		values[aws.ToString(p.Name)] = aws.ToString(p.Value)
	}

	var missing []string
	for _, n := range names[1:] {
		if values[n] == "" {
			missing = append(missing, path.Base(n))
		}
	}
	if len(missing) == len(names)-1 {
		return nil, ErrIdentityNotFound
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing parameters %s", identity.ErrIncomplete, strings.Join(missing, ", "))
	}

	return identity.New(
		values[s.name(paramHostID)],
		values[s.name(paramRootKey)],
		values[s.name(paramHostKey)],
		values[s.name(paramRootCert)],
		values[s.name(paramHostCert)],
	), nil
}

// Delete removes every identity parameter.
func (s *SSMStore) Delete(ctx context.Context) error {
	return s.delete(ctx, s.names())
}

func (s *SSMStore) put(ctx context.Context, p ssmParam) error {
	input := &ssm.PutParameterInput{
		Name:      aws.String(p.name),
		Value:     aws.String(p.value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(s.cfg.Overwrite),
	}
	if p.secure {
		input.Type = types.ParameterTypeSecureString
		if s.cfg.KMSKeyID != "" {
			input.KeyId = aws.String(s.cfg.KMSKeyID)
		}
	}

	_, err := backoff.Retry(ctx, func() (*ssm.PutParameterOutput, error) {
		out, err := s.client.PutParameter(ctx, input)
		if err == nil {
			return out, nil
		}

		var exists *types.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return nil, backoff.Permanent(fmt.Errorf("%w: parameter %s", ErrIdentityExists, p.name))
		}

		err = wrapAWSError(err, "failed to put parameter "+p.name)
		if errors.Is(err, ErrThrottled) {
			telemetry.GetMetrics().StoreRetriesTotal.Add(ctx, 1)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxElapsedTime(s.cfg.MaxRetryElapsed),
	)

	return err
}

// rollback deletes parameters written during a failed Persist.
func (s *SSMStore) rollback(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}

	telemetry.GetMetrics().StoreRollbacks.Add(ctx, 1)

	// The write may have failed because ctx was cancelled
	ctx = context.WithoutCancel(ctx)
	if err := s.delete(ctx, names); err != nil {
		log.Error().Err(err).Strs("parameters", names).Msg("failed to roll back partial identity")
		return
	}

	log.Warn().Strs("parameters", names).Msg("rolled back partial identity")
}

func (s *SSMStore) delete(ctx context.Context, names []string) error {
	_, err := s.client.DeleteParameters(ctx, &ssm.DeleteParametersInput{
		Names: names,
	})
	if err != nil {
		return wrapAWSError(err, "failed to delete parameters")
	}
	return nil
}

// names lists every parameter, host id first.
func (s *SSMStore) names() []string {
	return []string{
		s.name(paramHostID),
		s.name(paramRootKey),
		s.name(paramHostKey),
		s.name(paramRootCert),
		s.name(paramHostCert),
	}
}

func (s *SSMStore) name(param string) string {
	return s.cfg.Prefix + "/" + param
}
