package commands

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/hostident/internal/provision"
	"github.com/wolfeidau/hostident/internal/store"
)

// ProvisionCmd creates a new host identity and writes it to the selected store.
type ProvisionCmd struct {
	StoreFlags `embed:""`

	KeyBits        int           `help:"RSA key size for both keys (2048, 3072 or 4096)" default:"2048"`
	Validity       time.Duration `help:"validity period of both certificates" default:"87600h"`
	HostCA         bool          `name:"host-ca" help:"mark the host certificate as a certificate authority" default:"false"`
	HostID         string        `help:"host identifier embedded in the host certificate" env:"HOSTIDENT_HOST_ID"`
	GenerateHostID bool          `help:"generate a host identifier when none is supplied or stored" default:"true" negatable:""`
	Organization   string        `help:"organization for both certificate subjects" default:""`
	RootCN         string        `name:"root-cn" help:"root CA common name" default:"${root_cn}"`
	HostCN         string        `name:"host-cn" help:"host certificate common name, replaced by the host identifier when set" default:"${host_cn}"`
	Force          bool          `help:"replace an existing identity" default:"false"`
}

// Run executes the provision command
func (cmd *ProvisionCmd) Run(ctx context.Context, globals *Globals) error {
	log := globals.logger()

	s, closeStore, err := cmd.open(ctx, cmd.Force)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	hostID, err := cmd.existingHostID(ctx, log, s)
	if err != nil {
		return err
	}

	p, err := provision.New(cmd.config(), s, provision.WithLogger(log))
	if err != nil {
		return err
	}

	log.Info().
		Str("store", s.Location()).
		Int("key_bits", cmd.KeyBits).
		Dur("validity", cmd.Validity).
		Msg("Provisioning host identity")

	result, err := p.Run(ctx, hostID)
	if err != nil {
		return fmt.Errorf("failed to provision identity: %w", err)
	}

	return printYAML(globals.out(), &identitySummary{
		Location: s.Location(),
		HostID:   result.HostID,
		Root:     store.NewCertMetadataFromX509(result.RootCert),
		Host:     store.NewCertMetadataFromX509(result.HostCert),
	})
}

// existingHostID returns the host id to provision with. A stored identity is only
// replaced with --force, and its host id is kept unless --host-id overrides it.
func (cmd *ProvisionCmd) existingHostID(ctx context.Context, log zerolog.Logger, s store.Loader) (string, error) {
	existing, err := s.Load(ctx)
	switch {
	case errors.Is(err, store.ErrIdentityNotFound):
		return cmd.HostID, nil
	case err != nil && !cmd.Force:
		return "", fmt.Errorf("failed to read existing identity: %w", err)
	case err != nil:
		log.Warn().Err(err).Msg("Existing identity is unreadable, replacing it")
		return cmd.HostID, nil
	}
	defer existing.Wipe()

	if !cmd.Force {
		return "", fmt.Errorf("%w: use --force to replace it", store.ErrIdentityExists)
	}
	if cmd.HostID != "" {
		return cmd.HostID, nil
	}
	return existing.HostID, nil
}

func (cmd *ProvisionCmd) config() provision.Config {
	var org []string
	if cmd.Organization != "" {
		org = []string{cmd.Organization}
	}

	return provision.Config{
		KeyBits:        cmd.KeyBits,
		Validity:       cmd.Validity,
		HostIsCA:       cmd.HostCA,
		RootSubject:    pkix.Name{CommonName: cmd.RootCN, Organization: org},
		HostSubject:    pkix.Name{CommonName: cmd.HostCN, Organization: org},
		GenerateHostID: cmd.GenerateHostID,
	}
}
