package commands

import (
	"context"
	"fmt"
	"time"
)

// VerifyCmd checks the stored identity: the host certificate chains to the root, each
// key matches its certificate and the host pair loads as a TLS certificate.
type VerifyCmd struct {
	StoreFlags `embed:""`

	At time.Time `help:"verify validity at this time instead of now (RFC3339)" format:"2006-01-02T15:04:05Z07:00"`

	now func() time.Time
}

func (cmd *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	log := globals.logger()

	s, closeStore, err := cmd.open(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	id, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identity from %s: %w", s.Location(), err)
	}
	defer id.Wipe()

	material, err := id.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode identity: %w", err)
	}
	defer material.Destroy()

	at := cmd.At
	if at.IsZero() {
		at = cmd.clock()()
	}

	if err := material.Verify(at); err != nil {
		return fmt.Errorf("identity at %s is invalid: %w", s.Location(), err)
	}
	if _, err := material.TLSConfig(); err != nil {
		return fmt.Errorf("identity at %s cannot be used for TLS: %w", s.Location(), err)
	}

	summary := newIdentitySummary(s.Location(), material)

	log.Info().
		Str("store", s.Location()).
		Str("host_id", summary.HostID).
		Str("root_fingerprint", summary.Root.Fingerprint).
		Str("host_fingerprint", summary.Host.Fingerprint).
		Time("expires_at", summary.Host.ExpiresAt).
		Msg("Identity verified")

	_, err = fmt.Fprintf(globals.out(), "ok %s (expires %s)\n", s.Location(), summary.Host.ExpiresAt.Format(time.RFC3339))
	return err
}

func (cmd *VerifyCmd) clock() func() time.Time {
	if cmd.now == nil {
		return time.Now
	}
	return cmd.now
}
