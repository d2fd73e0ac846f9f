package commands

import (
	"context"
	"fmt"
)

// ShowCmd prints the metadata of the stored certificates.
type ShowCmd struct {
	StoreFlags `embed:""`
}

func (cmd *ShowCmd) Run(ctx context.Context, globals *Globals) error {
	globals.logger()

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

	return printYAML(globals.out(), newIdentitySummary(s.Location(), material))
}
