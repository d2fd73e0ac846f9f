package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/hostident/internal/bootstrap"
	"github.com/wolfeidau/hostident/internal/store"
)

// DeleteCmd removes the stored identity, and optionally the DynamoDB table holding it.
type DeleteCmd struct {
	StoreFlags `embed:""`

	Confirm   bool `help:"confirm removal of the stored identity, including both private keys" default:"false"`
	DropTable bool `help:"also delete the DynamoDB identity table" default:"false"`
}

func (cmd *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	log := globals.logger()

	if !cmd.Confirm {
		return errors.New("refusing to delete the identity without --confirm")
	}
	if cmd.DropTable && cmd.Store != "dynamodb" {
		return fmt.Errorf("--drop-table only applies to the dynamodb store, got %s", cmd.Store)
	}

	s, closeStore, err := cmd.open(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	result := "deleted"
	err = s.Delete(ctx)
	switch {
	case errors.Is(err, store.ErrIdentityNotFound):
		result = "nothing to delete at"
		log.Info().Str("store", s.Location()).Msg("No identity to delete")
	case err != nil:
		return fmt.Errorf("failed to delete identity from %s: %w", s.Location(), err)
	default:
		log.Info().Str("store", s.Location()).Msg("Identity deleted")
	}

	if cmd.DropTable {
		client, err := cmd.dynamoDBClient(ctx)
		if err != nil {
			return err
		}
		if err := bootstrap.DeleteIdentityTable(ctx, client, cmd.dynamoDBTable()); err != nil {
			return err
		}
		log.Info().Str("table", cmd.dynamoDBTable()).Msg("Identity table deleted")
	}

	_, err = fmt.Fprintf(globals.out(), "%s %s\n", result, s.Location())
	return err
}
