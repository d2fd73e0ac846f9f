package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/hostident/internal/identity"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// identityItem is the DynamoDB representation of an identity
type identityItem struct {
	Name      string    `dynamodbav:"name"`
	HostID    string    `dynamodbav:"host_id,omitempty"`
	RootKey   string    `dynamodbav:"root_key"`
	HostKey   string    `dynamodbav:"host_key"`
	RootCert  string    `dynamodbav:"root_cert"`
	HostCert  string    `dynamodbav:"host_cert"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// DynamoDBStoreConfig configures a DynamoDBStore.
type DynamoDBStoreConfig struct {
	TableName string

	// Name is the item key. Default: "default"
	Name string

	// Overwrite replaces an existing identity instead of returning ErrIdentityExists.
	Overwrite bool
}

// Validate checks that the configuration is valid.
func (c *DynamoDBStoreConfig) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *DynamoDBStoreConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
}

// DynamoDBStore keeps the identity as a single item, so each write is atomic.
type DynamoDBStore struct {
	client DynamoDBAPI
	cfg    DynamoDBStoreConfig
	now    func() time.Time
}

// NewDynamoDBStore creates a new DynamoDB identity store
func NewDynamoDBStore(client DynamoDBAPI, cfg DynamoDBStoreConfig) (*DynamoDBStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dynamodb store config: %w", err)
	}

	return &DynamoDBStore{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Location returns the table and item name.
func (s *DynamoDBStore) Location() string {
	return fmt.Sprintf("dynamodb:%s/%s", s.cfg.TableName, s.cfg.Name)
}

// Persist writes the identity with a single PutItem.
func (s *DynamoDBStore) Persist(ctx context.Context, id *identity.Identity) error {
	if err := id.Complete(); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(&identityItem{
		Name:      s.cfg.Name,
		HostID:    id.HostID,
		RootKey:   id.RootKey.String(),
		HostKey:   id.HostKey.String(),
		RootCert:  id.RootCert.String(),
		HostCert:  id.HostCert.String(),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.cfg.TableName),
		Item:      item,
	}

	if !s.cfg.Overwrite {
		// Use ConditionExpression to prevent replacing an existing identity
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name("name"))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build expression: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrIdentityExists
		}
		return wrapAWSError(err, "failed to save identity")
	}

	log.Info().
		Str("table", s.cfg.TableName).
		Str("name", s.cfg.Name).
		Msg("identity saved to dynamodb")

	return nil
}

// Load reads the identity item with a consistent read.
func (s *DynamoDBStore) Load(ctx context.Context) (*identity.Identity, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.cfg.TableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapAWSError(err, "failed to get identity")
	}

	if result.Item == nil {
		return nil, ErrIdentityNotFound
	}

	var item identityItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}

	return identity.New(item.HostID, item.RootKey, item.HostKey, item.RootCert, item.HostCert), nil
}

// Delete removes the identity item.
func (s *DynamoDBStore) Delete(ctx context.Context) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.cfg.TableName),
		Key:       s.key(),
	})
	if err != nil {
		return wrapAWSError(err, "failed to delete identity")
	}
	return nil
}

func (s *DynamoDBStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: s.cfg.Name},
	}
}
