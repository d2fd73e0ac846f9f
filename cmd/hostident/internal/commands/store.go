package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/wolfeidau/hostident/internal/bootstrap"
	"github.com/wolfeidau/hostident/internal/store"
	"github.com/wolfeidau/hostident/internal/store/postgres"
)

// StoreFlags selects and configures the identity store.
type StoreFlags struct {
	Store     string `help:"identity store (file, ssm, dynamodb, postgres, memory)" default:"file" enum:"file,ssm,dynamodb,postgres,memory" env:"HOSTIDENT_STORE"`
	ConfigDir string `help:"directory holding identity.yaml for the file store (default ~/.config/hostident)" type:"path" env:"HOSTIDENT_CONFIG_DIR"`

	AWS      AWSFlags      `embed:"" prefix:"aws-"`
	SSM      SSMFlags      `embed:"" prefix:"ssm-"`
	DynamoDB DynamoDBFlags `embed:"" prefix:"dynamodb-"`
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

type AWSFlags struct {
	Region   string `help:"AWS region" default:"us-east-1" env:"AWS_REGION"`
	Endpoint string `help:"AWS endpoint override (for LocalStack)" default:"" env:"AWS_ENDPOINT"`
}

type SSMFlags struct {
	Prefix   string `help:"SSM parameter path for the identity" default:"/hostident" env:"HOSTIDENT_SSM_PREFIX"`
	KMSKeyID string `name:"kms-key-id" help:"KMS key used to encrypt the private key parameters" env:"HOSTIDENT_SSM_KMS_KEY_ID"`
}

type DynamoDBFlags struct {
	Table       string `help:"DynamoDB table name (default <environment>_host_identities)" env:"HOSTIDENT_DYNAMODB_TABLE"`
	Name        string `help:"item name of the identity" default:"default" env:"HOSTIDENT_DYNAMODB_NAME"`
	Environment string `help:"environment used to derive the table name" default:"dev" env:"HOSTIDENT_ENVIRONMENT"`
	CreateTable bool   `help:"create the table if it does not exist" default:"false"`
	Clean       bool   `help:"recreate the table when creating it, deleting every stored identity" default:"false"`
}

type PostgresFlags struct {
	URL  string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	Name string `help:"row name of the identity" default:"default" env:"HOSTIDENT_POSTGRES_NAME"`
}

// Validate checks that the selected store has what it needs.
func (f *StoreFlags) Validate() error {
	switch f.Store {
	case "ssm":
		if f.SSM.Prefix == "" {
			return errors.New("SSM prefix is required (--ssm-prefix or HOSTIDENT_SSM_PREFIX)")
		}
	case "postgres":
		if f.Postgres.URL == "" {
			return errors.New("PostgreSQL connection string is required (--postgres-url or POSTGRES_CONNECTION_STRING)")
		}
	}
	return nil
}

// open creates the selected store. The returned close function releases any connections.
func (f *StoreFlags) open(ctx context.Context, overwrite bool) (store.Store, func(), error) {
	noop := func() {}

	if err := f.Validate(); err != nil {
		return nil, noop, err
	}

	switch f.Store {
	case "file":
		s, err := store.NewFileStore(store.FileStoreConfig{Dir: f.ConfigDir, Overwrite: overwrite})
		return s, noop, err
	case "memory":
		return store.NewMemoryStore(overwrite), noop, nil
	case "ssm":
		awsCfg, err := f.AWS.load(ctx)
		if err != nil {
			return nil, noop, err
		}
		client := ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
			if f.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(f.AWS.Endpoint)
			}
		})
		s, err := store.NewSSMStore(client, store.SSMStoreConfig{
			Prefix:    f.SSM.Prefix,
			KMSKeyID:  f.SSM.KMSKeyID,
			Overwrite: overwrite,
		})
		return s, noop, err
	case "dynamodb":
		s, err := f.openDynamoDB(ctx, overwrite)
		return s, noop, err
	case "postgres":
		s, err := postgres.Open(ctx, &postgres.PoolConfig{ConnString: f.Postgres.URL}, postgres.StoreConfig{
			Name:      f.Postgres.Name,
			Overwrite: overwrite,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store type: %s", f.Store)
	}
}

func (f *StoreFlags) openDynamoDB(ctx context.Context, overwrite bool) (store.Store, error) {
	client, err := f.dynamoDBClient(ctx)
	if err != nil {
		return nil, err
	}

	tableName := f.dynamoDBTable()
	if f.DynamoDB.CreateTable {
		resources, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
			DynamoClient:   client,
			Environment:    f.DynamoDB.Environment,
			TableName:      tableName,
			CleanResources: f.DynamoDB.Clean,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap dynamodb table: %w", err)
		}
		tableName = resources.IdentityTable
	}

	return store.NewDynamoDBStore(client, store.DynamoDBStoreConfig{
		TableName: tableName,
		Name:      f.DynamoDB.Name,
		Overwrite: overwrite,
	})
}

func (f *StoreFlags) dynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	awsCfg, err := f.AWS.load(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if f.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.AWS.Endpoint)
		}
	}), nil
}

func (f *StoreFlags) dynamoDBTable() string {
	if f.DynamoDB.Table != "" {
		return f.DynamoDB.Table
	}
	return bootstrap.IdentityTableName(f.DynamoDB.Environment)
}

// load reads the shared AWS configuration. With an endpoint override LocalStack's
// static test credentials are used.
func (f *AWSFlags) load(ctx context.Context) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(f.Region),
	}
	if f.Endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
