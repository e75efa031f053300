// Package ddbcatalog implements image.Catalog on DynamoDB.
//
// Conditional writes give the compare-and-swap semantics that plain object
// stores lack, so several writers can snapshot the same volume safely.
//
// Table schema:
//   - Partition key: volume (string)
//   - Sort key: version (number), monotonically increasing per volume
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name clusterfs-snapshots \
//	  --attribute-definitions AttributeName=volume,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=volume,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package ddbcatalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/clusterfs/image"
)

const (
	attrVolume    = "volume"
	attrVersion   = "version"
	attrImage     = "image"
	attrCreatedAt = "created_at"
)

// DDBClient is the subset of the DynamoDB API used by Catalog.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Catalog implements image.Catalog.
type Catalog struct {
	client DDBClient
	table  string
}

var _ image.Catalog = (*Catalog)(nil)

// New creates a Catalog from the default AWS configuration chain.
func New(ctx context.Context, table string, optFns ...func(*config.LoadOptions) error) (*Catalog, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return NewCatalog(dynamodb.NewFromConfig(cfg), table), nil
}

// NewCatalog creates a Catalog on table.
func NewCatalog(client DDBClient, table string) *Catalog {
	return &Catalog{client: client, table: table}
}

// Latest implements image.Catalog.
func (c *Catalog) Latest(ctx context.Context, volume string) (image.Version, error) {
	resp, err := c.client.Query(ctx, c.query(volume, false, 1))
	if err != nil {
		return image.Version{}, fmt.Errorf("query %s: %w", c.table, err)
	}
	if len(resp.Items) == 0 {
		return image.Version{}, fmt.Errorf("%w: %s", image.ErrNoSnapshot, volume)
	}
	return decode(resp.Items[0])
}

// Commit implements image.Catalog with a conditional put.
func (c *Catalog) Commit(ctx context.Context, v image.Version) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			attrVolume:    &types.AttributeValueMemberS{Value: v.Volume},
			attrVersion:   &types.AttributeValueMemberN{Value: strconv.FormatInt(v.Version, 10)},
			attrImage:     &types.AttributeValueMemberS{Value: v.Image},
			attrCreatedAt: &types.AttributeValueMemberS{Value: v.CreatedAt.UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s version %d", image.ErrConcurrentModification, v.Volume, v.Version)
		}
		return fmt.Errorf("commit to %s: %w", c.table, err)
	}
	return nil
}

// History returns every version of volume, oldest first.
func (c *Catalog) History(ctx context.Context, volume string) ([]image.Version, error) {
	var out []image.Version
	p := dynamodb.NewQueryPaginator(c.client, c.query(volume, true, 0))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", c.table, err)
		}
		for _, item := range page.Items {
			v, err := decode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// Forget removes one version from the catalog. The image itself is kept.
func (c *Catalog) Forget(ctx context.Context, volume string, version int64) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			attrVolume:  &types.AttributeValueMemberS{Value: volume},
			attrVersion: &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		},
	})
	return err
}

func (c *Catalog) query(volume string, ascending bool, limit int32) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("volume = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: volume},
		},
		ScanIndexForward: aws.Bool(ascending),
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	return in
}

func decode(item map[string]types.AttributeValue) (image.Version, error) {
	volume, ok := item[attrVolume].(*types.AttributeValueMemberS)
	if !ok {
		return image.Version{}, errors.New("ddbcatalog: invalid volume attribute")
	}
	version, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return image.Version{}, errors.New("ddbcatalog: invalid version attribute")
	}
	img, ok := item[attrImage].(*types.AttributeValueMemberS)
	if !ok {
		return image.Version{}, errors.New("ddbcatalog: invalid image attribute")
	}

	n, err := strconv.ParseInt(version.Value, 10, 64)
	if err != nil {
		return image.Version{}, fmt.Errorf("ddbcatalog: parse version: %w", err)
	}

	v := image.Version{Volume: volume.Value, Version: n, Image: img.Value}
	if ts, ok := item[attrCreatedAt].(*types.AttributeValueMemberS); ok {
		if v.CreatedAt, err = time.Parse(time.RFC3339Nano, ts.Value); err != nil {
			return image.Version{}, fmt.Errorf("ddbcatalog: parse created_at: %w", err)
		}
	}
	return v, nil
}
