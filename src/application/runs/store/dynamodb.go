package store

import (
	"context"
	"errors"

	"stem-unmixer/src/application/runs/entity"
	"stem-unmixer/src/lib/cerr"
	"stem-unmixer/src/lib/env"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
)

const (
	DefaultTableName = "UnmixRuns"
	idField          = "id"

	expectedVersionValueName = ":expectedVersion"
	maxUpdateAttempts        = 10
)

var ErrRunNotFound = errors.New("run not found")

var _ entity.RunStore = DynamoDBRunStore{}

func NewDynamoDBRunStore(environment env.Environment, region string, tableName string) DynamoDBRunStore {
	dbSession := session.Must(session.NewSession())

	config := aws.NewConfig().WithRegion(region).WithCredentials(credentials.NewEnvCredentials())

	if environment == env.Development {
		config = config.WithEndpoint("http://localhost:8000")
	}

	return DynamoDBRunStore{
		dynamoDBClient: dynamodb.New(dbSession, config),
		tableName:      tableName,
	}
}

type DynamoDBRunStore struct {
	dynamoDBClient *dynamodb.DynamoDB
	tableName      string
}

func (d DynamoDBRunStore) GetRun(ctx context.Context, runID string) (entity.Run, error) {
	output, err := d.dynamoDBClient.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		ConsistentRead: aws.Bool(true),
		Key:            makeKey(runID),
		TableName:      aws.String(d.tableName),
	})
	if err != nil {
		return entity.Run{}, cerr.Field("run_id", runID).Wrap(err).Error("Failed to get run from DynamoDB")
	}

	if output.Item == nil {
		return entity.Run{}, cerr.Field("run_id", runID).Wrap(ErrRunNotFound).Error("No run with this ID")
	}

	run := entity.Run{}
	if err := dynamodbattribute.UnmarshalMap(output.Item, &run); err != nil {
		return entity.Run{}, cerr.Field("run_id", runID).Wrap(err).Error("Failed to unmarshal run item")
	}

	return run, nil
}

func (d DynamoDBRunStore) SetRun(ctx context.Context, run entity.Run) error {
	item, err := dynamodbattribute.MarshalMap(run)
	if err != nil {
		return cerr.Field("run_id", run.ID).Wrap(err).Error("Failed to marshal run item")
	}

	_, err = d.dynamoDBClient.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      item,
		TableName: aws.String(d.tableName),
	})
	if err != nil {
		return cerr.Field("run_id", run.ID).Wrap(err).Error("Failed to put run into DynamoDB")
	}

	return nil
}

// UpdateRun reads, updates and writes back a run. The write is conditional
// on the version it read, and is retried from the read when another writer
// got there first.
func (d DynamoDBRunStore) UpdateRun(ctx context.Context, runID string, updater entity.RunUpdater) error {
	var err error
	for i := 0; i < maxUpdateAttempts; i++ {
		err = d.updateRun(ctx, runID, updater)
		if !isConditionFailure(err) {
			return err
		}
	}

	return cerr.Field("run_id", runID).Wrap(err).Error("Gave up updating run after concurrent writes")
}

func (d DynamoDBRunStore) updateRun(ctx context.Context, runID string, updater entity.RunUpdater) error {
	run, err := d.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	expectedVersion := run.Version

	run, err = updater(run)
	if err != nil {
		return cerr.Field("run_id", runID).Wrap(err).Error("Failed to apply run update")
	}

	run.ID = runID
	run.Version = expectedVersion + 1

	item, err := dynamodbattribute.MarshalMap(run)
	if err != nil {
		return cerr.Field("run_id", runID).Wrap(err).Error("Failed to marshal run item")
	}

	expectedVersionValue, err := dynamodbattribute.Marshal(expectedVersion)
	if err != nil {
		return cerr.Field("run_id", runID).Wrap(err).Error("Failed to marshal run version")
	}

	_, err = d.dynamoDBClient.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		ConditionExpression: aws.String("version = " + expectedVersionValueName),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			expectedVersionValueName: expectedVersionValue,
		},
		Item:      item,
		TableName: aws.String(d.tableName),
	})
	if err != nil {
		if isConditionFailure(err) {
			return err
		}
		return cerr.Field("run_id", runID).Wrap(err).Error("Failed to update run in DynamoDB")
	}

	return nil
}

func isConditionFailure(err error) bool {
	var awsErr awserr.Error
	return errors.As(err, &awsErr) && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func makeKey(runID string) map[string]*dynamodb.AttributeValue {
	attributeValue := dynamodb.AttributeValue{}
	attributeValue.SetS(runID)
	return map[string]*dynamodb.AttributeValue{
		idField: &attributeValue,
	}
}
