package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"go.uber.org/zap"
)

const (
	attrExpireOn = "expire_on"
	attrID       = "id"
	attrRunID    = "run_id"
	attrSNSTopic = "sns_topic"

	cleanupLockTimeout = 30 * time.Minute
	requestTimeout     = time.Second
)

type dynamoDBAPI interface {
	PutItemWithContext(aws.Context, *dynamodb.PutItemInput, ...request.Option) (*dynamodb.PutItemOutput, error)
	DeleteItemWithContext(aws.Context, *dynamodb.DeleteItemInput, ...request.Option) (*dynamodb.DeleteItemOutput, error)
}

// DB keeps the cleanup locks so that overlapping runs (e.g. a manual run
// racing the schedule) never start two cleanups for the same region.
type DB struct {
	client dynamoDBAPI
	name   string
}

func New(name, region string) (*DB, error) {
	s, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &DB{
		client: dynamodb.New(s),
		name:   name,
	}, nil
}

func cleanupLockID(region string) string {
	return "cleanup/" + region
}

// LockCleanup returns false (and no error) when another run holds the lock.
func (db *DB) LockCleanup(
	ctx context.Context,
	topic string,
	region string,
	runID string,
) (bool, error) {
	l := logutils.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	now := time.Now()
	input := &dynamodb.PutItemInput{
		TableName: aws.String(db.name),

		Item: map[string]*dynamodb.AttributeValue{
			attrID:       {S: aws.String(cleanupLockID(region))},
			attrRunID:    {S: aws.String(runID)},
			attrSNSTopic: {S: aws.String(topic)},

			attrExpireOn: {N: aws.String(fmt.Sprintf("%d",
				now.Add(cleanupLockTimeout).Unix(),
			))},
		},

		// expired locks are taken over even if the ttl sweeper did not get to them yet
		ConditionExpression: aws.String("attribute_not_exists(#id) OR #expire_on < :now"),
		ExpressionAttributeNames: map[string]*string{
			"#id":        aws.String(attrID),
			"#expire_on": aws.String(attrExpireOn),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":now": {N: aws.String(fmt.Sprintf("%d", now.Unix()))},
		},
	}
	output, err := db.client.PutItemWithContext(ctx, input)

	if err == nil {
		return true, nil
	}
	if _, isCndChkFailedExc := err.(*dynamodb.ConditionalCheckFailedException); isCndChkFailedExc {
		return false, nil
	}

	l.Error("Failed to lock the cleanup",
		zap.Any("input", input),
		zap.Any("output", output),
		zap.Error(err),
	)

	return false, err
}

// ReleaseCleanup drops the lock only if it is still owned by the run.
func (db *DB) ReleaseCleanup(
	ctx context.Context,
	topic string,
	region string,
	runID string,
) error {
	l := logutils.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(db.name),

		Key: map[string]*dynamodb.AttributeValue{
			attrSNSTopic: {S: aws.String(topic)},
			attrID:       {S: aws.String(cleanupLockID(region))},
		},

		ConditionExpression:      aws.String("#run_id = :run_id"),
		ExpressionAttributeNames: map[string]*string{"#run_id": aws.String(attrRunID)},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":run_id": {S: aws.String(runID)},
		},
	}
	output, err := db.client.DeleteItemWithContext(ctx, input)

	if err == nil {
		return nil
	}
	if _, isCndChkFailedExc := err.(*dynamodb.ConditionalCheckFailedException); isCndChkFailedExc {
		l.Warn("Cleanup lock was taken over by another run",
			zap.String("region", region),
		)
		return nil
	}

	l.Error("Failed to release the cleanup lock",
		zap.Any("input", input),
		zap.Any("output", output),
		zap.Error(err),
	)

	return err
}
