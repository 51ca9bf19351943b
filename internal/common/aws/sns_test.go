// internal/common/aws/sns_test.go
package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSClient_PublishJSON(t *testing.T) {
	fake := &fakeSNS{}
	client := &SNSClient{client: fake}

	id, err := client.PublishJSON(context.Background(), "arn:aws:sns:ap-south-1:000000000000:templates",
		"template.registered", map[string]string{"eventType": "template.registered"}, []byte(`{"id":"1"}`))
	require.NoError(t, err)

	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:templates", aws.ToString(fake.input.TopicArn))
	assert.Equal(t, `{"id":"1"}`, aws.ToString(fake.input.Message))
	assert.Equal(t, "template.registered", aws.ToString(fake.input.Subject))
	attr := fake.input.MessageAttributes["eventType"]
	assert.Equal(t, "String", aws.ToString(attr.DataType))
	assert.Equal(t, "template.registered", aws.ToString(attr.StringValue))
}

func TestSNSClient_PublishJSONError(t *testing.T) {
	client := &SNSClient{client: &fakeSNS{err: assert.AnError}}

	_, err := client.PublishJSON(context.Background(), "arn", "", nil, []byte(`{}`))
	assert.ErrorIs(t, err, assert.AnError)
}
