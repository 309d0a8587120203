package sms

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	in *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSNS_Send(t *testing.T) {
	t.Parallel()

	api := &fakeSNS{}
	s := &SNS{client: api, senderID: "OTPGATE"}

	id, err := s.Send(context.Background(), Message{To: "+14155550100", Body: "code 123456"})
	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	assert.Equal(t, "+14155550100", aws.ToString(api.in.PhoneNumber))
	assert.Equal(t, "Transactional", aws.ToString(api.in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "OTPGATE", aws.ToString(api.in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))

	_, err = s.Send(context.Background(), Message{Body: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	_, err = s.Send(context.Background(), Message{To: "+14155550100"})
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestNewFromDriver(t *testing.T) {
	t.Parallel()

	s, err := NewFromDriver(context.Background(), "", SNSConfig{})
	require.NoError(t, err)
	id, err := s.Send(context.Background(), Message{To: "+14155550100", Body: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = NewFromDriver(context.Background(), "carrier-pigeon", SNSConfig{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
