package aws

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, f.err
}

func TestSNSClient_Publish(t *testing.T) {
	api := &fakeSNS{}
	c := NewSNSClientWithAPI(api)

	require.NoError(t, c.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:orders", []byte(`{"a":1}`)))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, `{"a":1}`, *api.inputs[0].Message)

	assert.Error(t, c.Publish(context.Background(), "", []byte("x")))

	api.err = errors.New("throttled")
	assert.ErrorContains(t, c.Publish(context.Background(), "arn", []byte("x")), "throttled")
}

type fakeSQS struct {
	in *sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSender_Send(t *testing.T) {
	api := &fakeSQS{}
	s := NewSQSSenderWithAPI(api, "http://localhost:4566/000000000000/orders")

	require.NoError(t, s.Send(context.Background(), "order.placed", []byte("{}")))
	assert.Equal(t, "order.placed", *api.in.MessageAttributes["event_type"].StringValue)

	assert.Error(t, NewSQSSenderWithAPI(api, "").Send(context.Background(), "x", nil))
}

type fakeSecrets struct {
	calls int
	value *string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestSecretsClient_Caches(t *testing.T) {
	v := "s3cr3t"
	api := &fakeSecrets{value: &v}
	c := NewSecretsClientWithAPI(api)

	for i := 0; i < 3; i++ {
		got, err := c.GetSecret(context.Background(), "checkout/JWT_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", got)
	}
	assert.Equal(t, 1, api.calls)

	_, err := NewSecretsClientWithAPI(&fakeSecrets{}).GetSecret(context.Background(), "empty")
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://ref-data/shipping/rules.json")
	require.NoError(t, err)
	assert.Equal(t, "ref-data", bucket)
	assert.Equal(t, "shipping/rules.json", key)

	for _, bad := range []string{"rules.json", "s3://bucket", "s3:///key", "s3://bucket/"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

type fakeS3 struct{ body string }

func (f *fakeS3) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestReadObject(t *testing.T) {
	b, err := ReadObject(context.Background(), &fakeS3{body: "hello"}, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient(t *testing.T) {
	api := &fakeCloudWatch{}

	disabled := NewMetricsClientWithAPI(api, "", false)
	require.NoError(t, disabled.RecordCount(context.Background(), MetricCheckoutsStarted, nil))
	assert.Empty(t, api.inputs)

	enabled := NewMetricsClientWithAPI(api, "Test", true)
	require.NoError(t, enabled.RecordLatency(context.Background(), MetricCheckoutLatency, 1500*time.Millisecond, map[string]string{"PaymentMethod": "cod"}))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "Test", *api.inputs[0].Namespace)
	assert.Equal(t, 1500.0, *api.inputs[0].MetricData[0].Value)
	assert.Len(t, api.inputs[0].MetricData[0].Dimensions, 1)

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricCheckoutsFailed, nil))
}

type fakeLogs struct {
	groupErr error
	events   []types.InputLogEvent
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}
func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}
func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}
func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.events = append(f.events, in.LogEvents...)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchLogsWriter(t *testing.T) {
	api := &fakeLogs{groupErr: &types.ResourceAlreadyExistsException{}}
	w, err := newCloudWatchLogsWriter(context.Background(), api, "", "checkout-service")
	require.NoError(t, err)

	n, err := w.Write([]byte(`{"msg":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	require.Len(t, api.events, 1)
	assert.Equal(t, `{"msg":"hi"}`, *api.events[0].Message)

	_, err = newCloudWatchLogsWriter(context.Background(), &fakeLogs{groupErr: errors.New("denied")}, "g", "svc")
	assert.Error(t, err)
}
