package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient is an in-memory parameter store that records calls.
type mockSSMClient struct {
	params   map[string]string
	getErr   error
	putErr   error
	getCalls []*ssm.GetParameterInput
	putCalls []*ssm.PutParameterInput
}

func newMockSSM(params map[string]string) *mockSSMClient {
	if params == nil {
		params = map[string]string{}
	}
	return &mockSSMClient{params: params}
}

func (m *mockSSMClient) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.getCalls = append(m.getCalls, in)
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.params[aws.ToString(in.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func (m *mockSSMClient) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	m.putCalls = append(m.putCalls, in)
	if m.putErr != nil {
		return nil, m.putErr
	}
	name := aws.ToString(in.Name)
	if _, ok := m.params[name]; ok && !aws.ToBool(in.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("exists")}
	}
	m.params[name] = aws.ToString(in.Value)
	return &ssm.PutParameterOutput{Version: 1}, nil
}

func newTestSSMManager(mock *mockSSMClient, env string) (*SSMManager, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewSSMManagerWithClient(mock, env, logger), &logs
}

func TestSSMPath(t *testing.T) {
	m, _ := newTestSSMManager(newMockSSM(nil), "staging")
	if got := m.SSMPath("database/url"); got != "/staging/parkwatch/database/url" {
		t.Errorf("SSMPath = %q", got)
	}
}

func TestParameterExists(t *testing.T) {
	mock := newMockSSM(map[string]string{"/dev/parkwatch/database/url": "postgres://x"})
	m, _ := newTestSSMManager(mock, "dev")

	ok, err := m.ParameterExists(context.Background(), "/dev/parkwatch/database/url")
	if err != nil || !ok {
		t.Fatalf("existing: ok=%v err=%v", ok, err)
	}
	if aws.ToBool(mock.getCalls[0].WithDecryption) {
		t.Error("existence probe must not decrypt")
	}

	ok, err = m.ParameterExists(context.Background(), "/dev/parkwatch/cache/redis_url")
	if err != nil || ok {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}

	mock.getErr = errors.New("AccessDenied")
	if _, err := m.ParameterExists(context.Background(), "/dev/parkwatch/x"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestPutSecret(t *testing.T) {
	mock := newMockSSM(nil)
	m, logs := newTestSSMManager(mock, "dev")
	path := m.SSMPath("scrape/cron_secret")

	if err := m.PutSecret(context.Background(), path, "s3cr3t-value", false); err != nil {
		t.Fatalf("PutSecret: %v", err)
	}
	if mock.putCalls[0].Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("type = %s", mock.putCalls[0].Type)
	}
	if strings.Contains(logs.String(), "s3cr3t-value") {
		t.Error("secret value leaked into logs")
	}

	err := m.PutSecret(context.Background(), path, "another", false)
	var exists *ssmtypes.ParameterAlreadyExists
	if !errors.As(err, &exists) {
		t.Fatalf("err = %v, want ParameterAlreadyExists", err)
	}

	if err := m.PutSecret(context.Background(), path, "another", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if mock.params[path] != "another" {
		t.Errorf("value = %q", mock.params[path])
	}
}

func TestPutString_Validation(t *testing.T) {
	m, _ := newTestSSMManager(newMockSSM(nil), "dev")

	if err := m.PutString(context.Background(), "", "v"); err == nil {
		t.Error("empty path should fail")
	}
	if err := m.PutString(context.Background(), "/dev/parkwatch/archive/bucket", ""); err == nil {
		t.Error("empty value should fail")
	}
}

func TestGetParameterValue(t *testing.T) {
	mock := newMockSSM(map[string]string{"/dev/parkwatch/cache/redis_url": "redis://cache:6379"})
	m, logs := newTestSSMManager(mock, "dev")

	v, err := m.GetParameterValue(context.Background(), "/dev/parkwatch/cache/redis_url", true)
	if err != nil || v != "redis://cache:6379" {
		t.Fatalf("v=%q err=%v", v, err)
	}
	if !aws.ToBool(mock.getCalls[0].WithDecryption) {
		t.Error("expected decryption")
	}
	if strings.Contains(logs.String(), "redis://cache") {
		t.Error("value leaked into logs")
	}
}
