package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	alerts "smart-maintenance/internal/alerts/domain"
)

func TestWebhookTransportPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport, err := NewWebhookTransport(server.URL)
	if err != nil {
		t.Fatalf("new webhook transport: %v", err)
	}
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	n := alerts.Notification{DeviceID: "pump-17", RiskScore: 0.8, Threshold: 0.7, FailureModes: []string{"overheat", "thermal_runaway"}}
	n.Message, err = tpl.Render(BuildTemplateData(n, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := transport.Send(context.Background(), n); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("unexpected msgtype %s", payload.MsgType)
		}
		for _, want := range []string{"Device: pump-17", "Risk Score: 0.80", "overheat, thermal_runaway", "2026-03-01T08:00:00Z", "next shift"} {
			if !strings.Contains(payload.Text.Content, want) {
				t.Fatalf("content missing %q: %s", want, payload.Text.Content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookTransportNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport, err := NewWebhookTransport(server.URL)
	if err != nil {
		t.Fatalf("new webhook transport: %v", err)
	}
	if err := transport.Send(context.Background(), alerts.Notification{DeviceID: "d"}); err == nil {
		t.Fatal("expected non-2xx error")
	}
}

type stubPublisher struct {
	input *sns.PublishInput
	err   error
}

func (s *stubPublisher) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSTransportPublishes(t *testing.T) {
	publisher := &stubPublisher{}
	transport, err := NewSNSTransport(publisher, "arn:aws:sns:eu-west-1:123:maintenance")
	if err != nil {
		t.Fatalf("new sns transport: %v", err)
	}
	if err := transport.Send(context.Background(), alerts.Notification{DeviceID: "pump-17", RiskScore: 0.75, Message: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(publisher.input.TopicArn) != "arn:aws:sns:eu-west-1:123:maintenance" {
		t.Fatalf("unexpected topic %s", aws.ToString(publisher.input.TopicArn))
	}
	if aws.ToString(publisher.input.Message) != "hello" {
		t.Fatalf("unexpected message %s", aws.ToString(publisher.input.Message))
	}
	if aws.ToString(publisher.input.MessageAttributes["device_id"].StringValue) != "pump-17" {
		t.Fatal("missing device_id attribute")
	}
	if aws.ToString(publisher.input.MessageAttributes["risk_score"].StringValue) != "0.75" {
		t.Fatal("missing risk_score attribute")
	}

	publisher.err = errors.New("throttled")
	if err := transport.Send(context.Background(), alerts.Notification{DeviceID: "pump-17"}); err == nil {
		t.Fatal("expected publish error")
	}
}

type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) Send(context.Context, alerts.Notification) error {
	c.calls++
	return c.err
}

func TestMultiTransportFansOut(t *testing.T) {
	ok := &countingTransport{}
	failing := &countingTransport{err: errors.New("down")}
	multi := NewMultiTransport(ok, nil, failing)
	err := multi.Send(context.Background(), alerts.Notification{DeviceID: "d"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls != 1 || failing.calls != 1 {
		t.Fatalf("expected each transport called once, got %d/%d", ok.calls, failing.calls)
	}
}

func TestLogTransportWritesEntry(t *testing.T) {
	var buf bytes.Buffer
	transport := NewLogTransport(zerolog.New(&buf))
	if err := transport.Send(context.Background(), alerts.Notification{DeviceID: "pump-17", RiskScore: 0.9}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), `"device_id":"pump-17"`) {
		t.Fatalf("unexpected log output %s", buf.String())
	}
}
