package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	sent []published
	err  error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: key, msg: msg})
	return nil
}

type fakeAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return nil
}

func delivery(acker *fakeAcker, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: acker, Headers: headers, Body: []byte(`{"document_id":"d1"}`)}
}

func TestHandleProcessingErrorRetry(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		want    int32
	}{
		{"first failure", nil, 1},
		{"int32 header", amqp091.Table{retriesHeader: int32(3)}, 4},
		{"int64 header", amqp091.Table{retriesHeader: int64(9)}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			acker := &fakeAcker{}
			HandleProcessingError(context.Background(), ch, delivery(acker, tt.headers), ExtractQueue)

			if len(ch.sent) != 1 || ch.sent[0].key != ExtractQueue+"_retry" {
				t.Fatalf("expected one retry publish, got %+v", ch.sent)
			}
			if got := ch.sent[0].msg.Headers[retriesHeader]; got != tt.want {
				t.Fatalf("expected retries %d, got %v", tt.want, got)
			}
			if acker.acks != 1 {
				t.Fatalf("expected original delivery acked, got %d", acker.acks)
			}
		})
	}
}

func TestHandleProcessingErrorDeadLetter(t *testing.T) {
	ch := &fakeChannel{}
	acker := &fakeAcker{}
	HandleProcessingError(context.Background(), ch, delivery(acker, amqp091.Table{retriesHeader: int32(maxRetries)}), RebuildQueue)

	if len(ch.sent) != 1 || ch.sent[0].key != RebuildQueue+"_dlq" {
		t.Fatalf("expected dead letter publish, got %+v", ch.sent)
	}
	if acker.acks != 1 {
		t.Fatalf("expected ack after dead lettering")
	}
}

func TestHandleProcessingErrorPublishFailure(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	acker := &fakeAcker{}
	HandleProcessingError(context.Background(), ch, delivery(acker, nil), ExtractQueue)

	if acker.acks != 0 || acker.nacks != 1 || !acker.requeue {
		t.Fatalf("expected requeueing nack, got acks=%d nacks=%d requeue=%v", acker.acks, acker.nacks, acker.requeue)
	}
}

type recordingPublisher struct {
	queue string
	body  []byte
}

func (p *recordingPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.queue = queueName
	p.body = body
	return nil
}

func TestPublishMessages(t *testing.T) {
	p := &recordingPublisher{}
	if err := PublishExtract(context.Background(), p, ExtractMsg{DocumentID: "d1", UserID: "u1"}); err != nil {
		t.Fatalf("PublishExtract failed: %v", err)
	}
	var msg ExtractMsg
	if err := json.Unmarshal(p.body, &msg); err != nil || p.queue != ExtractQueue || msg.DocumentID != "d1" || msg.UserID != "u1" {
		t.Fatalf("unexpected extract publish: %s %s %v", p.queue, p.body, err)
	}

	if err := PublishRebuild(context.Background(), p, RebuildMsg{UserID: "u1"}); err != nil {
		t.Fatalf("PublishRebuild failed: %v", err)
	}
	if p.queue != RebuildQueue {
		t.Fatalf("expected rebuild queue, got %s", p.queue)
	}
}

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch}
	if err := p.Publish(context.Background(), ExtractQueue, []byte("{}")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(ch.sent) != 1 || ch.sent[0].msg.DeliveryMode != amqp091.Persistent || ch.sent[0].msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing: %+v", ch.sent)
	}
}
