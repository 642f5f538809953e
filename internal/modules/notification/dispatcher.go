// README: Notification backends: zap log, FCM topics, Kafka stream, and fan-out.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fieldforce/internal/types"
)

type Dispatcher interface {
	Notify(ctx context.Context, role Role, msg Message) types.BestEffort
}

// LogDispatcher only records the announcement.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, role Role, msg Message) types.BestEffort {
	d.logger.Info("visit notification",
		zap.String("role", string(role)),
		zap.String("kind", string(msg.Kind)),
		zap.String("visit_id", string(msg.VisitID)),
		zap.String("representative_id", string(msg.RepresentativeID)),
		zap.String("doctor_id", string(msg.DoctorID)),
		zap.String("reason", msg.Reason),
	)
	return types.Succeeded("notify.log")
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDispatcher publishes to one FCM topic per role, e.g. "fieldforce-manager".
type FCMDispatcher struct {
	client      messageSender
	topicPrefix string
}

func NewFCMDispatcher(client *messaging.Client, topicPrefix string) *FCMDispatcher {
	return newFCMDispatcher(client, topicPrefix)
}

func newFCMDispatcher(client messageSender, topicPrefix string) *FCMDispatcher {
	if topicPrefix == "" {
		topicPrefix = "fieldforce"
	}
	return &FCMDispatcher{client: client, topicPrefix: topicPrefix}
}

func (d *FCMDispatcher) Topic(role Role) string {
	return d.topicPrefix + "-" + string(role)
}

func (d *FCMDispatcher) Notify(ctx context.Context, role Role, msg Message) types.BestEffort {
	data := map[string]string{
		"kind":              string(msg.Kind),
		"visit_id":          string(msg.VisitID),
		"representative_id": string(msg.RepresentativeID),
		"doctor_id":         string(msg.DoctorID),
	}
	if msg.Reason != "" {
		data["reason"] = msg.Reason
	}
	_, err := d.client.Send(ctx, &messaging.Message{
		Topic: d.Topic(role),
		Notification: &messaging.Notification{
			Title: msg.Title(),
			Body:  msg.Body(),
		},
		Data: data,
	})
	if err != nil {
		return types.Failed("notify.fcm", fmt.Errorf("send to topic %s: %w", d.Topic(role), err))
	}
	return types.Succeeded("notify.fcm")
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaDispatcher appends announcements to the visit event topic, keyed by
// representative so one representative's events stay ordered.
type KafkaDispatcher struct {
	writer messageWriter
}

func NewKafkaDispatcher(writer *kafka.Writer) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

type kafkaEnvelope struct {
	Role Role `json:"role"`
	Message
}

func (d *KafkaDispatcher) Notify(ctx context.Context, role Role, msg Message) types.BestEffort {
	payload, err := json.Marshal(kafkaEnvelope{Role: role, Message: msg})
	if err != nil {
		return types.Failed("notify.kafka", err)
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RepresentativeID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		return types.Failed("notify.kafka", fmt.Errorf("write visit event: %w", err))
	}
	return types.Succeeded("notify.kafka")
}

// Fanout delivers to every backend; the outcome joins all failures.
type Fanout []Dispatcher

func (f Fanout) Notify(ctx context.Context, role Role, msg Message) types.BestEffort {
	var errs []error
	for _, d := range f {
		if res := d.Notify(ctx, role, msg); !res.OK() {
			errs = append(errs, fmt.Errorf("%s: %w", res.Op, res.Err))
		}
	}
	if len(errs) > 0 {
		return types.Failed("notify.fanout", errors.Join(errs...))
	}
	return types.Succeeded("notify.fanout")
}
