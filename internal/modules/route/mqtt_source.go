// README: MQTT subscription that feeds device location samples into trackers.
package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"fieldforce/internal/types"
)

const mqttPushTimeout = 5 * time.Second

type samplePusher interface {
	Push(ctx context.Context, visitID types.ID, s Sample) error
}

// MQTTSource subscribes to a topic pattern with one '+' segment holding the
// visit id, e.g. fieldforce/visits/+/samples.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	pusher samplePusher
	logger *zap.Logger
}

func NewMQTTSource(client mqtt.Client, topic string, svc *Service, logger *zap.Logger) (*MQTTSource, error) {
	if strings.Count(topic, "+") != 1 {
		return nil, fmt.Errorf("mqtt topic %q must contain exactly one '+' segment for the visit id", topic)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSource{client: client, topic: topic, pusher: svc, logger: logger}, nil
}

func (m *MQTTSource) Start() error {
	token := m.client.Subscribe(m.topic, 1, m.handle)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", m.topic, token.Error())
	}
	m.logger.Info("mqtt location source subscribed", zap.String("topic", m.topic))
	return nil
}

func (m *MQTTSource) Stop() {
	token := m.client.Unsubscribe(m.topic)
	token.WaitTimeout(mqttPushTimeout)
	m.client.Disconnect(250)
}

func (m *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	if err := m.process(msg.Topic(), msg.Payload()); err != nil {
		m.logger.Warn("mqtt sample dropped", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

func (m *MQTTSource) process(topic string, payload []byte) error {
	visitID, ok := visitIDFromTopic(m.topic, topic)
	if !ok {
		return errors.New("topic does not match subscription")
	}
	var p SamplePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode sample: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), mqttPushTimeout)
	defer cancel()
	return m.pusher.Push(ctx, visitID, p.Sample())
}

func visitIDFromTopic(pattern, topic string) (types.ID, bool) {
	want := strings.Split(pattern, "/")
	got := strings.Split(topic, "/")
	if len(want) != len(got) {
		return "", false
	}
	var id string
	for i, seg := range want {
		switch seg {
		case "+":
			id = got[i]
		default:
			if seg != got[i] {
				return "", false
			}
		}
	}
	if id == "" {
		return "", false
	}
	return types.ID(id), true
}
