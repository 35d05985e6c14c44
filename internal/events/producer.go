package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
)

// Producer publishes decisions and alerts for downstream consumers. The
// underlying producer is idempotent so broker retries cannot duplicate a
// decision event.
type Producer struct {
	producer      sarama.SyncProducer
	alertTopic    string
	decisionTopic string
	logger        *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Idempotent = true
	saramaCfg.Net.MaxOpenRequests = 1
	saramaCfg.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Producer{
		producer:      producer,
		alertTopic:    cfg.AlertTopic,
		decisionTopic: cfg.DecisionTopic,
		logger:        logger,
	}, nil
}

// PublishAlert emits an alert, keyed by organization so per-org ordering holds.
func (p *Producer) PublishAlert(_ context.Context, alert *domain.ComplianceAlert) error {
	return p.publish(p.alertTopic, alert.OrganizationID.String(), alert)
}

// PublishDecision emits the decision record for a completed evaluation. The
// payload carries the decision facts only, not the sanctions-match details.
func (p *Producer) PublishDecision(_ context.Context, check *domain.ComplianceCheck) error {
	decision := map[string]interface{}{
		"check_id":        check.CheckID,
		"organization_id": check.OrganizationID,
		"customer_id":     check.CustomerID,
		"account_id":      check.AccountID,
		"transaction_id":  check.TransactionID,
		"status":          check.Status,
		"reason":          check.Reason,
		"risk_score":      check.RiskScore,
		"risk_level":      check.RiskLevel,
		"created_at":      check.CreatedAt,
	}
	return p.publish(p.decisionTopic, check.OrganizationID.String(), decision)
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
