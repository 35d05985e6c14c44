package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/service"
)

// TransactionConsumer evaluates transaction events from the payments
// pipeline. Every consumed transaction runs through the decision engine;
// non-blocked transactions are recorded into the history that feeds
// velocity monitoring and the CTR sweep.
type TransactionConsumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       *transactionHandler
	logger        *zap.Logger
}

func NewTransactionConsumer(
	cfg config.KafkaConfig,
	compliance *service.ComplianceService,
	history repository.TransactionRepository,
	producer *Producer,
	logger *zap.Logger,
) (*TransactionConsumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &TransactionConsumer{
		consumerGroup: consumerGroup,
		topics:        []string{cfg.TransactionTopic},
		handler: &transactionHandler{
			compliance: compliance,
			history:    history,
			producer:   producer,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

func (c *TransactionConsumer) Start(ctx context.Context) error {
	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, c.handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consumer error", zap.Error(err))
			time.Sleep(5 * time.Second)
		}
	}
}

func (c *TransactionConsumer) Close() error {
	return c.consumerGroup.Close()
}

// transactionEvent is the wire shape published by the payments pipeline.
type transactionEvent struct {
	TransactionID      uuid.UUID         `json:"transaction_id"`
	OrganizationID     uuid.UUID         `json:"organization_id"`
	BranchID           *uuid.UUID        `json:"branch_id,omitempty"`
	CustomerID         uuid.UUID         `json:"customer_id"`
	AccountID          uuid.UUID         `json:"account_id"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	TransactionType    string            `json:"transaction_type"`
	DestinationCountry string            `json:"destination_country,omitempty"`
	CustomerName       string            `json:"customer_name"`
	KYCStatus          domain.KYCStatus  `json:"kyc_status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	OccurredAt         time.Time         `json:"occurred_at"`
}

type transactionHandler struct {
	compliance *service.ComplianceService
	history    repository.TransactionRepository
	producer   *Producer
	logger     *zap.Logger
}

func (h *transactionHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *transactionHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *transactionHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *transactionHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	var event transactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("malformed transaction event, skipping",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}

	req := domain.EvaluationRequest{
		OrganizationID:     event.OrganizationID,
		BranchID:           event.BranchID,
		CustomerID:         event.CustomerID,
		AccountID:          event.AccountID,
		TransactionID:      &event.TransactionID,
		Amount:             event.Amount,
		Currency:           event.Currency,
		TransactionType:    event.TransactionType,
		DestinationCountry: event.DestinationCountry,
		CustomerName:       event.CustomerName,
		KYCStatus:          event.KYCStatus,
		Metadata:           event.Metadata,
	}

	const maxRetries = 3
	var check *domain.ComplianceCheck
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		check, err = h.compliance.EvaluateTransaction(ctx, req)
		if err == nil {
			break
		}
		// Bad input never heals on retry.
		if domain.KindOf(err) == domain.KindInvalidInput || domain.KindOf(err) == domain.KindNotFound {
			h.logger.Error("rejected transaction event",
				zap.String("transaction_id", event.TransactionID.String()),
				zap.Error(err))
			return
		}
		h.logger.Error("failed to evaluate transaction event",
			zap.String("transaction_id", event.TransactionID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	if err != nil {
		h.logger.Error("dropping transaction event after retries",
			zap.String("transaction_id", event.TransactionID.String()))
		return
	}

	if check.Status != domain.CheckBlocked {
		occurredAt := event.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		tx := &domain.Transaction{
			TransactionID:  event.TransactionID,
			OrganizationID: event.OrganizationID,
			CustomerID:     event.CustomerID,
			AccountID:      event.AccountID,
			Amount:         event.Amount,
			Currency:       event.Currency,
			Type:           event.TransactionType,
			Country:        event.DestinationCountry,
			OccurredAt:     occurredAt,
		}
		if err := h.history.Record(ctx, tx); err != nil {
			h.logger.Error("failed to record transaction history",
				zap.String("transaction_id", event.TransactionID.String()),
				zap.Error(err))
		}
	}

	if h.producer != nil {
		if err := h.producer.PublishDecision(ctx, check); err != nil {
			h.logger.Warn("failed to publish decision",
				zap.String("check_id", check.CheckID.String()),
				zap.Error(err))
		}
	}
}
