package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"food-marketplace-api/queue"
	"food-marketplace-api/services"

	"go.uber.org/zap"
)

// LedgerRetryWorker re-applies calorie ledger updates that failed right after an
// order was placed.
type LedgerRetryWorker struct {
	recorder services.ConsumptionRecorder
	broker   queue.Broker
	logger   *zap.SugaredLogger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLedgerRetryWorker(
	recorder services.ConsumptionRecorder,
	broker queue.Broker,
	logger *zap.SugaredLogger,
) *LedgerRetryWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &LedgerRetryWorker{
		recorder: recorder,
		broker:   broker,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *LedgerRetryWorker) Start() error {
	w.logger.Info("starting ledger retry worker")

	return w.broker.Subscribe(w.ctx, queue.QueueLedgerRetry, w.handleMessage)
}

func (w *LedgerRetryWorker) Stop() {
	w.logger.Info("stopping ledger retry worker")
	w.cancel()
}

func (w *LedgerRetryWorker) handleMessage(ctx context.Context, message []byte) error {
	var msg services.LedgerRetryMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		w.logger.Errorw("failed to unmarshal ledger retry", "error", err)
		return fmt.Errorf("failed to unmarshal ledger retry: %w", err)
	}

	w.logger.Infow("retrying calorie ledger update", "order_id", msg.OrderID, "user_id", msg.UserID, "calories", msg.Calories)

	err := w.recorder.RecordConsumption(ctx, msg.UserID, msg.Calories, msg.Date)
	if err == nil {
		return nil
	}
	// malformed messages will never succeed; drop them instead of cycling to the DLQ
	if services.IsKind(err, services.KindValidation) || services.IsKind(err, services.KindUnauthenticated) {
		w.logger.Errorw("dropping invalid ledger retry", "order_id", msg.OrderID, "error", err)
		return nil
	}
	w.logger.Errorw("failed to retry calorie ledger update", "order_id", msg.OrderID, "error", err)
	return err
}
