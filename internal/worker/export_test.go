package worker

import (
	"context"

	"storybot-server/internal/messaging"
)

// RunOnce прогоняет один цикл опроса планировщика без запуска тикера.
func (p *ActivationPoller) RunOnce(ctx context.Context) {
	p.runOnce(ctx)
}

// Deliver доставляет уведомление в обход подписки на очередь.
func (d *Dispatcher) Deliver(ctx context.Context, payload messaging.NotificationPayload) error {
	return d.deliver(ctx, payload)
}

// ActivationClaimLimit открывает лимит выборки заданий для проверок в тестах.
const ActivationClaimLimit = activationClaimLimit
