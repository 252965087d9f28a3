package messaging

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

// HubPublisher — локальный хаб, в который ретранслируются события других инстансов.
type HubPublisher interface {
	Publish(orderID string, ev notify.Event) int
}

// Relay доставляет смены статуса, сделанные на других инстансах, локальным наблюдателям.
// События собственного инстанса пропускаются: их хаб уже получил напрямую.
type Relay struct {
	hub        HubPublisher
	instanceID string
	logger     *log.Entry
}

// NewRelay создаёт ретранслятор для инстанса instanceID.
func NewRelay(hub HubPublisher, instanceID string, logger *log.Entry) *Relay {
	if logger == nil {
		logger = log.WithField("component", "status-relay")
	}
	return &Relay{hub: hub, instanceID: instanceID, logger: logger}
}

// Handle обрабатывает один конверт. Ошибка означает непригодное сообщение.
func (r *Relay) Handle(_ context.Context, data []byte) error {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}
	if env.EventType != domain.EventOrderStatusChanged {
		return nil
	}

	change, err := DecodeStatusChange(env.Payload)
	if err != nil {
		return err
	}
	if change.Origin != "" && change.Origin == r.instanceID {
		return nil
	}

	delivered := r.hub.Publish(change.OrderID, notify.StatusChanged(change.OrderID, change.Status))
	r.logger.WithFields(log.Fields{
		"order_id":  change.OrderID,
		"status":    change.Status,
		"origin":    change.Origin,
		"delivered": delivered,
	}).Debug("relayed status change")
	return nil
}
