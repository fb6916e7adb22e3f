package eventpubsub

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

type Bus struct {
	bus EventBus.Bus
}

func New() *Bus {
	return &Bus{
		bus: EventBus.New(),
	}
}

func (b *Bus) Publish(publisherName string, topic EventName, event interface{}) {
	log.Debugf("[%v] Published to topic %s", publisherName, topic)
	b.bus.Publish(string(topic), event)
}

// Subscribe registers callbackFn to run asynchronously for every event on
// topic. Callbacks of one subscriber run one at a time.
func (b *Bus) Subscribe(subscriberName string, topic EventName, callbackFn interface{}) error {
	if err := b.bus.SubscribeAsync(string(topic), callbackFn, true); err != nil {
		return fmt.Errorf("[%v] Subscribe: %w", subscriberName, err)
	}

	log.Infof("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}

func (b *Bus) Unsubscribe(topic EventName, callbackFn interface{}) error {
	if err := b.bus.Unsubscribe(string(topic), callbackFn); err != nil {
		return fmt.Errorf("Unsubscribe: %w", err)
	}

	return nil
}

// WaitAsync blocks until every asynchronous callback has returned.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
