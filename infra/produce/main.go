package produce

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ObjectCompleteQueue = "vault.object.complete"

// ObjectCompleteMessage is published once the final chunk descriptor of an
// object is committed. The prewarm consumer uses it to assemble the plaintext
// ahead of the first stream request.
type ObjectCompleteMessage struct {
	ObjectID    string `json:"object_id"`
	FileType    string `json:"file_type"`
	TotalChunks int    `json:"total_chunks"`
}

type Produce struct {
	channel *amqp.Channel
}

func InitProduce(channel *amqp.Channel) *Produce {
	if channel == nil {
		return nil
	}

	_, err := channel.QueueDeclare(
		ObjectCompleteQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to declare queue %s: %v", ObjectCompleteQueue, err))
	}

	return &Produce{channel: channel}
}

func (p *Produce) PublishObjectComplete(ctx context.Context, msg ObjectCompleteMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",                  // default exchange
		ObjectCompleteQueue, // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish object complete message: %w", err)
	}
	return nil
}
