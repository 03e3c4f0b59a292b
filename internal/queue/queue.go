package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Declare 声明一个持久化的队列
func Declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // 队列名称
		true,  // 是否持久化
		false, // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false, // 是否独占
		false, // 是否不等待
		nil,   // 额外参数
	)
}

// Publish 将 v 序列化为 JSON 后发送到默认交换机上的指定队列，返回消息 ID
func Publish(ctx context.Context, ch *amqp.Channel, name string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	messageID := uuid.NewString()
	if err := ch.PublishWithContext(
		ctx,
		"",
		name,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	); err != nil {
		return "", err
	}

	return messageID, nil
}

// Dial 连接 RabbitMQ 并声明 queues 中的所有队列
func Dial(dsn string, queues ...string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	for _, name := range queues {
		if _, err := Declare(ch, name); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("无法声明队列 %s: %w", name, err)
		}
	}

	return conn, ch, nil
}
