// Package amqp moves event envelopes between the two services over a topic exchange.
package amqp

import (
	"io"

	"github.com/streadway/amqp"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type (
	// Connect opens a connection and a publishing channel.
	Connect func() (io.Closer, Channel, error)

	// Consume returns a channel of deliveries and a related closer or an error.
	Consume func() (io.Closer, <-chan amqp.Delivery, error)
)

// DialPublisher connects to url and declares the durable topic exchange.
func DialPublisher(url, exchange string) Connect {
	return func() (io.Closer, Channel, error) {
		conn, ch, err := setup(url, exchange)
		if err != nil {
			return nil, nil, err
		}
		return conn, ch, nil
	}
}

// DialConsumer connects to url, declares queue and binds it to every routing key
// pattern in bindings.
func DialConsumer(url, exchange, queue string, bindings []string) Consume {
	return func() (io.Closer, <-chan amqp.Delivery, error) {
		conn, ch, err := setup(url, exchange)
		if err != nil {
			return nil, nil, err
		}
		fail := func(err error) (io.Closer, <-chan amqp.Delivery, error) {
			_ = conn.Close()
			return nil, nil, err
		}

		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fail(err)
		}
		for _, key := range bindings {
			if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
				return fail(err)
			}
		}
		if err := ch.Qos(16, 0, false); err != nil {
			return fail(err)
		}

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fail(err)
		}
		return conn, deliveries, nil
	}
}

func setup(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
