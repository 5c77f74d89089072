// Package broker connects a hop to RabbitMQ. It declares the demo topology
// (durable chain queue, durable fanout exchange with three bound queues),
// publishes messages with the trace envelope in the message headers, and
// runs the consumer loops that continue traces on the receiving side.
package broker
