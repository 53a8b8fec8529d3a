// Package notify forwards high-severity events to chat and HTTP webhooks.
//
// Delivery is asynchronous: HandleEvent only queues, and a single Run
// goroutine posts to every configured webhook. A full queue drops the event
// with a warning rather than blocking the bus subscriber.
package notify
