// Package bus implements the in-process message substrate agents use to
// exchange work and results: bounded per-agent priority queues, broadcast and
// topic based fan-out, TTL expiry and request/response correlation.
//
// Delivery is priority-then-FIFO per recipient. The bus never retries a
// dropped message; a full queue is surfaced to the sender and counted.
package bus
