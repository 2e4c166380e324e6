package remote

import "sync/atomic"

// ConnectionMetrics contains atomic counters of a connection.
// Counters can be used as the value of a prometheus CounterFunc.
type ConnectionMetrics struct {
	// TelegramSendCount is the number of telegrams written to the socket.
	TelegramSendCount atomic.Uint64
	// TelegramRecvCount is the number of telegrams queued for a registered channel.
	TelegramRecvCount atomic.Uint64
	// TelegramDropCount is the number of received telegrams that were empty or on an unregistered channel.
	TelegramDropCount atomic.Uint64
	// SendErrCount is the number of failed sends, send lock timeouts included.
	SendErrCount atomic.Uint64
	// RecvTimeoutCount is the number of waits that ended with ErrReceiveTimeout.
	RecvTimeoutCount atomic.Uint64

	// BytesSent is the number of bytes written, frame headers included.
	BytesSent atomic.Uint64
	// BytesReceived is the number of payload bytes queued.
	BytesReceived atomic.Uint64
}

func (m *ConnectionMetrics) incTelegramSend(n int) {
	m.TelegramSendCount.Add(1)
	m.BytesSent.Add(uint64(n))
}

func (m *ConnectionMetrics) incTelegramRecv(n int) {
	m.TelegramRecvCount.Add(1)
	m.BytesReceived.Add(uint64(n))
}

func (m *ConnectionMetrics) incTelegramDrop() {
	m.TelegramDropCount.Add(1)
}

func (m *ConnectionMetrics) incSendErr() {
	m.SendErrCount.Add(1)
}

func (m *ConnectionMetrics) incRecvTimeout() {
	m.RecvTimeoutCount.Add(1)
}
