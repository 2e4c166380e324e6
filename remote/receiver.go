package remote

import (
	"net"

	"github.com/arloliu/go-thales/telegram"
)

// receiveTelegram reads one telegram from conn and routes it to the queue of its channel.
// It returns false when the receiver has to stop.
//
// A read failure while running means the socket is gone: the running flag is cleared and every
// queue is closed so that all waiters are released with ErrConnClosed.
func (c *Connection) receiveTelegram(conn net.Conn, hdr []byte) bool {
	if !c.running.Load() {
		return false
	}

	t, err := telegram.Read(conn, c.protocol.LengthOrder(), hdr)
	if err != nil {
		if c.running.CompareAndSwap(true, false) {
			c.logger.Error("connection lost", "method", "receiveTelegram", "error", err)
			c.closeQueues()
		}

		return false
	}

	if len(t.Payload) == 0 {
		c.metrics.incTelegramDrop()
		return true
	}

	q, ok := c.queues.Load(t.Channel)
	if !ok {
		c.metrics.incTelegramDrop()
		c.logger.Debug("drop telegram on unregistered channel", "channel", t.Channel, "len", len(t.Payload))

		return true
	}

	q.Push(t.Payload)
	c.metrics.incTelegramRecv(len(t.Payload))

	return true
}
