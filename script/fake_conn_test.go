package script

import (
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-thales/remote"
	"github.com/arloliu/go-thales/telegram"
)

type request struct {
	payload string
	ch      telegram.Channel
	timeout time.Duration
}

// fakeConn answers requests from a table keyed by payload. Unknown script commands get "OK\r",
// unknown control messages time out.
type fakeConn struct {
	mu       sync.Mutex
	replies  map[string]string
	requests []request
}

func newFakeConn(replies map[string]string) *fakeConn {
	if replies == nil {
		replies = make(map[string]string)
	}
	if _, ok := replies["3,ScriptRemote,7"]; !ok {
		replies["3,ScriptRemote,7"] = "3,ScriptRemote,6.0.1"
	}

	return &fakeConn{replies: replies}
}

func (f *fakeConn) SendStringAndWaitForReplyString(payload string, ch telegram.Channel, timeout time.Duration, replyCh telegram.Channel) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, request{payload: payload, ch: ch, timeout: timeout})

	if reply, ok := f.replies[payload]; ok {
		return reply, nil
	}
	if ch == telegram.ChannelScript && strings.HasPrefix(payload, "1:") {
		return "OK\r", nil
	}

	return "", remote.ErrReceiveTimeout
}

func (f *fakeConn) ConnectionName() string {
	return "ScriptRemote"
}

// payloads returns the payloads sent on ch.
func (f *fakeConn) payloads(ch telegram.Channel) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, r := range f.requests {
		if r.ch == ch {
			out = append(out, r.payload)
		}
	}

	return out
}
