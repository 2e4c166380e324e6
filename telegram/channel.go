package telegram

import "strconv"

// Channel is the one byte logical channel id carried by every telegram.
type Channel uint8

const (
	// ChannelScript carries script commands ("1:<cmd>:") and their replies.
	ChannelScript Channel = 2
	// ChannelGoodbye is send-only and carries the goodbye telegram on disconnect.
	ChannelGoodbye Channel = 4
	// ChannelOnlineDisplay carries online display data.
	ChannelOnlineDisplay Channel = 42
	// ChannelControl carries Term control messages such as version, heartbeat and file requests.
	ChannelControl Channel = 128
	// ChannelFileLength carries the decimal byte length of a transferred file.
	ChannelFileLength Channel = 129
	// ChannelFilePath carries the remote path of a transferred file.
	ChannelFilePath Channel = 130
	// ChannelFileData carries file body chunks.
	ChannelFileData Channel = 131
	// ChannelFileAck carries acknowledgements of file exchange control messages.
	ChannelFileAck Channel = 132
)

// DefaultChannels returns the receive channels registered by a connection unless configured otherwise.
func DefaultChannels() []Channel {
	return []Channel{
		ChannelScript,
		ChannelOnlineDisplay,
		ChannelControl,
		ChannelFileLength,
		ChannelFilePath,
		ChannelFileData,
		ChannelFileAck,
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelScript:
		return "script"
	case ChannelGoodbye:
		return "goodbye"
	case ChannelOnlineDisplay:
		return "online-display"
	case ChannelControl:
		return "control"
	case ChannelFileLength:
		return "file-length"
	case ChannelFilePath:
		return "file-path"
	case ChannelFileData:
		return "file-data"
	case ChannelFileAck:
		return "file-ack"
	default:
		return "channel-" + strconv.Itoa(int(c))
	}
}
