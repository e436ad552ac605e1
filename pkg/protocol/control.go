package protocol

// Command is a session-internal control command executed by the send side.
type Command uint8

const (
	CommandSendPong  Command = iota + 1 // Reply to a ping
	CommandSubscribe                    // Ask the source to push preview frames
	CommandGetConfig                    // Ask the source for its configuration
	CommandClose                        // Close the connection
)

// Text commands understood by the pattern source.
const (
	TextSendUpdates = `{"sendUpdates":true}`
	TextGetConfig   = `{"getConfig":true}`
)

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case CommandSendPong:
		return "SendPong"
	case CommandSubscribe:
		return "Subscribe"
	case CommandGetConfig:
		return "GetConfig"
	case CommandClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// Wire returns the frame the command is sent as. Pong and Close go out with
// an empty payload.
func (c Command) Wire() (Opcode, []byte) {
	switch c {
	case CommandSendPong:
		return OpPong, nil
	case CommandSubscribe:
		return OpText, []byte(TextSendUpdates)
	case CommandGetConfig:
		return OpText, []byte(TextGetConfig)
	case CommandClose:
		return OpClose, nil
	default:
		return 0, nil
	}
}
