package domain

// Command names one of the instructions a call script may contain.
type Command string

const (
	CommandForwardCall  Command = "forwardCall"
	CommandSendSms      Command = "sendSms"
	CommandSay          Command = "say"
	CommandSendDigits   Command = "sendDigits"
	CommandGatherDigits Command = "gatherDigits"
	CommandPlay         Command = "play"
	CommandHangUp       Command = "hangUp"
)

// DefaultBranch is the gatherDigits branch taken when no other key matches.
const DefaultBranch = "default"

// Commands lists every supported command in declaration order.
var Commands = []Command{
	CommandForwardCall,
	CommandSendSms,
	CommandSay,
	CommandSendDigits,
	CommandGatherDigits,
	CommandPlay,
	CommandHangUp,
}

// IsValid reports whether c is one of the supported commands.
func (c Command) IsValid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

func (c Command) String() string {
	return string(c)
}
