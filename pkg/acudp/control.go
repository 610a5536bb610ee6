package acudp

// Operation is the last field of a control packet sent to the game.
type Operation int32

const (
	OperationHandshake       Operation = 0
	OperationSubscribeUpdate Operation = 1
	OperationDismiss         Operation = 3
)

const (
	ControlPacketSize = 3 * 4

	controlIdentifier int32 = 1
	controlVersion    int32 = 1
)

func (o Operation) String() string {
	switch o {
	case OperationHandshake:
		return "handshake"
	case OperationSubscribeUpdate:
		return "subscribe"
	case OperationDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

func ControlPacket(op Operation) []byte {
	p := NewPacket(make([]byte, 0, ControlPacketSize))
	p.Write(controlIdentifier)
	p.Write(controlVersion)
	p.Write(int32(op))

	return p.Bytes()
}

func DecodeControlPacket(b []byte) (Operation, error) {
	if err := checkRecordSize("control", b, ControlPacketSize); err != nil {
		return 0, err
	}

	p := NewPacket(b)
	p.Skip(2 * 4)

	return Operation(p.ReadInt32()), nil
}
