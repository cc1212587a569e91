package lra

// The five service payloads travel as raw ASCII packet bodies. A packet
// whose body is not an exact token match is data traffic; there is no
// framing header.
const (
	helloSendToken    = "LRA_HELLO_SEND_MESSAGE"
	helloRecvToken    = "LRA_HELLO_RECV_MESSAGE"
	ackSendToken      = "LRA_ACK_SEND_MESSAGE"
	ackRecvToken      = "LRA_ACK_RECV_MESSAGE"
	reversalSendToken = "LRA_REVERSAL_SEND_MESSAGE"
)

// ServiceType identifies one of the in-band control payloads.
type ServiceType int

const (
	// HelloSend announces a node to its neighborhood.
	HelloSend ServiceType = iota

	// HelloRecv is the delayed acknowledgement to a HELLO.
	HelloRecv

	// AckSend asks a neighbor whether it is still reachable.
	AckSend

	// AckRecv answers an AckSend.
	AckRecv

	// ReversalSend tells neighbors the sender has just reversed its links.
	ReversalSend
)

func (t ServiceType) String() string {
	switch t {
	case HelloSend:
		return helloSendToken
	case HelloRecv:
		return helloRecvToken
	case AckSend:
		return ackSendToken
	case AckRecv:
		return ackRecvToken
	case ReversalSend:
		return reversalSendToken
	}
	return "LRA_UNKNOWN_MESSAGE"
}

// Payload returns the on-wire body for the service type.
func (t ServiceType) Payload() []byte {
	return []byte(t.String())
}

// ParseService classifies a packet body by exact string equality.
func ParseService(payload []byte) (ServiceType, bool) {
	switch string(payload) {
	case helloSendToken:
		return HelloSend, true
	case helloRecvToken:
		return HelloRecv, true
	case ackSendToken:
		return AckSend, true
	case ackRecvToken:
		return AckRecv, true
	case reversalSendToken:
		return ReversalSend, true
	}
	return 0, false
}

// recvStatus is the outcome of handling a received payload.
type recvStatus int

const (
	// recvService means the payload was a service message and was consumed.
	recvService recvStatus = iota

	// recvNotService means the payload is data traffic.
	recvNotService

	// recvError means a service message revealed an inconsistency (a
	// forming cycle) and the packet must not be delivered.
	recvError
)
