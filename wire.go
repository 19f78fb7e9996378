package treewalk

import (
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
)

// Point-to-point protocol between ranks. The tag travels out of band in the
// Envelope (like an MPI tag); the payload is a CBOR-encoded message whose
// shape is fixed per tag.

type Tag uint8

const (
	TagWorkRequest Tag = iota + 1
	TagWorkReply
	TagToken
	TagShutdown
	// TagGather is reserved for transports that implement Gather on top of
	// point-to-point frames. The walker never sends or receives it directly.
	TagGather Tag = 100
)

func (t Tag) String() string {
	switch t {
	case TagWorkRequest:
		return "work-request"
	case TagWorkReply:
		return "work-reply"
	case TagToken:
		return "token"
	case TagShutdown:
		return "shutdown"
	case TagGather:
		return "gather"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Envelope is one inbound message as delivered by a Transport.
type Envelope struct {
	Source  int
	Tag     Tag
	Payload []byte
}

type MsgWorkRequest struct{}

type MsgWorkReply struct {
	NoWork bool       `cbor:"nw,omitempty"`
	Items  []WorkItem `cbor:"it,omitempty"`
}

type MsgToken struct {
	Color Color `cbor:"c"`
}

type MsgShutdown struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	em, _ := cbor.CanonicalEncOptions().EncMode()
	dm, _ := (cbor.DecOptions{}).DecMode()
	cborEnc, cborDec = em, dm
}

// encodeMessage returns the tag and payload for one of the Msg* types.
func encodeMessage(msg any) (Tag, []byte, error) {
	var tag Tag
	switch msg.(type) {
	case *MsgWorkRequest:
		tag = TagWorkRequest
	case *MsgWorkReply:
		tag = TagWorkReply
	case *MsgToken:
		tag = TagToken
	case *MsgShutdown:
		tag = TagShutdown
	default:
		return 0, nil, fmt.Errorf("%w: cannot encode %T", ErrUnexpectedMessage, msg)
	}
	raw, err := cborEnc.Marshal(msg)
	if err != nil {
		return 0, nil, err
	}
	return tag, raw, nil
}

// decodeMessage decodes env into the concrete message for its tag. Unknown
// tags and malformed payloads are reported as ErrUnexpectedMessage.
func decodeMessage(env Envelope) (any, error) {
	var (
		msg any
		err error
	)
	switch env.Tag {
	case TagWorkRequest:
		var m MsgWorkRequest
		err = cborDec.Unmarshal(env.Payload, &m)
		msg = &m
	case TagWorkReply:
		var m MsgWorkReply
		err = cborDec.Unmarshal(env.Payload, &m)
		msg = &m
	case TagToken:
		var m MsgToken
		if err = cborDec.Unmarshal(env.Payload, &m); err == nil && m.Color != White && m.Color != Black {
			err = fmt.Errorf("invalid token color %d", m.Color)
		}
		msg = &m
	case TagShutdown:
		var m MsgShutdown
		err = cborDec.Unmarshal(env.Payload, &m)
		msg = &m
	default:
		return nil, fmt.Errorf("%w: %s from rank %d", ErrUnexpectedMessage, env.Tag, env.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s from rank %d: %v", ErrUnexpectedMessage, env.Tag, env.Source, err)
	}
	return msg, nil
}
