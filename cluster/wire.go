package cluster

import (
	cbor "github.com/fxamacker/cbor/v2"
)

// Frames are a 4-byte big-endian length followed by a CBOR body that starts
// with base{T}. A dialer opens with a hello; after the server acks it, the
// connection carries data frames from the dialer's rank only, ending with a
// bye when the dialer closes cleanly.

type frameType uint8

const (
	ftHello frameType = iota + 1
	ftHelloResp
	ftData
	ftBye // sender finished its walk and will close after every peer says bye
)

// Hello rejection codes.
const (
	rejectAuth uint8 = iota + 1
	rejectPeer
)

type base struct {
	T frameType `cbor:"t"`
}

type msgHello struct {
	base
	From  int    `cbor:"f"`
	Size  int    `cbor:"n"`
	Token string `cbor:"tok,omitempty"`
}

type msgHelloResp struct {
	base
	OK   bool   `cbor:"ok"`
	Code uint8  `cbor:"c,omitempty"`
	Err  string `cbor:"err,omitempty"`
}

type msgData struct {
	base
	Tag     uint8  `cbor:"g"`
	Payload []byte `cbor:"p"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	em, _ := cbor.CanonicalEncOptions().EncMode()
	dm, _ := (cbor.DecOptions{}).DecMode()
	cborEnc, cborDec = em, dm
}
