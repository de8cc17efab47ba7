package server

import (
	"github.com/ValentinKolb/netcom/rpc/common"
)

// IRequestHandler is the interface for all simulator request handlers
// It is responsible for answering framed requests against the device registry
type IRequestHandler interface {
	// Handle handles a request and returns a response
	// It takes a Message and the device registry as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, devices *DeviceRegistry) (resp *common.Message)
}
