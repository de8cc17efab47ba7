package server

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/netcom/rpc/common"
)

// NewDeviceHandler creates the handler serving device-list, read and write
func NewDeviceHandler() IRequestHandler {
	return &deviceHandlerImpl{}
}

type deviceHandlerImpl struct{}

func (h *deviceHandlerImpl) Handle(req *common.Message, devices *DeviceRegistry) *common.Message {
	// Check for nil registry
	if devices == nil {
		return common.NewErrorResponse("handler: device registry is nil")
	}

	// Handle different request types
	switch req.R {
	case common.ReqDeviceList:
		return result(devices.Names())
	case common.ReqRead:
		device, ok := devices.Load(req.Device)
		if !ok {
			return common.NewErrorResponse(fmt.Sprintf("unknown device: %s", req.Device))
		}
		var names []string
		if err := json.Unmarshal(req.P, &names); err != nil {
			return common.NewErrorResponse(fmt.Sprintf("read: p must be a list of parameter names: %s", err))
		}
		return result(device.Read(names))
	case common.ReqWrite:
		device, ok := devices.Load(req.Device)
		if !ok {
			return common.NewErrorResponse(fmt.Sprintf("unknown device: %s", req.Device))
		}
		var params []common.Param
		if err := json.Unmarshal(req.P, &params); err != nil || params == nil {
			return common.NewErrorResponse("write: p must be a list of [name, value] pairs")
		}
		values := make(map[string]any, len(params))
		for _, param := range params {
			values[param.Name] = param.Value
		}
		device.Write(values)
		return result(params)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("unsupported request type: %q", req.R),
		)
	}
}

// result wraps v in a result response, or an error response if v cannot be encoded
func result(v any) *common.Message {
	resp, err := common.NewResultResponse(v)
	if err != nil {
		return common.NewErrorResponse(err.Error())
	}
	return resp
}
