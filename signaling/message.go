package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is a protoo frame. Exactly one of Request, Response and Notification is set.
type Message struct {
	Request      bool            `json:"request,omitempty"`
	Response     bool            `json:"response,omitempty"`
	Notification bool            `json:"notification,omitempty"`
	Id           uint32          `json:"id,omitempty"`
	Method       string          `json:"method,omitempty"`
	Ok           bool            `json:"ok,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    int             `json:"errorCode,omitempty"`
	ErrorReason  string          `json:"errorReason,omitempty"`
}

// ResponseError is a rejected request.
type ResponseError struct {
	Code   int
	Reason string
}

func (e ResponseError) Error() string {
	return fmt.Sprintf("request failed [code:%d]: %s", e.Code, e.Reason)
}

func marshalData(data interface{}) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(data)
}

func newRequest(id uint32, method string, data json.RawMessage) Message {
	return Message{Request: true, Id: id, Method: method, Data: data}
}

func newSuccessResponse(id uint32, data json.RawMessage) Message {
	return Message{Response: true, Id: id, Ok: true, Data: data}
}

func newErrorResponse(id uint32, code int, reason string) Message {
	return Message{Response: true, Id: id, ErrorCode: code, ErrorReason: reason}
}

func newNotification(method string, data json.RawMessage) Message {
	return Message{Notification: true, Method: method, Data: data}
}
