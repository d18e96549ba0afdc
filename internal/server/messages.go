package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
)

const (
	EventNotification           = "notification"
	EventPresence               = "presence"
	EventRoomMessage            = "roomMessage"
	EventPodApplicant           = "podApplicant"
	EventPodMemberJoined        = "podMemberJoined"
	EventPodApplicationRejected = "podApplicationRejected"
	EventDMListUpdated          = "dmListUpdated"
	EventDMReadReceipt          = "dmReadReceipt"
	EventUserTyping             = "userTyping"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Publish *Publish     `json:"publish,omitempty"`
	Typing  *Typing      `json:"typing,omitempty"`
	Read    *ReadReceipt `json:"read,omitempty"`
	UserId  string       `json:"-"`
	client  *Client      `json:"-"`
}

type Publish struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type Typing struct {
	RoomId   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type ReadReceipt struct {
	RoomId string `json:"room_id"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Event is a server push. Payload is serialized as is.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

type Presence struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

func NewEvent(name string, payload any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: &Event{
			Name:    name,
			Payload: payload,
		},
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

// ErrFromApp reports a failed inbound request using the status and reason of
// its error kind.
func ErrFromApp(id int, err error) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: apperr.KindOf(err).HTTPStatus(),
			Error:        apperr.ReasonOf(err),
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
