package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestNoErrOk(t *testing.T) {
	result := NoErrOK(1, map[string]any{
		"testkey": "testvalue",
	})

	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.WithinDuration(t, Now(), result.Timestamp, time.Second, "expected Timestamp to be within 1 second")
	assert.Equal(t, http.StatusOK, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, map[string]any{"testkey": "testvalue"}, result.Response.Data, "expected Data to match")
}

func TestNoErrAccepted(t *testing.T) {
	result := NoErrAccepted(7)

	assert.Equal(t, 7, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusAccepted, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Empty(t, result.Response.Error, "expected no error")
}

func TestErrFromApp(t *testing.T) {
	tcs := []struct {
		name   string
		err    error
		code   int
		reason string
	}{
		{
			name:   "forbidden",
			err:    apperr.New(apperr.Forbidden, "not a member of this room"),
			code:   http.StatusForbidden,
			reason: "not a member of this room",
		},
		{
			name:   "not found",
			err:    apperr.New(apperr.NotFound, "room not found"),
			code:   http.StatusNotFound,
			reason: "room not found",
		},
		{
			name:   "internal failures hide the cause",
			err:    apperr.Wrap(apperr.Failed, "load room", assert.AnError),
			code:   http.StatusInternalServerError,
			reason: "something went wrong, please retry",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			msg := ErrFromApp(3, tc.err)
			assert.Equal(t, 3, msg.Id, "expected Id to match")
			assert.Equal(t, tc.code, msg.Response.ResponseCode, "expected status for %s", tc.name)
			assert.Equal(t, tc.reason, msg.Response.Error, "expected reason for %s", tc.name)
		})
	}
}

func TestErrInvalidMessage(t *testing.T) {
	t.Run("with id", func(t *testing.T) {
		msg := ErrInvalidMessage(4)
		assert.Equal(t, 4, msg.Id, "expected Id to be kept")
		assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode)
	})
	t.Run("without id", func(t *testing.T) {
		msg := ErrInvalidMessage(-1)
		assert.Equal(t, 0, msg.Id, "expected negative ids to be dropped")
		assert.Equal(t, "invalid message format", msg.Response.Error)
	})
}

func Test_serializeMessage(t *testing.T) {
	t.Run("response", func(t *testing.T) {
		message := &ServerMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Response: &Response{
				ResponseCode: 200,
				Data:         "test data",
			},
		}

		expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
			`","response":{"response_code":200,"data":"test data"}}`

		bytes, err := serializeMessage(message)
		assert.NoError(t, err, "expected no error during serialization")
		assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
	})

	t.Run("event", func(t *testing.T) {
		message := NewEvent(EventPresence, Presence{UserId: "u1", Online: true})

		expected := `{"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
			`","event":{"name":"presence","payload":{"user_id":"u1","online":true}}}`

		bytes, err := serializeMessage(message)
		assert.NoError(t, err, "expected no error during serialization")
		assert.Equal(t, expected, string(bytes), "expected serialized event to match the expected format")
	})
}
