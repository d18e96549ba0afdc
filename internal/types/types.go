package types

import (
	"time"
)

// Now is the clock used for every stored and emitted timestamp. Mongo keeps
// millisecond precision, so values are rounded to match.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsDirect  bool      `json:"is_direct"`
	Members   []string  `json:"members"`
	PairKey   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Room) HasMember(userId string) bool {
	for _, m := range r.Members {
		if m == userId {
			return true
		}
	}
	return false
}

// Message is a post in a room. ReadBy always includes the author.
type Message struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	AuthorId  string    `json:"author_id"`
	Content   string    `json:"content"`
	ReadBy    []string  `json:"read_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) IsReadBy(userId string) bool {
	for _, id := range m.ReadBy {
		if id == userId {
			return true
		}
	}
	return false
}

// DirectPair orders two user ids so that the same pair always yields the same key.
func DirectPair(a, b string) (lo, hi string) {
	if b < a {
		return b, a
	}
	return a, b
}

func DirectPairKey(a, b string) string {
	lo, hi := DirectPair(a, b)
	return lo + ":" + hi
}

type CollabStatus string

const (
	CollabPending   CollabStatus = "pending"
	CollabAccepted  CollabStatus = "accepted"
	CollabRejected  CollabStatus = "rejected"
	CollabCancelled CollabStatus = "cancelled"
)

type CollabRequest struct {
	Id         string       `json:"id"`
	FromUserId string       `json:"from_user_id"`
	ToUserId   string       `json:"to_user_id"`
	Message    string       `json:"message,omitempty"`
	Status     CollabStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	RoomId     string       `json:"room_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
