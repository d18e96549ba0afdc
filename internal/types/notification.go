package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	NotificationCollabRequest           = "collab_request"
	NotificationCollabAccepted          = "collab_accepted"
	NotificationCollabRejected          = "collab_rejected"
	NotificationPodApplicant            = "pod_applicant"
	NotificationPodApplicationWithdrawn = "pod_application_withdrawn"
	NotificationPodMemberJoined         = "pod_member_joined"
	NotificationPodApplicationRejected  = "pod_application_rejected"
	NotificationPodInvite               = "pod_invite"
	NotificationPodInviteAccepted       = "pod_invite_accepted"
	NotificationPodInviteDeclined       = "pod_invite_declined"
	NotificationPodMemberRemoved        = "pod_member_removed"
	NotificationPodCreated              = "pod_created"
)

// NotificationMeta is the per-type payload attached to a notification.
// CollabMeta, PodMeta and OpaqueMeta are the only implementations.
type NotificationMeta interface {
	notificationMeta()
}

type CollabMeta struct {
	RequestId  string `json:"request_id"`
	FromUserId string `json:"from_user_id,omitempty"`
	ToUserId   string `json:"to_user_id,omitempty"`
	RoomId     string `json:"room_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type PodMeta struct {
	PodId       string `json:"pod_id"`
	PodName     string `json:"pod_name,omitempty"`
	UserId      string `json:"user_id,omitempty"`
	RoleId      string `json:"role_id,omitempty"`
	ApplicantId string `json:"applicant_id,omitempty"`
	InviteId    string `json:"invite_id,omitempty"`
	RoomId      string `json:"room_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// OpaqueMeta carries metadata for notification types without a typed payload.
type OpaqueMeta map[string]any

func (CollabMeta) notificationMeta() {}
func (PodMeta) notificationMeta()    {}
func (OpaqueMeta) notificationMeta() {}

type Notification struct {
	Id        string           `json:"id"`
	UserId    string           `json:"user_id"`
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Meta      NotificationMeta `json:"meta,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Meta json.RawMessage `json:"meta,omitempty"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	meta, err := DecodeMeta(n.Type, aux.Meta)
	if err != nil {
		return err
	}
	n.Meta = meta
	return nil
}

// EncodeMeta serializes meta for storage. A nil meta encodes as nil.
func EncodeMeta(meta NotificationMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

// DecodeMeta restores the typed payload for a notification of the given type.
func DecodeMeta(notificationType string, raw []byte) (NotificationMeta, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(notificationType, "collab_"):
		var m CollabMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode collab meta: %w", err)
		}
		return m, nil
	case strings.HasPrefix(notificationType, "pod_"):
		var m PodMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode pod meta: %w", err)
		}
		return m, nil
	default:
		var m OpaqueMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
		return m, nil
	}
}
