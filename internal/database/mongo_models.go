package database

import (
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
)

type notificationDoc struct {
	Id        string    `bson:"_id"`
	UserId    string    `bson:"user_id"`
	Type      string    `bson:"type"`
	Message   string    `bson:"message"`
	Meta      string    `bson:"meta,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type roomDoc struct {
	Id        string    `bson:"_id"`
	Name      string    `bson:"name"`
	IsDirect  bool      `bson:"is_direct"`
	Members   []string  `bson:"members"`
	PairKey   string    `bson:"pair_key,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type messageDoc struct {
	Id        string    `bson:"_id"`
	RoomId    string    `bson:"room_id"`
	AuthorId  string    `bson:"author_id"`
	Content   string    `bson:"content"`
	ReadBy    []string  `bson:"read_by"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d messageDoc) toMessage() types.Message {
	return types.Message{
		Id:        d.Id,
		RoomId:    d.RoomId,
		AuthorId:  d.AuthorId,
		Content:   d.Content,
		ReadBy:    d.ReadBy,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// roleDoc stores open_slots next to the counters so a single $elemMatch can
// test capacity.
type roleDoc struct {
	Id             string   `bson:"id"`
	Title          string   `bson:"title"`
	Description    string   `bson:"description"`
	RequiredSkills []string `bson:"required_skills"`
	SlotCount      int      `bson:"slot_count"`
	FilledCount    int      `bson:"filled_count"`
	OpenSlots      int      `bson:"open_slots"`
	FilledBy       []string `bson:"filled_by"`
}

type memberDoc struct {
	UserId   string    `bson:"user_id"`
	RoleId   string    `bson:"role_id"`
	Role     string    `bson:"role"`
	JoinedAt time.Time `bson:"joined_at"`
}

type applicantDoc struct {
	Id        string    `bson:"id"`
	UserId    string    `bson:"user_id"`
	RoleId    string    `bson:"role_id"`
	Message   string    `bson:"message"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

type inviteDoc struct {
	Id        string    `bson:"id"`
	UserId    string    `bson:"user_id"`
	RoleId    string    `bson:"role_id"`
	InvitedBy string    `bson:"invited_by"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

type activityDoc struct {
	Type      string            `bson:"type"`
	ActorId   string            `bson:"actor_id"`
	Meta      map[string]string `bson:"meta,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
}

type boostDoc struct {
	Active bool      `bson:"active"`
	EndsAt time.Time `bson:"ends_at,omitempty"`
}

type podDoc struct {
	Id          string         `bson:"_id"`
	OwnerId     string         `bson:"owner_id"`
	Name        string         `bson:"name"`
	Description string         `bson:"description"`
	Tags        []string       `bson:"tags"`
	Visibility  string         `bson:"visibility"`
	Roles       []roleDoc      `bson:"roles"`
	Members     []memberDoc    `bson:"members"`
	Applicants  []applicantDoc `bson:"applicants"`
	Invites     []inviteDoc    `bson:"invites"`
	Activity    []activityDoc  `bson:"activity"`
	Boost       boostDoc       `bson:"boost"`
	Version     int64          `bson:"version"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
}

type collabDoc struct {
	Id         string    `bson:"_id"`
	FromUserId string    `bson:"from_user_id"`
	ToUserId   string    `bson:"to_user_id"`
	Message    string    `bson:"message"`
	Status     string    `bson:"status"`
	Reason     string    `bson:"reason"`
	RoomId     string    `bson:"room_id"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toRoleDoc(r types.Role) roleDoc {
	return roleDoc{
		Id:             r.Id,
		Title:          r.Title,
		Description:    r.Description,
		RequiredSkills: nonNil(r.RequiredSkills),
		SlotCount:      r.SlotCount,
		FilledCount:    r.FilledCount,
		OpenSlots:      r.OpenSlots(),
		FilledBy:       nonNil(r.FilledBy),
	}
}

func toMemberDoc(m types.Member) memberDoc {
	return memberDoc{UserId: m.UserId, RoleId: m.RoleId, Role: m.Role, JoinedAt: m.JoinedAt}
}

func toApplicantDoc(a types.Applicant) applicantDoc {
	return applicantDoc{
		Id:        a.Id,
		UserId:    a.UserId,
		RoleId:    a.RoleId,
		Message:   a.Message,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func toInviteDoc(i types.Invite) inviteDoc {
	return inviteDoc{
		Id:        i.Id,
		UserId:    i.UserId,
		RoleId:    i.RoleId,
		InvitedBy: i.InvitedBy,
		Status:    string(i.Status),
		CreatedAt: i.CreatedAt,
	}
}

func toActivityDoc(e types.ActivityEntry) activityDoc {
	return activityDoc{Type: string(e.Type), ActorId: e.ActorId, Meta: e.Meta, CreatedAt: e.CreatedAt}
}

func toPodDoc(p types.Pod) podDoc {
	doc := podDoc{
		Id:          p.Id,
		OwnerId:     p.OwnerId,
		Name:        p.Name,
		Description: p.Description,
		Tags:        nonNil(p.Tags),
		Visibility:  string(p.Visibility),
		Roles:       []roleDoc{},
		Members:     []memberDoc{},
		Applicants:  []applicantDoc{},
		Invites:     []inviteDoc{},
		Activity:    []activityDoc{},
		Boost:       boostDoc{Active: p.Boost.Active, EndsAt: p.Boost.EndsAt},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, r := range p.Roles {
		doc.Roles = append(doc.Roles, toRoleDoc(r))
	}
	for _, m := range p.Members {
		doc.Members = append(doc.Members, toMemberDoc(m))
	}
	for _, a := range p.Applicants {
		doc.Applicants = append(doc.Applicants, toApplicantDoc(a))
	}
	for _, i := range p.Invites {
		doc.Invites = append(doc.Invites, toInviteDoc(i))
	}
	for _, e := range p.Activity {
		doc.Activity = append(doc.Activity, toActivityDoc(e))
	}
	return doc
}

func (d podDoc) toPod() types.Pod {
	p := types.Pod{
		Id:          d.Id,
		OwnerId:     d.OwnerId,
		Name:        d.Name,
		Description: d.Description,
		Tags:        d.Tags,
		Visibility:  types.Visibility(d.Visibility),
		Boost:       types.Boost{Active: d.Boost.Active, EndsAt: d.Boost.EndsAt},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, r := range d.Roles {
		p.Roles = append(p.Roles, types.Role{
			Id:             r.Id,
			Title:          r.Title,
			Description:    r.Description,
			RequiredSkills: r.RequiredSkills,
			SlotCount:      r.SlotCount,
			FilledCount:    r.FilledCount,
			FilledBy:       r.FilledBy,
		})
	}
	for _, m := range d.Members {
		p.Members = append(p.Members, types.Member{UserId: m.UserId, RoleId: m.RoleId, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	for _, a := range d.Applicants {
		p.Applicants = append(p.Applicants, types.Applicant{
			Id:        a.Id,
			UserId:    a.UserId,
			RoleId:    a.RoleId,
			Message:   a.Message,
			Status:    types.Status(a.Status),
			CreatedAt: a.CreatedAt,
		})
	}
	for _, i := range d.Invites {
		p.Invites = append(p.Invites, types.Invite{
			Id:        i.Id,
			UserId:    i.UserId,
			RoleId:    i.RoleId,
			InvitedBy: i.InvitedBy,
			Status:    types.Status(i.Status),
			CreatedAt: i.CreatedAt,
		})
	}
	for _, e := range d.Activity {
		p.Activity = append(p.Activity, types.ActivityEntry{
			Type:      types.ActivityType(e.Type),
			ActorId:   e.ActorId,
			Meta:      e.Meta,
			CreatedAt: e.CreatedAt,
		})
	}
	return p
}

func toCollabDoc(r types.CollabRequest) collabDoc {
	return collabDoc{
		Id:         r.Id,
		FromUserId: r.FromUserId,
		ToUserId:   r.ToUserId,
		Message:    r.Message,
		Status:     string(r.Status),
		Reason:     r.Reason,
		RoomId:     r.RoomId,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (d collabDoc) toCollabRequest() types.CollabRequest {
	return types.CollabRequest{
		Id:         d.Id,
		FromUserId: d.FromUserId,
		ToUserId:   d.ToUserId,
		Message:    d.Message,
		Status:     types.CollabStatus(d.Status),
		Reason:     d.Reason,
		RoomId:     d.RoomId,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
