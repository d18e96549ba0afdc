package types

import "time"

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

const (
	// DefaultRoleId addresses the implicit pod-level role, which has no capacity limit.
	DefaultRoleId = ""

	RoleLabelOwner  = "owner"
	RoleLabelMember = "member"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

type ActivityType string

const (
	ActivityApplied        ActivityType = "applied"
	ActivityWithdrawn      ActivityType = "withdrawn"
	ActivityAccepted       ActivityType = "accepted"
	ActivityRejected       ActivityType = "rejected"
	ActivityInvited        ActivityType = "invited"
	ActivityInviteDeclined ActivityType = "invite_declined"
	ActivityJoined         ActivityType = "joined"
	ActivityRemoved        ActivityType = "removed"
	ActivityBoosted        ActivityType = "boosted"
	ActivityRolesUpdated   ActivityType = "roles_updated"
)

type Role struct {
	Id             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	SlotCount      int      `json:"slot_count"`
	FilledCount    int      `json:"filled_count"`
	FilledBy       []string `json:"filled_by,omitempty"`
}

func (r Role) OpenSlots() int {
	return max(r.SlotCount-r.FilledCount, 0)
}

func (r Role) Open() bool {
	return r.OpenSlots() > 0
}

type Applicant struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	RoleId    string    `json:"role_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Invite struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	RoleId    string    `json:"role_id,omitempty"`
	InvitedBy string    `json:"invited_by"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	UserId   string    `json:"user_id"`
	RoleId   string    `json:"role_id,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type ActivityEntry struct {
	Type      ActivityType      `json:"type"`
	ActorId   string            `json:"actor_id"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Boost struct {
	Active bool      `json:"active"`
	EndsAt time.Time `json:"ends_at,omitempty"`
}

type Pod struct {
	Id          string          `json:"id"`
	OwnerId     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Visibility  Visibility      `json:"visibility"`
	Roles       []Role          `json:"roles"`
	Members     []Member        `json:"members"`
	Applicants  []Applicant     `json:"applicants"`
	Invites     []Invite        `json:"invites"`
	Activity    []ActivityEntry `json:"activity"`
	Boost       Boost           `json:"boost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Pod) Role(roleId string) (Role, bool) {
	for _, r := range p.Roles {
		if r.Id == roleId {
			return r, true
		}
	}
	return Role{}, false
}

func (p *Pod) Member(userId string) (Member, bool) {
	for _, m := range p.Members {
		if m.UserId == userId {
			return m, true
		}
	}
	return Member{}, false
}

func (p *Pod) IsMember(userId string) bool {
	_, ok := p.Member(userId)
	return ok
}

func (p *Pod) Applicant(applicantId string) (Applicant, bool) {
	for _, a := range p.Applicants {
		if a.Id == applicantId {
			return a, true
		}
	}
	return Applicant{}, false
}

// PendingApplicationOf returns the pending application of userId, if any.
func (p *Pod) PendingApplicationOf(userId string) (Applicant, bool) {
	for _, a := range p.Applicants {
		if a.UserId == userId && a.Status == StatusPending {
			return a, true
		}
	}
	return Applicant{}, false
}

func (p *Pod) Invite(inviteId string) (Invite, bool) {
	for _, i := range p.Invites {
		if i.Id == inviteId {
			return i, true
		}
	}
	return Invite{}, false
}

func (p *Pod) PendingInviteOf(userId string) (Invite, bool) {
	for _, i := range p.Invites {
		if i.UserId == userId && i.Status == StatusPending {
			return i, true
		}
	}
	return Invite{}, false
}

// MemberIds lists the user ids of every member, owner included.
func (p *Pod) MemberIds() []string {
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserId)
	}
	return ids
}
