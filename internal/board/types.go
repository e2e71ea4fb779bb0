package board

import "time"

type ItemStatus string

const (
	ItemBacklog    ItemStatus = "backlog"
	ItemTodo       ItemStatus = "todo"
	ItemInProgress ItemStatus = "in_progress"
	ItemInReview   ItemStatus = "in_review"
	ItemDone       ItemStatus = "done"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type EpicStatus string

const (
	EpicActive   EpicStatus = "active"
	EpicOnHold   EpicStatus = "on_hold"
	EpicDone     EpicStatus = "done"
	EpicArchived EpicStatus = "archived"
	EpicDeleted  EpicStatus = "deleted"
)

type SprintState string

const (
	SprintPlanned SprintState = "planned"
	SprintActive  SprintState = "active"
	SprintClosed  SprintState = "closed"
	SprintDeleted SprintState = "deleted"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityGroup   Visibility = "group"
)

type InviteState string

const (
	InvitePending  InviteState = "pending"
	InviteAccepted InviteState = "accepted"
	InviteDeclined InviteState = "declined"
)

type WorkItem struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"board_id"`
	Title     string     `json:"title"`
	Status    ItemStatus `json:"status"`
	Assignee  string     `json:"assignee,omitempty"`
	Reporter  string     `json:"reporter"`
	Priority  Priority   `json:"priority"`
	EpicID    string     `json:"epic_id,omitempty"`
	Epic      string     `json:"epic,omitempty"`
	SprintID  string     `json:"sprint_id,omitempty"`
	Sprint    string     `json:"sprint"`
	TeamID    string     `json:"team_id,omitempty"`
	Watchers  []string   `json:"watchers"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Comments  []Comment  `json:"comments,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `json:"version"`
}

type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Epic groups work items and carries the ICE prioritisation inputs.
type Epic struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"board_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Ease        int        `json:"ease"`
	Impact      int        `json:"impact"`
	Confidence  int        `json:"confidence"`
	ICEScore    float64    `json:"ice_score"`
	Status      EpicStatus `json:"status"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Sprint struct {
	ID        string      `json:"id"`
	BoardID   string      `json:"board_id"`
	Number    int         `json:"number"`
	Name      string      `json:"name"`
	Goal      string      `json:"goal,omitempty"`
	StartDate *time.Time  `json:"start_date,omitempty"`
	EndDate   *time.Time  `json:"end_date,omitempty"`
	State     SprintState `json:"state"`
	EpicIDs   []string    `json:"epic_ids"`
	TeamID    string      `json:"team_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Notification struct {
	ID         string     `json:"id"`
	Recipient  string     `json:"recipient"`
	Actor      string     `json:"actor"`
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Section    string     `json:"section,omitempty"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ViewFilter struct {
	Statuses   []ItemStatus `json:"statuses,omitempty"`
	Assignee   string       `json:"assignee,omitempty"`
	EpicID     string       `json:"epic_id,omitempty"`
	SprintID   string       `json:"sprint_id,omitempty"`
	Priorities []Priority   `json:"priorities,omitempty"`
	Text       string       `json:"text,omitempty"`
}

type SavedView struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	Filter     ViewFilter `json:"filter"`
	Visibility Visibility `json:"visibility"`
	Pinned     bool       `json:"pinned"`
	Default    bool       `json:"default"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type Invite struct {
	ID        string      `json:"id"`
	TeamID    string      `json:"team_id"`
	Invitee   string      `json:"invitee"`
	InvitedBy string      `json:"invited_by"`
	State     InviteState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Snapshot is a full copy of the store's collections.
type Snapshot struct {
	Items         []WorkItem     `json:"items"`
	Epics         []Epic         `json:"epics"`
	Sprints       []Sprint       `json:"sprints"`
	Views         []SavedView    `json:"views"`
	Teams         []Team         `json:"teams"`
	Invites       []Invite       `json:"invites"`
	Notifications []Notification `json:"notifications"`
}
