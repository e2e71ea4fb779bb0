package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satyaki-up/sprintboard/internal/board"
)

const maxActivityLimit = 200

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// Epics

type epicRequest struct {
	BoardID     string `json:"board_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Ease        int    `json:"ease"`
	Impact      int    `json:"impact"`
	Confidence  int    `json:"confidence"`
}

type epicPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Ease        *int    `json:"ease"`
	Impact      *int    `json:"impact"`
	Confidence  *int    `json:"confidence"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleListEpics(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"
	epics := s.store.ListEpics(c.Query("board"), includeDeleted)
	ok(c, http.StatusOK, epics)
}

func (s *Server) handleCreateEpic(c *gin.Context) {
	var req epicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	epic, err := s.store.CreateEpic(board.EpicInput{
		BoardID:     req.BoardID,
		Name:        req.Name,
		Description: req.Description,
		Ease:        req.Ease,
		Impact:      req.Impact,
		Confidence:  req.Confidence,
		Actor:       s.actor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, epic)
}

func (s *Server) handleGetEpic(c *gin.Context) {
	epic, err := s.store.GetEpic(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, epic)
}

func (s *Server) handleUpdateEpic(c *gin.Context) {
	var req epicPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	epic, err := s.store.UpdateEpic(c.Param("id"), board.EpicPatch{
		Actor:       s.actor(c),
		Name:        req.Name,
		Description: req.Description,
		Ease:        req.Ease,
		Impact:      req.Impact,
		Confidence:  req.Confidence,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, epic)
}

func (s *Server) handleEpicStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	epic, err := s.store.UpdateEpicStatus(c.Param("id"), board.EpicStatus(req.Status), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, epic)
}

func (s *Server) handleDeleteEpic(c *gin.Context) {
	epic, err := s.store.DeleteEpic(c.Param("id"), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, epic)
}

func (s *Server) handleRestoreEpic(c *gin.Context) {
	epic, err := s.store.RestoreEpic(c.Param("id"), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, epic)
}

// Sprints

type sprintRequest struct {
	BoardID   string     `json:"board_id"`
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	EpicIDs   []string   `json:"epic_ids"`
	TeamID    string     `json:"team_id"`
}

type stateRequest struct {
	State string `json:"state"`
}

func (s *Server) handleListSprints(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"
	ok(c, http.StatusOK, s.store.ListSprints(c.Query("board"), includeDeleted))
}

func (s *Server) handleSelectableSprints(c *gin.Context) {
	sprints := s.store.SelectableSprints(s.actor(c), board.SprintFilter{
		BoardID:       c.Query("board"),
		IncludeClosed: c.Query("include_closed") == "true",
	})
	ok(c, http.StatusOK, sprints)
}

// handleSaveSprint serves both POST /sprints and PUT /sprints/:id.
func (s *Server) handleSaveSprint(c *gin.Context) {
	var req sprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	id := c.Param("id")
	sp, err := s.store.SaveSprint(board.SprintInput{
		ID:        id,
		BoardID:   req.BoardID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		EpicIDs:   req.EpicIDs,
		TeamID:    req.TeamID,
		Actor:     s.actor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	ok(c, status, sp)
}

func (s *Server) handleSprintState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	sp, err := s.store.UpdateSprintState(c.Param("id"), board.SprintState(req.State), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sp)
}

// handleDeleteSprint honours ?reassign=<id>. Without it the configured
// policy applies, and the reassign policy still needs a target.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	target := strings.TrimSpace(c.Query("reassign"))
	if target == "" && s.opts.DeletePolicy == "reassign" {
		badRequest(c, "delete policy is reassign: reassign query parameter required")
		return
	}
	sp, err := s.store.DeleteSprint(c.Param("id"), board.DeletePolicy{ReassignTo: target}, s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sp)
}

func (s *Server) handleRestoreSprint(c *gin.Context) {
	sp, err := s.store.RestoreSprint(c.Param("id"), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sp)
}

// Items

type itemRequest struct {
	BoardID  string     `json:"board_id"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Assignee string     `json:"assignee"`
	Priority string     `json:"priority"`
	EpicID   string     `json:"epic_id"`
	SprintID string     `json:"sprint_id"`
	TeamID   string     `json:"team_id"`
	Watchers []string   `json:"watchers"`
	DueDate  *time.Time `json:"due_date"`
}

type itemPatchRequest struct {
	Title        *string    `json:"title"`
	Status       *string    `json:"status"`
	Assignee     *string    `json:"assignee"`
	Priority     *string    `json:"priority"`
	EpicID       *string    `json:"epic_id"`
	SprintID     *string    `json:"sprint_id"`
	TeamID       *string    `json:"team_id"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Version      *int64     `json:"version"`
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleListItems(c *gin.Context) {
	f := board.ViewFilter{
		Assignee: c.Query("assignee"),
		EpicID:   c.Query("epic"),
		SprintID: c.Query("sprint"),
		Text:     c.Query("q"),
	}
	for _, st := range c.QueryArray("status") {
		f.Statuses = append(f.Statuses, board.ItemStatus(st))
	}
	for _, p := range c.QueryArray("priority") {
		f.Priorities = append(f.Priorities, board.Priority(p))
	}
	if viewID := c.Query("view"); viewID != "" {
		view, found := s.findView(s.actor(c), viewID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "view not found"})
			return
		}
		f = view.Filter
	}
	ok(c, http.StatusOK, s.store.ListItems(c.Query("board"), f))
}

func (s *Server) handleCreateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	item, err := s.store.CreateItem(board.ItemInput{
		BoardID:  req.BoardID,
		Title:    req.Title,
		Status:   board.ItemStatus(req.Status),
		Assignee: req.Assignee,
		Reporter: s.actor(c),
		Priority: board.Priority(req.Priority),
		EpicID:   req.EpicID,
		SprintID: req.SprintID,
		TeamID:   req.TeamID,
		Watchers: req.Watchers,
		DueDate:  req.DueDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

func (s *Server) handleGetItem(c *gin.Context) {
	item, err := s.store.GetItem(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	var req itemPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	patch := board.ItemPatch{
		Actor:        s.actor(c),
		Title:        req.Title,
		Assignee:     req.Assignee,
		EpicID:       req.EpicID,
		SprintID:     req.SprintID,
		TeamID:       req.TeamID,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if req.Status != nil {
		st := board.ItemStatus(*req.Status)
		patch.Status = &st
	}
	if req.Priority != nil {
		p := board.Priority(*req.Priority)
		patch.Priority = &p
	}
	item, err := s.store.UpdateItem(c.Param("id"), patch, req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	item, err := s.store.AddComment(c.Param("id"), s.actor(c), req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

func (s *Server) handleWatch(c *gin.Context) {
	item, err := s.store.Watch(c.Param("id"), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

func (s *Server) handleUnwatch(c *gin.Context) {
	item, err := s.store.Unwatch(c.Param("id"), s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// Toasts

func (s *Server) handleListToasts(c *gin.Context) {
	ok(c, http.StatusOK, s.toasts.List())
}

func (s *Server) handleDismissToast(c *gin.Context) {
	if !s.toasts.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "toast not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Views

type viewRequest struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Filter     board.ViewFilter `json:"filter"`
	Visibility string           `json:"visibility"`
	Pinned     bool             `json:"pinned"`
	Default    bool             `json:"default"`
}

func (s *Server) handleListViews(c *gin.Context) {
	ok(c, http.StatusOK, s.store.ListViews(s.actor(c)))
}

func (s *Server) handleSaveView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	view, err := s.store.SaveView(board.SavedView{
		ID:         req.ID,
		Owner:      s.actor(c),
		Name:       req.Name,
		Filter:     req.Filter,
		Visibility: board.Visibility(req.Visibility),
		Pinned:     req.Pinned,
		Default:    req.Default,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	ok(c, status, view)
}

func (s *Server) handleDeleteView(c *gin.Context) {
	if err := s.store.DeleteView(c.Param("id"), s.actor(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) findView(user, id string) (board.SavedView, bool) {
	for _, v := range s.store.ListViews(user) {
		if v.ID == id {
			return v, true
		}
	}
	return board.SavedView{}, false
}

// Notifications, teams and invites

func (s *Server) handleListNotifications(c *gin.Context) {
	unread := c.Query("unread") == "true"
	ok(c, http.StatusOK, s.store.ListNotifications(s.actor(c), unread))
}

// handleMarkRead only lets the recipient mark their own notification.
func (s *Server) handleMarkRead(c *gin.Context) {
	id := c.Param("id")
	mine := false
	for _, n := range s.store.ListNotifications(s.actor(c), false) {
		if n.ID == id {
			mine = true
			break
		}
	}
	if !mine {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "notification not found"})
		return
	}
	n, err := s.store.MarkRead(id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

type teamRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type inviteRequest struct {
	Invitee string `json:"invitee"`
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

func (s *Server) handleCreateTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	team, err := s.store.CreateTeam(req.Name, req.Members, s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, team)
}

func (s *Server) handleInvite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	inv, err := s.store.Invite(c.Param("id"), req.Invitee, s.actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, inv)
}

// handleRespondInvite only lets the invitee answer their own invite.
func (s *Server) handleRespondInvite(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	id := c.Param("id")
	mine := false
	for _, inv := range s.store.ListInvites(s.actor(c), false) {
		if inv.ID == id {
			mine = true
			break
		}
	}
	if !mine {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invite not found"})
		return
	}
	inv, err := s.store.RespondInvite(id, req.Accept)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, inv)
}

// Activity

func (s *Server) handleActivity(c *gin.Context) {
	if s.opts.Activity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "activity log not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	records, err := s.opts.Activity.RecentChanges(c.Request.Context(), board.EntityKind(c.Query("kind")), c.Query("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, records)
}
