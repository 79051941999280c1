package handlers

import (
	"net/http"

	"visamate-backend/httpx"
	"visamate-backend/middleware"
	"visamate-backend/models"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
)

// UserHandler serves the signed-in user's profile, timeline and checklist
type UserHandler struct {
	profiles  *service.ProfileService
	timeline  *service.TimelineService
	checklist *service.ChecklistService
}

// NewUserHandler creates a new user handler
func NewUserHandler(profiles *service.ProfileService, timeline *service.TimelineService, checklist *service.ChecklistService) *UserHandler {
	return &UserHandler{
		profiles:  profiles,
		timeline:  timeline,
		checklist: checklist,
	}
}

// GetProfile handles GET /user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	user, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, user.Public())
}

// UpdateProfile handles PUT /user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		invalidBody(c, err)
		return
	}

	user, err := h.profiles.Update(c.Request.Context(), service.UpdateProfileRequest{
		UserID: userID,
		Update: update,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, user.Public())
}

// GetTimeline handles GET /user/timeline
func (h *UserHandler) GetTimeline(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	entries, err := h.timeline.List(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, entries)
}

type appendTimelineBody struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Type        models.TimelineEntryType `json:"type"`
	Status      string                   `json:"status"`
}

// AppendTimeline handles POST /user/timeline
func (h *UserHandler) AppendTimeline(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var body appendTimelineBody
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidBody(c, err)
		return
	}

	entry, err := h.timeline.Append(c.Request.Context(), service.AppendTimelineRequest{
		UserID:      userID,
		Title:       body.Title,
		Description: body.Description,
		Type:        body.Type,
		Status:      body.Status,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, entry)
}

// GetChecklist handles GET /user/checklist
func (h *UserHandler) GetChecklist(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	checklist, err := h.checklist.Get(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, checklist)
}

// UpdateChecklistItem handles PUT /user/checklist/:itemId and returns the
// whole checklist with the recomputed profile
func (h *UserHandler) UpdateChecklistItem(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var update models.ChecklistItemUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		invalidBody(c, err)
		return
	}

	result, err := h.checklist.UpdateItem(c.Request.Context(), service.UpdateItemRequest{
		UserID: userID,
		ItemID: c.Param("itemId"),
		Update: update,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{
		"checklist": result.Checklist,
		"user":      result.User.Public(),
	})
}
