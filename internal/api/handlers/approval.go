package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roea-ai/botmind/internal/core/approval"
)

// ApprovalHandler lets owners list and answer approval requests.
type ApprovalHandler struct {
	approvals *approval.Manager
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvals *approval.Manager) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// List returns the principal's requests. ?all=true includes resolved ones.
func (h *ApprovalHandler) List(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	pendingOnly := c.Query("all") != "true"
	out := h.approvals.List(principal, pendingOnly)
	if out == nil {
		out = []approval.Request{}
	}
	c.JSON(http.StatusOK, out)
}

// Answer approves or denies a request.
func (h *ApprovalHandler) Answer(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.approvals.Answer(c.Param("id"), principal, *req.Approve)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
