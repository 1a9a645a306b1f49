package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"linebot-relay-go/internal/middleware"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/log"
)

// AdminHandler 负责处理 prompt 规则、跳过关键词与消息检索。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// PromptRuleRequest 定义了创建/更新 prompt 规则 API 的请求体结构。
type PromptRuleRequest struct {
	TriggerText  string `json:"triggerText"`
	SystemPrompt string `json:"systemPrompt"`
}

// SkipKeywordRequest 定义了创建跳过关键词 API 的请求体结构。
type SkipKeywordRequest struct {
	Text string `json:"text" binding:"required"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respond(c, http.StatusBadRequest, "无效的 ID", nil)
		return 0, false
	}
	return uint(id), true
}

func adminID(c *gin.Context) uint {
	if claims, ok := middleware.AdminClaims(c); ok {
		return claims.AdminID
	}
	return 0
}

// ListPromptRules 处理获取所有 prompt 规则的请求。
func (h *AdminHandler) ListPromptRules(c *gin.Context) {
	rules, err := h.adminService.ListPromptRules(c.Request.Context())
	if err != nil {
		log.Error("ListPromptRules: failed to list rules", err)
		respond(c, http.StatusInternalServerError, "获取规则列表失败", nil)
		return
	}
	respond(c, http.StatusOK, "Prompt rules retrieved successfully", rules)
}

// CreatePromptRule 处理创建 prompt 规则的请求。
func (h *AdminHandler) CreatePromptRule(c *gin.Context) {
	var req PromptRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TriggerText == "" || req.SystemPrompt == "" {
		log.Warnf("CreatePromptRule: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "无效的请求负载", nil)
		return
	}

	rule, err := h.adminService.CreatePromptRule(c.Request.Context(), req.TriggerText, req.SystemPrompt, adminID(c))
	if err != nil {
		if errors.Is(err, service.ErrPromptRuleExists) {
			respond(c, http.StatusConflict, "触发词已存在", nil)
			return
		}
		log.Error("CreatePromptRule: failed to create rule", err)
		respond(c, http.StatusInternalServerError, "创建规则失败", nil)
		return
	}
	log.Infof("Prompt rule %d created by admin %d", rule.ID, adminID(c))
	respond(c, http.StatusCreated, "Prompt rule created successfully", rule)
}

// UpdatePromptRule 处理更新 prompt 规则的请求。
func (h *AdminHandler) UpdatePromptRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req PromptRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "无效的请求负载", nil)
		return
	}

	rule, err := h.adminService.UpdatePromptRule(c.Request.Context(), id, req.TriggerText, req.SystemPrompt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPromptRuleNotFound):
			respond(c, http.StatusNotFound, "规则不存在", nil)
		case errors.Is(err, service.ErrPromptRuleExists):
			respond(c, http.StatusConflict, "触发词已存在", nil)
		default:
			log.Error("UpdatePromptRule: failed to update rule", err)
			respond(c, http.StatusInternalServerError, "更新规则失败", nil)
		}
		return
	}
	respond(c, http.StatusOK, "Prompt rule updated successfully", rule)
}

// DeletePromptRule 处理删除 prompt 规则的请求。
func (h *AdminHandler) DeletePromptRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.adminService.DeletePromptRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPromptRuleNotFound) {
			respond(c, http.StatusNotFound, "规则不存在", nil)
			return
		}
		log.Error("DeletePromptRule: failed to delete rule", err)
		respond(c, http.StatusInternalServerError, "删除规则失败", nil)
		return
	}
	respond(c, http.StatusOK, "Prompt rule deleted successfully", nil)
}

// ListSkipKeywords 处理获取所有跳过关键词的请求。
func (h *AdminHandler) ListSkipKeywords(c *gin.Context) {
	kws, err := h.adminService.ListSkipKeywords(c.Request.Context())
	if err != nil {
		log.Error("ListSkipKeywords: failed to list keywords", err)
		respond(c, http.StatusInternalServerError, "获取关键词列表失败", nil)
		return
	}
	respond(c, http.StatusOK, "Skip keywords retrieved successfully", kws)
}

// CreateSkipKeyword 处理创建跳过关键词的请求。
func (h *AdminHandler) CreateSkipKeyword(c *gin.Context) {
	var req SkipKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "无效的请求负载", nil)
		return
	}
	kw, err := h.adminService.CreateSkipKeyword(c.Request.Context(), req.Text, adminID(c))
	if err != nil {
		if errors.Is(err, service.ErrSkipKeywordExists) {
			respond(c, http.StatusConflict, "关键词已存在", nil)
			return
		}
		log.Error("CreateSkipKeyword: failed to create keyword", err)
		respond(c, http.StatusInternalServerError, "创建关键词失败", nil)
		return
	}
	respond(c, http.StatusCreated, "Skip keyword created successfully", kw)
}

// DeleteSkipKeyword 处理删除跳过关键词的请求。
func (h *AdminHandler) DeleteSkipKeyword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.adminService.DeleteSkipKeyword(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrSkipKeywordNotFound) {
			respond(c, http.StatusNotFound, "关键词不存在", nil)
			return
		}
		log.Error("DeleteSkipKeyword: failed to delete keyword", err)
		respond(c, http.StatusInternalServerError, "删除关键词失败", nil)
		return
	}
	respond(c, http.StatusOK, "Skip keyword deleted successfully", nil)
}

// SearchTurns 处理分页检索消息的请求。
func (h *AdminHandler) SearchTurns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	filter := repository.TurnFilter{
		UserID:    c.Query("user_id"),
		SessionID: c.Query("session_id"),
		Query:     c.Query("q"),
	}

	resp, err := h.adminService.SearchTurns(c.Request.Context(), filter, page, size)
	if err != nil {
		log.Error("SearchTurns: failed to search turns", err)
		respond(c, http.StatusInternalServerError, "检索消息失败", nil)
		return
	}
	respond(c, http.StatusOK, "Turns retrieved successfully", resp)
}
