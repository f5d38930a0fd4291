package handler

import (
	"net/http"
	"strconv"

	"cogvideo-bot-go/internal/config"
	"cogvideo-bot-go/internal/repository"
	"cogvideo-bot-go/internal/session"
	"cogvideo-bot-go/pkg/token"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler 提供运维侧的管理接口：查看活跃会话、回溯生成记录、
// 调整用户积分。
type AdminHandler struct {
	sessions   *session.Store
	records    repository.GenerationRepository
	points     repository.PointsRepository
	jwtManager *token.JWTManager
	adminCfg   config.AdminConfig
}

// NewAdminHandler 创建一个新的 AdminHandler。
func NewAdminHandler(
	sessions *session.Store,
	records repository.GenerationRepository,
	points repository.PointsRepository,
	jwtManager *token.JWTManager,
	adminCfg config.AdminConfig,
) *AdminHandler {
	return &AdminHandler{
		sessions:   sessions,
		records:    records,
		points:     points,
		jwtManager: jwtManager,
		adminCfg:   adminCfg,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验管理员凭据，签发 JWT。
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	if req.Username != h.adminCfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.adminCfg.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	tokenString, err := h.jwtManager.GenerateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "签发 token 失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

type sessionView struct {
	FromWxid   string `json:"from_wxid"`
	SenderWxid string `json:"sender_wxid"`
	TaskID     string `json:"task_id,omitempty"`
	Status     string `json:"status,omitempty"`
	HasImage   bool   `json:"has_image"`
	LastActive int64  `json:"last_active"`
}

// ListSessions 返回当前所有活跃会话的快照。
func (h *AdminHandler) ListSessions(c *gin.Context) {
	snapshot := h.sessions.Snapshot()
	views := make([]sessionView, 0, len(snapshot))
	for key, st := range snapshot {
		views = append(views, sessionView{
			FromWxid:   key.FromWxid,
			SenderWxid: key.SenderWxid,
			TaskID:     st.TaskID,
			Status:     st.Status,
			HasImage:   st.LastImage != "",
			LastActive: st.LastActive.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

// ListRecords 返回最近的生成记录，limit 默认 50。
func (h *AdminHandler) ListRecords(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	records, err := h.records.FindRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询生成记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type adjustPointsRequest struct {
	Wxid  string `json:"wxid" binding:"required"`
	Delta int64  `json:"delta" binding:"required"`
}

// AdjustPoints 给指定用户增减积分，返回变更后的余额。
func (h *AdminHandler) AdjustPoints(c *gin.Context) {
	var req adjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	balance, err := h.points.AddPoints(c.Request.Context(), req.Wxid, req.Delta)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "积分变更失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wxid": req.Wxid, "balance": balance})
}
