package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"video-digest/pkg/analyzer"
	"video-digest/pkg/db"
	"video-digest/pkg/domain"
	"video-digest/pkg/persistence"
	"video-digest/pkg/summarizer"
	"video-digest/pkg/urls"
)

const maxPageSize = 100

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "demo": s.cfg.Demo})
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzer.Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "YouTube URL이 필요합니다."})
		return
	}

	result, err := s.cfg.Analyzer.Analyze(c.Request.Context(), req, currentUser(c))
	if err != nil {
		s.analyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (s *Server) analyzeError(c *gin.Context, err error) {
	var malformed *summarizer.MalformedOutputError
	switch {
	case errors.Is(err, urls.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "유효하지 않은 YouTube URL입니다."})
	case errors.As(err, &malformed):
		s.log.Error("model returned malformed output", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "AI 응답을 해석할 수 없습니다.",
			"details": malformed.Raw,
		})
	default:
		s.log.Error("analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "영상 분석 중 오류가 발생했습니다.",
			"details": err.Error(),
		})
	}
}

// storeError maps record and history errors onto status codes.
func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "찾을 수 없습니다."})
	case errors.Is(err, persistence.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "권한이 없습니다."})
	case errors.Is(err, persistence.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.log.Error("store request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "서버 오류가 발생했습니다."})
	}
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) listHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", persistence.DefaultHistoryLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	entries, err := s.cfg.Store.ListHistory(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) deleteHistory(c *gin.Context) {
	if err := s.cfg.Store.DeleteHistoryEntry(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) clearHistory(c *gin.Context) {
	if err := s.cfg.Store.ClearHistory(c.Request.Context(), currentUser(c).ID); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listAnalyses(c *gin.Context) {
	limit, okLimit := queryInt(c, "limit", persistence.DefaultPageSize)
	offset, okOffset := queryInt(c, "offset", 0)
	if !okLimit || !okOffset {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit or offset"})
		return
	}
	switch {
	case limit == 0:
		limit = persistence.DefaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	records, total, err := s.cfg.Store.ListRecords(c.Request.Context(), domain.RecordQuery{
		UserID:  currentUser(c).ID,
		TagName: c.Query("tag"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.storeError(c, err)
		return
	}
	if records == nil {
		records = []domain.ContentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   records,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) saveAnalysis(c *gin.Context) {
	var in persistence.SaveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := s.cfg.Store.SaveRecord(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"analysis": rec,
		"message":  "분석 결과가 저장되었습니다.",
	})
}

func (s *Server) getAnalysis(c *gin.Context) {
	rec, err := s.cfg.Store.GetRecord(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

type updateRequest struct {
	domain.RecordUpdate
	// Tags replaces the record's tags when present; an empty list clears them.
	Tags []string `json:"tags"`
}

func (s *Server) updateAnalysis(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := s.cfg.Store.UpdateRecord(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.RecordUpdate, req.Tags)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (s *Server) deleteAnalysis(c *gin.Context) {
	if err := s.cfg.Store.DeleteRecord(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) replaceTags(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tags, err := s.cfg.Store.ReplaceTags(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Tags)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{"data": tags})
}

func (s *Server) listTags(c *gin.Context) {
	tags, err := s.cfg.Store.ListTags(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tags})
}
