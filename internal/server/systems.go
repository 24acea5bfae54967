package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
)

type createSystemsRequest struct {
	LabName         string `json:"labName" binding:"required"`
	NumberOfSystems *int   `json:"numberOfSystems"`
	Description     string `json:"description"`
}

type updateSystemRequest struct {
	LabName     *string `json:"labName"`
	Description *string `json:"description"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) ListLabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labs": s.systems.Labs()})
}

func (s *Server) ListSystems(c *gin.Context) {
	items, err := s.systems.List(c.Request.Context(), systemdomain.ListSystemsRequest{
		LabName:  firstQuery(c.Query, "lab", "labName"),
		Query:    c.Query("q"),
		QRStatus: c.Query("qrStatus"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) GetSystemStats(c *gin.Context) {
	stats, err := s.systems.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) GetSystemByID(c *gin.Context) {
	item, err := s.systems.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) CreateSystems(c *gin.Context) {
	var req createSystemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	items, err := s.systems.Create(c.Request.Context(), systemdomain.CreateSystemsRequest{
		LabName:         req.LabName,
		NumberOfSystems: req.NumberOfSystems,
		Description:     req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, items)
}

func (s *Server) UpdateSystem(c *gin.Context) {
	var req updateSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.systems.Update(c.Request.Context(), systemdomain.UpdateSystemRequest{
		ID:          c.Param("id"),
		LabName:     req.LabName,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) DeleteSystem(c *gin.Context) {
	if err := s.systems.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "System deleted successfully",
	})
}

func (s *Server) BulkDeleteSystems(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("ids", systemdomain.ErrInvalidIDs.Error(), "ids must be a non-empty array of system ids"))
		return
	}

	deleted, err := s.systems.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"deletedCount": deleted,
		"message":      fmt.Sprintf("%d system(s) deleted successfully", deleted),
	})
}

func (s *Server) RegenerateSystemQR(c *gin.Context) {
	item, err := s.systems.RepairQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) RepairPendingQR(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (limit != nil && *limit <= 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
		return
	}
	n := s.cfg.QR.RepairBatch
	if limit != nil {
		n = *limit
	}

	res, err := s.systems.RepairPending(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
