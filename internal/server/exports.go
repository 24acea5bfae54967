package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
)

func (s *Server) ExportSystemsCSV(c *gin.Context) {
	out, err := s.systems.ExportCSV(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeAttachment(c, out)
}

func (s *Server) ExportSystemsXLSX(c *gin.Context) {
	out, err := s.systems.ExportXLSX(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeAttachment(c, out)
}

func (s *Server) ExportLabQRArchive(c *gin.Context) {
	out, err := s.systems.ExportQRArchive(c.Request.Context(), c.Param("labName"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeAttachment(c, out)
}

func (s *Server) ExportLabLabels(c *gin.Context) {
	out, err := s.systems.ExportLabels(c.Request.Context(), c.Param("labName"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeAttachment(c, out)
}

func writeAttachment(c *gin.Context, out systemdomain.Export) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, out.ContentType, out.Data)
}
