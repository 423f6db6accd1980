package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/services"
)

type ExportHandler struct {
	facilitatorService services.FacilitatorService
}

func NewExportHandler(facilitatorService services.FacilitatorService) *ExportHandler {
	return &ExportHandler{facilitatorService: facilitatorService}
}

func (eh *ExportHandler) ExportJSON(c *gin.Context) {
	dump, err := eh.facilitatorService.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dump)
}
