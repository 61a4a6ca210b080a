package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clausewise/internal/domain"
	"clausewise/internal/export"
	"clausewise/internal/service"
)

// ContractHandler serves the history of analyzed contracts.
type ContractHandler struct {
	contractService service.ContractService
}

// NewContractHandler creates a new ContractHandler.
func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// List handles GET /api/v1/contracts
func (h *ContractHandler) List(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	offset, limit := parsePagination(c)
	contracts, total, err := h.contractService.List(c.Request.Context(), userID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, contracts, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/contracts/:id
func (h *ContractHandler) GetByID(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	contractID, ok := parseContractID(c)
	if !ok {
		return
	}

	contract, err := h.contractService.Get(c.Request.Context(), userID, contractID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, contract)
}

// Delete handles DELETE /api/v1/contracts/:id
func (h *ContractHandler) Delete(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	contractID, ok := parseContractID(c)
	if !ok {
		return
	}

	if err := h.contractService.Delete(c.Request.Context(), userID, contractID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "contract deleted"})
}

// Export handles GET /api/v1/contracts/export?format=csv|xlsx
func (h *ContractHandler) Export(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	format := domain.ExportFormat(c.DefaultQuery("format", string(domain.ExportFormatCSV)))

	// Rendered into memory first so a failure can still be sent as JSON.
	var buf bytes.Buffer
	if err := h.contractService.Export(c.Request.Context(), userID, format, &buf); err != nil {
		HandleError(c, err)
		return
	}

	mediaType, _ := export.ContentType(format)
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(format, time.Now())+`"`)
	c.Data(http.StatusOK, mediaType, buf.Bytes())
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
