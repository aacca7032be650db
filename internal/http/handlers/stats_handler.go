package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/esic-backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetStatistics godoc
// @ID          getStatistics
// @Summary     Dashboard statistics
// @Description Recomputed on every call from the stored requests.
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  services.Statistics
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/statistics [get]
func (h *Handlers) GetStatistics(c *gin.Context) {
	st, err := h.statsSvc.Get(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, st)
}

// ExportRequests godoc
// @ID          exportRequests
// @Summary     Spreadsheet export
// @Description XLSX workbook with a Requests sheet (filtered like the listing) and a Statistics sheet.
// @Tags        Admin
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param       status  query  string  false  "Status filter"
// @Param       q       query  string  false  "Search text"
// @Success     200  {file}    file
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /admin/reports/requests.xlsx [get]
func (h *Handlers) ExportRequests(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.reportSvc.Write(c.Request.Context(), &buf, domain.Status(c.Query("status")), c.Query("q")); err != nil {
		failErr(c, err)
		return
	}
	name := fmt.Sprintf("requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
