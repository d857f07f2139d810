package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
	"github.com/SscSPs/accounts_reconciliation/internal/middleware"
)

const (
	bankFileField = "bank_file"
	bookFileField = "book_file"
)

// reconciliationHandler handles HTTP requests related to reconciliation sessions.
type reconciliationHandler struct {
	reconciliationService portssvc.ReconciliationSvcFacade
	maxUploadBytes        int64
}

func newReconciliationHandler(rs portssvc.ReconciliationSvcFacade, maxUploadBytes int64) *reconciliationHandler {
	return &reconciliationHandler{
		reconciliationService: rs,
		maxUploadBytes:        maxUploadBytes,
	}
}

// registerReconciliationRoutes registers routes related to reconciliation sessions.
func registerReconciliationRoutes(rg *gin.RouterGroup, rs portssvc.ReconciliationSvcFacade, maxUploadBytes int64) {
	h := newReconciliationHandler(rs, maxUploadBytes)

	recs := rg.Group("/reconciliations")
	{
		recs.POST("", h.createSession)
		recs.POST("/import", h.importSession)
		recs.GET("", h.listSessions)

		session := recs.Group("/:sessionID")
		{
			session.GET("", h.getSession)
			session.GET("/stats", h.getStats)
			session.POST("/auto-match", h.runAutoMatch)
			session.POST("/confirm", h.confirm)

			pairs := session.Group("/pairs")
			{
				pairs.POST("", h.manualPair)
				pairs.DELETE("/:pairID", h.unpair)
				pairs.POST("/:pairID/accept", h.accept)
				pairs.POST("/:pairID/adjust", h.adjust)
				pairs.POST("/:pairID/escalate", h.escalate)
			}
		}
	}
}

// operatorID reads the authenticated operator. It answers 401 itself when none is present.
func operatorID(c *gin.Context) (string, bool) {
	id, ok := middleware.GetOperatorIDFromContext(c)
	if !ok {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Operator ID not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
	}
	return id, ok
}

// createSession godoc
// @Summary Open a reconciliation session
// @Description Normalizes bank statement and ledger rows, runs the matcher and stores the session.
// @Description Rows that cannot be normalized are reported in importErrors and left out of the session.
// @Tags reconciliations
// @Accept  json
// @Produce  json
// @Param   session body dto.CreateSessionRequest true "Session header and raw rows"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid input or matcher configuration"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 413 {object} ErrorResponse "Request body too large"
// @Failure 500 {object} ErrorResponse "Failed to create session"
// @Security BearerAuth
// @Router /reconciliations [post]
func (h *reconciliationHandler) createSession(c *gin.Context) {
	h.limitBody(c)
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if h.rejectTooLarge(c, err) {
			return
		}
		bindError(c, err, "create session request")
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}

	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	logger.Info("Received request to create reconciliation session",
		slog.String("account_id", req.AccountID), slog.Int("bank_rows", len(req.BankRows)), slog.Int("book_rows", len(req.BookRows)))

	resp, err := h.reconciliationService.CreateSession(c.Request.Context(), req, opID)
	if err != nil {
		respondError(c, err, "create reconciliation session")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// importSession godoc
// @Summary Open a reconciliation session from CSV exports
// @Description Same as creating a session, with the rows read from a bank statement CSV and a ledger CSV.
// @Tags reconciliations
// @Accept  multipart/form-data
// @Produce  json
// @Param   bank_file formData file true "Bank statement CSV"
// @Param   book_file formData file true "Ledger export CSV"
// @Param   accountID formData string true "Bank account ID"
// @Param   periodStart formData string true "Period start (YYYY-MM-DD)"
// @Param   periodEnd formData string true "Period end (YYYY-MM-DD)"
// @Param   openingBalance formData string false "Opening balance"
// @Param   closingBalanceStatement formData string true "Closing balance per statement"
// @Param   closingBalanceBook formData string true "Closing balance per books"
// @Param   dateToleranceDays formData int false "Date tolerance override"
// @Param   amountTolerance formData string false "Amount tolerance override"
// @Param   toleranceWindowDays formData int false "Tolerance window override"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid form, file or matcher configuration"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 413 {object} ErrorResponse "Upload too large"
// @Failure 500 {object} ErrorResponse "Failed to import session"
// @Security BearerAuth
// @Router /reconciliations/import [post]
func (h *reconciliationHandler) importSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	h.limitBody(c)

	var form dto.ImportSessionForm
	if err := c.ShouldBind(&form); err != nil {
		if h.rejectTooLarge(c, err) {
			return
		}
		bindError(c, err, "import form")
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}

	bankFile, ok := openFormFile(c, bankFileField)
	if !ok {
		return
	}
	defer bankFile.Close()
	bookFile, ok := openFormFile(c, bookFileField)
	if !ok {
		return
	}
	defer bookFile.Close()

	logger.Info("Received request to import reconciliation session", slog.String("account_id", form.AccountID))
	resp, err := h.reconciliationService.ImportCSV(c.Request.Context(), form, bankFile, bookFile, opID)
	if err != nil {
		respondError(c, err, "import reconciliation session")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func openFormFile(c *gin.Context, field string) (multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Missing upload", slog.String("field", field), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("File %s is required", field)})
		return nil, false
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, fmt.Errorf("open %s: %w", field, err), "read uploaded file")
		return nil, false
	}
	return f, true
}

// limitBody caps the request body at maxUploadBytes.
func (h *reconciliationHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

// rejectTooLarge answers 413 when err comes from an oversized body.
func (h *reconciliationHandler) rejectTooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Request body exceeds limit", slog.Int64("max_bytes", h.maxUploadBytes))
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: fmt.Sprintf("Request body exceeds %d bytes", h.maxUploadBytes)})
	return true
}

// listSessions godoc
// @Summary List reconciliation sessions of an account
// @Description Newest period first. Only session headers are returned; use nextToken to page.
// @Tags reconciliations
// @Produce  json
// @Param   accountID query string true "Bank account ID"
// @Param   limit query int false "Page size (default 20, max 100)"
// @Param   nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListSessionsResponse
// @Failure 400 {object} ErrorResponse "Invalid query"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Failed to list sessions"
// @Security BearerAuth
// @Router /reconciliations [get]
func (h *reconciliationHandler) listSessions(c *gin.Context) {
	var params dto.ListSessionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err, "list sessions query")
		return
	}
	if params.NextToken != nil && *params.NextToken == "" {
		params.NextToken = nil
	}

	resp, err := h.reconciliationService.ListSessions(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "list reconciliation sessions")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getSession godoc
// @Summary Get a reconciliation session
// @Tags reconciliations
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 500 {object} ErrorResponse "Failed to retrieve session"
// @Security BearerAuth
// @Router /reconciliations/{sessionID} [get]
func (h *reconciliationHandler) getSession(c *gin.Context) {
	resp, err := h.reconciliationService.GetSession(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondError(c, err, "retrieve reconciliation session")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getStats godoc
// @Summary Get reconciliation statistics
// @Description Record counts, unmatched sums, match rate and adjusted balances.
// @Tags reconciliations
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Success 200 {object} domain.ReconciliationStats
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 500 {object} ErrorResponse "Failed to compute statistics"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/stats [get]
func (h *reconciliationHandler) getStats(c *gin.Context) {
	stats, err := h.reconciliationService.GetStats(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondError(c, err, "compute reconciliation statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// runAutoMatch godoc
// @Summary Re-run automatic matching
// @Description Runs the matcher over the records that are still unmatched. The body is optional.
// @Tags reconciliations
// @Accept  json
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   overrides body dto.AutoMatchRequest false "Matcher overrides"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid matcher configuration"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to run matcher"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/auto-match [post]
func (h *reconciliationHandler) runAutoMatch(c *gin.Context) {
	var req dto.AutoMatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err, "auto-match request")
			return
		}
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}

	resp, err := h.reconciliationService.RunAutoMatch(c.Request.Context(), c.Param("sessionID"), req, opID)
	if err != nil {
		respondError(c, err, "run automatic matching")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// manualPair godoc
// @Summary Pair two records manually
// @Description Pairs a bank record with a book record. A non-zero amount difference yields a discrepancy.
// @Tags reconciliations
// @Accept  json
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   pair body dto.ManualPairRequest true "Records to pair"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 404 {object} ErrorResponse "Session or record not found"
// @Failure 409 {object} ErrorResponse "Record already paired or session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to pair records"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/pairs [post]
func (h *reconciliationHandler) manualPair(c *gin.Context) {
	var req dto.ManualPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "manual pair request")
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}

	resp, err := h.reconciliationService.ManualPair(c.Request.Context(), c.Param("sessionID"), req, opID)
	if err != nil {
		respondError(c, err, "pair records")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// unpair godoc
// @Summary Dissolve a pair
// @Description Both records return to UNMATCHED.
// @Tags reconciliations
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   pairID path string true "Pair ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} ErrorResponse "Session or pair not found"
// @Failure 409 {object} ErrorResponse "Session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to unpair"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/pairs/{pairID} [delete]
func (h *reconciliationHandler) unpair(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.reconciliationService.Unpair(c.Request.Context(), c.Param("sessionID"), c.Param("pairID"), opID)
	if err != nil {
		respondError(c, err, "unpair records")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// accept godoc
// @Summary Accept a discrepancy
// @Tags reconciliations
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   pairID path string true "Pair ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} ErrorResponse "Session or pair not found"
// @Failure 409 {object} ErrorResponse "Pair is not a discrepancy or session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to accept discrepancy"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/pairs/{pairID}/accept [post]
func (h *reconciliationHandler) accept(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.reconciliationService.Accept(c.Request.Context(), c.Param("sessionID"), c.Param("pairID"), opID)
	if err != nil {
		respondError(c, err, "accept discrepancy")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// adjust godoc
// @Summary Adjust one side of a discrepancy
// @Description Records the corrected amount. A zero difference upgrades the pair to MATCHED.
// @Tags reconciliations
// @Accept  json
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   pairID path string true "Pair ID"
// @Param   adjustment body dto.AdjustPairRequest true "Corrected amount and side"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 404 {object} ErrorResponse "Session or pair not found"
// @Failure 409 {object} ErrorResponse "Pair is not a discrepancy or session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to adjust discrepancy"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/pairs/{pairID}/adjust [post]
func (h *reconciliationHandler) adjust(c *gin.Context) {
	var req dto.AdjustPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "adjust request")
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.reconciliationService.Adjust(c.Request.Context(), c.Param("sessionID"), c.Param("pairID"), req, opID)
	if err != nil {
		respondError(c, err, "adjust discrepancy")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// escalate godoc
// @Summary Escalate a discrepancy
// @Tags reconciliations
// @Accept  json
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Param   pairID path string true "Pair ID"
// @Param   escalation body dto.EscalatePairRequest true "Escalation note"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} ErrorResponse "Missing note"
// @Failure 404 {object} ErrorResponse "Session or pair not found"
// @Failure 409 {object} ErrorResponse "Pair is not a discrepancy or session confirmed"
// @Failure 500 {object} ErrorResponse "Failed to escalate discrepancy"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/pairs/{pairID}/escalate [post]
func (h *reconciliationHandler) escalate(c *gin.Context) {
	var req dto.EscalatePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "escalate request")
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.reconciliationService.Escalate(c.Request.Context(), c.Param("sessionID"), c.Param("pairID"), req, opID)
	if err != nil {
		respondError(c, err, "escalate discrepancy")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// confirm godoc
// @Summary Confirm a reconciliation
// @Description Closes the session once every record is paired and every discrepancy is resolved.
// @Description A 409 with kind UNRESOLVED_ITEMS lists the blocking record and pair ids.
// @Tags reconciliations
// @Produce  json
// @Param   sessionID path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Unresolved items or already confirmed"
// @Failure 500 {object} ErrorResponse "Failed to confirm session"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/confirm [post]
func (h *reconciliationHandler) confirm(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	logger.Info("Received request to confirm reconciliation session", slog.String("session_id", c.Param("sessionID")))

	resp, err := h.reconciliationService.Confirm(c.Request.Context(), c.Param("sessionID"), opID)
	if err != nil {
		respondError(c, err, "confirm reconciliation session")
		return
	}
	c.JSON(http.StatusOK, resp)
}
