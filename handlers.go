package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/models/reports"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/ledgerline/bookkeeper_backend/workflow"
	"github.com/shopspring/decimal"
)

// businessContext resolves the session user's business and attaches it to the
// request context. Admins may act on another business via ?business_id=.
func businessContext(c *gin.Context) (context.Context, error) {
	user, err := models.GetSessionUser(c.Request.Context())
	if err != nil {
		return nil, err
	}

	businessId := strings.TrimSpace(user.BusinessId)
	if requested := strings.TrimSpace(c.Query("business_id")); requested != "" {
		if user.Role != models.UserRoleAdmin && businessId != requested {
			return nil, errors.New("unauthorized")
		}
		businessId = requested
	}
	if businessId == "" {
		return nil, errors.New("business_id is required")
	}

	ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	if user.Role == models.UserRoleAdmin {
		ctx = utils.SetIsAdminInContext(ctx, true)
	}
	return ctx, nil
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(validationErrors)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func loginHandler() gin.HandlerFunc {
	type loginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func getBusinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		business, err := models.GetBusiness(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, business)
	}
}

func updateTaxRateHandler() gin.HandlerFunc {
	type taxRateRequest struct {
		TaxRate string `json:"tax_rate" binding:"required"`
	}
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		var req taxRateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		rate, err := decimal.NewFromString(req.TaxRate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax rate"})
			return
		}
		business, err := models.UpdateBusinessTaxRate(ctx, rate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, business)
	}
}

func listCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		categories, err := models.ListCategories(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}

func createCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		var input models.NewCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		category, err := models.CreateCategory(ctx, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func updateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var input models.NewCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		category, err := models.UpdateCategory(ctx, id, &input)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func deleteCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		ok, err := models.DeleteCategory(ctx, id)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func listBankAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		accounts, err := models.ListBankAccounts(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

func createBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		var input models.NewBankAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		account, err := models.CreateBankAccount(ctx, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func deleteBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		ok, err := models.DeleteBankAccount(ctx, id)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		filter := models.TransactionFilter{Limit: config.SearchLimit}
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				filter.Limit = n
			}
		}
		if v := strings.TrimSpace(c.Query("after")); v != "" {
			filter.After = &v
		}
		if v := strings.TrimSpace(c.Query("type")); v != "" {
			txnType := models.TransactionType(v)
			if !txnType.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
				return
			}
			filter.Type = &txnType
		}
		if v := strings.TrimSpace(c.Query("category_id")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.CategoryId = &n
			}
		}
		if v := strings.TrimSpace(c.Query("needs_review")); v != "" {
			needsReview := strings.EqualFold(v, "true")
			filter.NeedsReview = &needsReview
		}
		if v := strings.TrimSpace(c.Query("from_date")); v != "" {
			var d models.MyDateString
			if err := d.ParseDateString(v); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from_date"})
				return
			}
			filter.FromDate = &d
		}
		if v := strings.TrimSpace(c.Query("to_date")); v != "" {
			var d models.MyDateString
			if err := d.ParseDateString(v); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to_date"})
				return
			}
			filter.ToDate = &d
		}

		connection, err := models.PaginateTransaction(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func createTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		transaction, err := models.CreateTransaction(ctx, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, transaction)
	}
}

func updateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		transaction, err := models.UpdateTransaction(ctx, id, &input)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, transaction)
	}
}

func deleteTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		ok, err := models.DeleteTransaction(ctx, id)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func bulkCategorizeHandler() gin.HandlerFunc {
	type bulkRequest struct {
		TransactionIds []int `json:"transaction_ids" binding:"required"`
		CategoryId     int   `json:"category_id" binding:"required"`
	}
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		updated, err := models.BulkSetCategory(ctx, req.TransactionIds, req.CategoryId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	}
}

func reportParams(c *gin.Context) (models.ReportGranularity, int, int, error) {
	granularity := models.ReportGranularity(strings.TrimSpace(c.DefaultQuery("granularity", string(models.ReportGranularityMonth))))
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		return granularity, 0, 0, errors.New("year is required")
	}
	month := 0
	if v := strings.TrimSpace(c.Query("month")); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil {
			return granularity, 0, 0, errors.New("invalid month")
		}
	}
	return granularity, year, month, nil
}

func profitAndLossHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		granularity, year, month, err := reportParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetProfitAndLossReport(ctx, granularity, year, month)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func balanceSheetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		granularity, year, month, err := reportParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetBalanceSheetReport(ctx, granularity, year, month)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func cashFlowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		granularity, year, month, err := reportParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetCashFlowReport(ctx, granularity, year, month)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func taxSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		granularity, year, month, err := reportParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var rateOverride *decimal.Decimal
		if v := strings.TrimSpace(c.Query("tax_rate")); v != "" {
			rate, err := decimal.NewFromString(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax_rate"})
				return
			}
			rateOverride = &rate
		}
		report, err := reports.GetTaxSummaryReport(ctx, granularity, year, month, rateOverride)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func exportReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		granularity, year, month, err := reportParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		report := strings.TrimSpace(c.Param("report"))

		// The attachment headers wait until the report has built, so error
		// responses stay plain JSON.
		attachmentHeaders := func() {
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%d.xlsx", report, year))
		}

		switch report {
		case "profit-and-loss":
			data, err := reports.GetProfitAndLossReport(ctx, granularity, year, month)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			attachmentHeaders()
			if err := reports.WriteProfitAndLossXlsx(c.Writer, data); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
		case "tax-summary":
			data, err := reports.GetTaxSummaryReport(ctx, granularity, year, month, nil)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			attachmentHeaders()
			if err := reports.WriteTaxSummaryXlsx(c.Writer, data); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown report"})
		}
	}
}

func aiCategorizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := businessContext(c)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		if !config.AICategorizationEnabled() {
			c.JSON(http.StatusConflict, gin.H{"error": "ai categorization is disabled"})
			return
		}
		updated, err := workflow.CategorizePendingTransactions(ctx)
		if err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "aiCategorizeHandler", "categorize", nil, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categorized": updated})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
