package bankfeed

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"gorm.io/gorm"
)

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{Status: string(models.BankFeedStatusDisconnected)},
			})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{
				Status:          string(conn.Status),
				ItemId:          conn.ProviderItemId,
				InstitutionName: conn.InstitutionName,
			},
			LastSyncAt:        formatTime(conn.LastSyncAt),
			LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
			LastSyncError:     conn.LastSyncError,
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.AccessToken) == "" || strings.TrimSpace(req.ItemId) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "accessToken and itemId are required"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		if conn == nil {
			conn = &models.BankFeedConnection{
				BusinessId:      businessId,
				Status:          models.BankFeedStatusConnected,
				ProviderItemId:  req.ItemId,
				InstitutionName: strings.TrimSpace(req.InstitutionName),
				AuthSecretRef:   req.AccessToken,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"status":           models.BankFeedStatusConnected,
				"provider_item_id": req.ItemId,
				"institution_name": strings.TrimSpace(req.InstitutionName),
				"auth_secret_ref":  req.AccessToken,
				"last_sync_error":  "",
				"updated_at":       now,
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !config.BankFeedSyncEnabled() {
			c.JSON(http.StatusConflict, gin.H{"error": "bank feed sync is disabled"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		result, err := SyncBusiness(ctx, businessId)
		if err == ErrSyncInProgress {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			config.LogError(config.GetLogger(), "bankfeed", "TriggerSyncHandler", "sync", businessId, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		conn, err := getConnection(db, businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":          models.BankFeedStatusDisconnected,
			"auth_secret_ref": "",
			"updated_at":      time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func resolveBusinessID(c *gin.Context) (string, error) {
	user, err := models.GetSessionUser(c.Request.Context())
	if err != nil {
		return "", err
	}

	if requested := strings.TrimSpace(c.Query("business_id")); requested != "" {
		if user.Role != models.UserRoleAdmin && user.BusinessId != requested {
			return "", errors.New("unauthorized")
		}
		return requested, nil
	}

	businessId := strings.TrimSpace(user.BusinessId)
	if businessId == "" {
		return "", errors.New("business_id is required")
	}
	return businessId, nil
}

func getConnection(db *gorm.DB, businessId string) (*models.BankFeedConnection, error) {
	var conn models.BankFeedConnection
	err := db.Where("business_id = ?", businessId).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
