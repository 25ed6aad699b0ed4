package handler

import (
	"strings"

	"payflow/internal/adapter/http/dto"
	"payflow/internal/adapter/http/middleware"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// MerchantHandler handles merchant self-service endpoints. All routes run
// behind JWTAuth with the merchant role; the profile row is resolved from
// the JWT user on each call.
type MerchantHandler struct {
	merchantSvc  ports.MerchantService
	checkoutBase string
}

// NewMerchantHandler creates a new merchant handler. checkoutBase is the
// hosted checkout origin used for the QR-code link.
func NewMerchantHandler(merchantSvc ports.MerchantService, checkoutBase string) *MerchantHandler {
	return &MerchantHandler{
		merchantSvc:  merchantSvc,
		checkoutBase: strings.TrimRight(checkoutBase, "/"),
	}
}

// ownMerchant resolves the merchant profile owned by the authenticated user.
func (h *MerchantHandler) ownMerchant(c *gin.Context) (*domain.Merchant, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}
	merchant, err := h.merchantSvc.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return merchant, true
}

// Create handles POST /merchants.
func (h *MerchantHandler) Create(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	merchant, err := h.merchantSvc.CreateMerchant(c.Request.Context(), ports.CreateMerchantRequest{
		UserID:        claims.UserID,
		BusinessName:  req.BusinessName,
		BusinessEmail: req.BusinessEmail,
		Website:       req.Website,
		WebhookURL:    req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewMerchantResponse(merchant))
}

// Me handles GET /merchants/me.
func (h *MerchantHandler) Me(c *gin.Context) {
	merchant, ok := h.ownMerchant(c)
	if !ok {
		return
	}
	response.OK(c, dto.NewMerchantResponse(merchant))
}

// IssueKey handles POST /merchants/me/keys. The secret in the response is
// shown exactly once.
func (h *MerchantHandler) IssueKey(c *gin.Context) {
	merchant, ok := h.ownMerchant(c)
	if !ok {
		return
	}

	var req dto.IssueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key, err := h.merchantSvc.IssueKey(c.Request.Context(), merchant.ID, req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewIssuedKeyResponse(key))
}

// RevokeKey handles DELETE /merchants/me/keys/{key_id}.
func (h *MerchantHandler) RevokeKey(c *gin.Context) {
	merchant, ok := h.ownMerchant(c)
	if !ok {
		return
	}

	keyID := c.Param("key_id")
	if err := h.merchantSvc.RevokeKey(c.Request.Context(), merchant.ID, keyID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "api key revoked"})
}

// QRCode handles GET /merchants/me/qr-code. Rendering the PNG itself is the
// frontend's job; this returns the URL the code should encode.
func (h *MerchantHandler) QRCode(c *gin.Context) {
	merchant, ok := h.ownMerchant(c)
	if !ok {
		return
	}

	response.OK(c, dto.CheckoutURLResponse{
		CheckoutURL: h.checkoutBase + "/m/" + merchant.ID.String(),
	})
}
