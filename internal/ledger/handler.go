package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitcoach/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListMyPackages godoc
// @Summary      List my packages
// @Description  Returns all packages of the authenticated client, newest first.
// @Tags         packages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Package
// @Failure      500  {object}  gin.H
// @Router       /packages [get]
func (h *Handler) ListMyPackages(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	pkgs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch packages"})
		return
	}

	c.JSON(http.StatusOK, pkgs)
}

// ListAllPackages godoc
// @Summary      List all packages
// @Description  Returns every package. Admin only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Package
// @Failure      500  {object}  gin.H
// @Router       /admin/packages [get]
func (h *Handler) ListAllPackages(c *gin.Context) {
	pkgs, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch packages"})
		return
	}

	c.JSON(http.StatusOK, pkgs)
}

// CancelPackage godoc
// @Summary      Cancel package
// @Description  Cancels a package. Admin only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        packageID  path      int  true  "Package ID"
// @Success      200        {object}  gin.H
// @Failure      400        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /admin/packages/{packageID}/cancel [post]
func (h *Handler) CancelPackage(c *gin.Context) {
	packageIDStr := c.Param("packageID")
	packageID, err := strconv.Atoi(packageIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid package ID"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), packageID); err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Package not found or already cancelled"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel package"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Package cancelled successfully"})
}
