package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/http/response"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type ProductHandler struct {
	log      *logger.Logger
	products repos.ProductRepo
	images   repos.ProductImageRepo
}

func NewProductHandler(log *logger.Logger, products repos.ProductRepo, images repos.ProductImageRepo) *ProductHandler {
	return &ProductHandler{
		log:      log.With("handler", "ProductHandler"),
		products: products,
		images:   images,
	}
}

func (h *ProductHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	items, total, err := h.products.List(dbctx.Context{Ctx: c.Request.Context()}, repos.ProductListParams{
		Page:    page,
		PerPage: perPage,
		Search:  c.Query("search"),
	})
	if err != nil {
		h.log.Error("Product list failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	product, err := h.products.GetByID(dbc, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "product_not_found", err)
		return
	}
	if err != nil {
		h.log.Error("Product lookup failed", "id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}

	images, err := h.images.ListForOwner(dbc, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		h.log.Error("Product image lookup failed", "id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"product": product,
		"images":  images,
	})
}
