package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"food-marketplace-api/blob"
	"food-marketplace-api/middleware"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the HTTP API on top of the domain services.
type Handler struct {
	Accounts  *services.AccountService
	Catalog   *services.CatalogService
	Orders    *services.OrderService
	Favorites *services.FavoritesService
	Reviews   *services.ReviewService
	Nutrition *services.NutritionService
	Auth      *middleware.Auth
	Logger    *zap.SugaredLogger
}

var kindStatus = map[services.Kind]int{
	services.KindUnauthenticated:   http.StatusUnauthorized,
	services.KindForbidden:         http.StatusForbidden,
	services.KindNotFound:          http.StatusNotFound,
	services.KindValidation:        http.StatusBadRequest,
	services.KindUpload:            http.StatusBadGateway,
	services.KindPersistence:       http.StatusInternalServerError,
	services.KindInvalidTransition: http.StatusUnprocessableEntity,
	services.KindConflict:          http.StatusConflict,
}

// respondError writes err as {"error", "kind"} with the status matching its kind.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": services.MessageOf(err), "kind": kind}
	if kind == services.KindUpload {
		body["retry_without_image"] = true
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": services.KindValidation})
}

// bindPayload decodes the request body into dst. Multipart requests carry the
// JSON document in the "payload" field and an optional "image" file; the
// returned close func releases the file and must always be called.
func bindPayload(c *gin.Context, dst any) (*blob.Source, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, noop, err
		}
		return nil, noop, nil
	}

	if payload := c.PostForm("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), dst); err != nil {
			return nil, noop, err
		}
	}
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	if header.Size > blob.MaxImageSize {
		return nil, noop, fmt.Errorf("image must be at most %d bytes", blob.MaxImageSize)
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	src := &blob.Source{Filename: header.Filename, Reader: file}
	return src, func() { file.Close() }, nil
}
