package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/auth/oidc"
)

// DataResponse is the success envelope for API handlers.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondOK sends 200 with data wrapped in DataResponse.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondCreated sends 201 with data wrapped in DataResponse.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

// RespondWithError writes the structured error body for err. Identity
// errors from auth/oidc are mapped onto their AppError codes, so a handler
// can pass a failed UserInfo or UserPermissions call straight through;
// unknown errors become a 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := oidc.AsAppError(err)
	c.AbortWithStatusJSON(appErr.Status(), appErr.ToResponse())
}
