package handlers

import (
	"net/http"
	"strings"

	"converse/internal/errs"
	"converse/internal/models"
	"converse/internal/msgs"
	"converse/internal/utils"

	"github.com/gin-gonic/gin"
)

// MustAuthenticateMiddleware verifies the bearer token and stores the
// verified user id in the gin context. Token issuance itself is the
// authentication collaborator's business; the core only consumes the
// resulting identity.
func (rh *RestHandler) MustAuthenticateMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		jwtToken := ctx.GetHeader("Authorization")
		if strings.Contains(jwtToken, "Bearer") {
			jwtToken = strings.Replace(jwtToken, "Bearer ", "", 1)
		}

		if jwtToken == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{
				Success: false,
				Message: msgs.MsgYouMustLoginFirst,
				Errors:  models.ErrorsToStrings([]error{errs.ErrUnauthorized}),
			})
			return
		}

		claims, err := utils.VerifyToken(jwtToken, rh.jwtKey)
		if err != nil || claims.ID == 0 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{
				Success: false,
				Message: msgs.MsgYouMustLoginFirst,
				Errors:  models.ErrorsToStrings([]error{errs.ErrUnauthorized}),
			})
			return
		}

		ctx.Set("user_id", claims.ID)
		ctx.Set("user_email", claims.Email)
		ctx.Next()
	}
}
