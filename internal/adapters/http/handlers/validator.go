// Package handlers contains the HTTP handlers. Each handler binds the
// request, builds a command or query, calls the use case through a narrow
// interface, and maps the result or error back to the wire.
package handlers

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

var setupOnce sync.Once

// SetupValidator configures the gin binding validator: error messages use
// json field names, and wallet ids get a dedicated rule.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(fld.Tag.Get("uri"), ",", 2)[0]
			}
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("wallet_id", validateWalletID)
	})
}

// validateWalletID accepts opaque ids: 1..64 characters, no whitespace.
func validateWalletID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > 64 {
		return false
	}
	return !strings.ContainsAny(id, " \t\r\n/")
}

// HandleBindingError turns a gin binding failure into a 400 envelope.
func HandleBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	ok := false
	if v, isV := err.(validator.ValidationErrors); isV {
		verrs = v
		ok = true
	}
	if !ok {
		common.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+validationMessage(fe))
	}
	common.BadRequest(c, strings.Join(parts, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too small (minimum: " + fe.Param() + ")"
	case "max":
		return "value is too large (maximum: " + fe.Param() + ")"
	case "wallet_id":
		return "invalid wallet id"
	default:
		return "invalid value"
	}
}

// BindJSON binds the request body, writing the 400 itself on failure.
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleBindingError(c, err)
		return false
	}
	return true
}

// BindURI binds path parameters, writing the 400 itself on failure.
func BindURI[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindUri(req); err != nil {
		HandleBindingError(c, err)
		return false
	}
	return true
}
