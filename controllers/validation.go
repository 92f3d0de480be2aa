package controllers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"panda-blog/apperror"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// report json names instead of struct field names
func init() {
	if v, found := binding.Validator.Engine().(*validator.Validate); found {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindJSON decodes and validates the request body, the first violated rule becomes the message
func bindJSON(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		// empty body: report the missing fields like any other request
		err = binding.Validator.ValidateStruct(obj)
	}
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return apperror.Validation(fe.Field(), fieldMessage(fe))
	}

	return apperror.Validation("", "Invalid request body")
}

func fieldMessage(fe validator.FieldError) string {
	field := fmt.Sprintf("%q", fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "url", "uri":
		return field + " must be a valid uri"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s length must be at least %s characters long", field, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s length must be less than or equal to %s characters long", field, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain less than or equal to %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	}

	return field + " is invalid"
}
