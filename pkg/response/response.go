// Package response renders the uniform JSON envelope used by every REST
// handler, and a fiber recovery middleware that turns a panic carrying a
// pkgerror.GenericError into the matching status/code/message.
package response

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/vtuber/controlplane/pkg/pkgerror"
)

// Data is the response envelope every handler returns.
type Data struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c *fiber.Ctx, message string, results any) error {
	return c.Status(fiber.StatusOK).JSON(Data{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

// PanicIfNeeded panics with err if non-nil, to be caught by Recovery().
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}

// Recovery is fiber middleware that recovers a panic, maps known
// GenericError kinds to their status/code, and logs everything else as
// an internal error.
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			data := Data{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", r),
			}

			if genErr, ok := r.(pkgerror.GenericError); ok {
				data.Status = genErr.StatusCode()
				data.Code = genErr.ErrCode()
				data.Message = genErr.Error()
			} else {
				logrus.WithField("component", "recovery").Errorf("panic recovered: %v", r)
			}

			_ = c.Status(data.Status).JSON(data)
		}()
		return c.Next()
	}
}
