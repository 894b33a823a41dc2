// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Public messages produced by the transport itself.
const (
	MsgMalformedBody = "Malformed request body"
	MsgInternal      = "Internal server error"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

// statusFor maps an error kind to its HTTP status. Unclassified errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrDuplicateIdentity):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrAccountInactive):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Status: fe.Code, Message: fe.Message})
	}

	status := statusFor(err)
	message := oops.GetPublic(err, MsgInternal)
	if status == fiber.StatusInternalServerError {
		message = MsgInternal
		errutil.LogErrorContext(c.UserContext(), s.logger, "request failed", err,
			"method", c.Method(),
			"path", c.Path(),
		)
	}

	return c.Status(status).JSON(errorBody{Status: status, Message: message})
}
