// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Outcome labels for gatekeep_signin_total and gatekeep_signup_total.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
	OutcomeInactive  = "inactive"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

const routeUnmatched = "unmatched"

// requestLogger logs one line per request and counts it. Errors from the
// chain are rendered here so the logged status is the one sent.
func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		if status == fiber.StatusNotFound || status == fiber.StatusMethodNotAllowed {
			route = routeUnmatched
		}

		s.logger.InfoContext(c.UserContext(), "http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"ip", c.IP(),
		)

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		return nil
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, auth.ErrValidation):
		return OutcomeRejected
	case errors.Is(err, auth.ErrInvalidCredentials):
		return OutcomeInvalid
	case errors.Is(err, auth.ErrAccountInactive):
		return OutcomeInactive
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return OutcomeDuplicate
	default:
		return OutcomeError
	}
}

func (s *Server) countOutcome(route string, err error) {
	if s.metrics == nil {
		return
	}
	switch route {
	case RouteSignIn:
		s.metrics.SignInTotal.WithLabelValues(outcomeOf(err)).Inc()
	case RouteSignUp:
		s.metrics.SignUpTotal.WithLabelValues(outcomeOf(err)).Inc()
	}
}
