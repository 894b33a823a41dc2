// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

type signInBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resultBody struct {
	Result any `json:"result"`
}

func (s *Server) signIn(c *fiber.Ctx) error {
	var body signInBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}

	res, err := s.auth.SignIn(c.UserContext(), auth.SignInRequest{
		Email:     body.Email,
		Password:  body.Password,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	s.countOutcome(RouteSignIn, err)
	if err != nil {
		return err
	}

	return c.JSON(resultBody{Result: res.Token})
}

func (s *Server) signUp(c *fiber.Ctx) error {
	var body signUpBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}

	err := s.auth.SignUp(c.UserContext(), auth.SignUpRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	s.countOutcome(RouteSignUp, err)
	if err != nil {
		return err
	}

	return c.JSON(resultBody{})
}

// decodeBody decodes a JSON body with the app's decoder regardless of the
// Content-Type header. An empty body leaves v untouched so presence checks
// report the missing fields.
func decodeBody(c *fiber.Ctx, v any) error {
	raw := c.Body()
	if len(raw) == 0 {
		return nil
	}
	if err := c.App().Config().JSONDecoder(raw, v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, MsgMalformedBody)
	}
	return nil
}
