package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

type InviteToPayRequest struct {
	PayeeName     string `json:"payeeName" validate:"required"`
	PayeeEmail    string `json:"payeeEmail" validate:"required,email"`
	ApplicantName string `json:"applicantName" validate:"required"`
}

func NewInviteToPayRequestFromContext(ctx echo.Context) (*InviteToPayRequest, error) {
	var body InviteToPayRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.PayeeName = strings.TrimSpace(body.PayeeName)
	body.PayeeEmail = strings.TrimSpace(body.PayeeEmail)
	body.ApplicantName = strings.TrimSpace(body.ApplicantName)

	return &body, nil
}

func (r *InviteToPayRequest) Validate() error {
	return validate.Struct(r)
}

type CreateSendEventsRequest struct {
	Team         string   `json:"team" validate:"required"`
	Destinations []string `json:"destinations" validate:"required,min=1,dive,oneof=email bops uniform"`
}

func NewCreateSendEventsRequestFromContext(ctx echo.Context) (*CreateSendEventsRequest, error) {
	var body CreateSendEventsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Team = strings.ToLower(strings.TrimSpace(body.Team))
	for i, destination := range body.Destinations {
		body.Destinations[i] = strings.ToLower(strings.TrimSpace(destination))
	}

	return &body, nil
}

func (r *CreateSendEventsRequest) Validate() error {
	return validate.Struct(r)
}
