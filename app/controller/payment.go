package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicstack/ms-go-payflow/app/factory"
	"github.com/civicstack/ms-go-payflow/app/gateway"
	"github.com/civicstack/ms-go-payflow/app/mapper"
	"github.com/civicstack/ms-go-payflow/app/proxy"
	"github.com/civicstack/ms-go-payflow/app/service"
	"github.com/civicstack/ms-go-payflow/app/types"
)

type PaymentController struct {
	gatewayProxy *proxy.GatewayProxy
	recorder     *service.PaymentStatusRecorder
	lifecycle    *service.PaymentRequestLifecycle
	dispatcher   *service.SubmissionDispatcher
	logger       logrus.FieldLogger
}

func NewPaymentController(
	gatewayProxy *proxy.GatewayProxy,
	recorder *service.PaymentStatusRecorder,
	lifecycle *service.PaymentRequestLifecycle,
	dispatcher *service.SubmissionDispatcher,
) *PaymentController {
	return &PaymentController{
		gatewayProxy: gatewayProxy,
		recorder:     recorder,
		lifecycle:    lifecycle,
		dispatcher:   dispatcher,
		logger:       factory.NewModuleLogger("payflow-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// InitiatePayment proxies a payment creation to the gateway for the
// applicant's own card flow.
func (c *PaymentController) InitiatePayment(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	tenant := ctx.Param("tenant")
	return c.proxyPayment(ctx, &proxy.ForwardRequest{
		Tenant: tenant,
		Method: http.MethodPost,
		Path:   "/v1/payments",
		Header: ctx.Request().Header,
		Body:   body,
	}, service.RecordContext{
		SessionID: ctx.QueryParam("sessionId"),
		FlowID:    ctx.QueryParam("flowId"),
		Tenant:    tenant,
	}, false)
}

func (c *PaymentController) GetPaymentStatus(ctx echo.Context) error {
	tenant := ctx.Param("tenant")
	return c.proxyPayment(ctx, &proxy.ForwardRequest{
		Tenant: tenant,
		Method: http.MethodGet,
		Path:   "/v1/payments/" + url.PathEscape(ctx.Param("paymentId")),
		Header: ctx.Request().Header,
	}, service.RecordContext{
		SessionID: ctx.QueryParam("sessionId"),
		FlowID:    ctx.QueryParam("flowId"),
		Tenant:    tenant,
	}, false)
}

func (c *PaymentController) InviteToPay(ctx echo.Context) error {
	req, err := types.NewInviteToPayRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycle.Create(ctx.Request().Context(), &service.CreatePaymentRequestInput{
		SessionID:     ctx.Param("sessionId"),
		PayeeName:     req.PayeeName,
		PayeeEmail:    req.PayeeEmail,
		ApplicantName: req.ApplicantName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "session not found")
		case errors.Is(err, service.ErrSessionLocked):
			return c.writeError(ctx, http.StatusBadRequest, "session is locked, likely a duplicate payment request")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentRequestAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create payment request failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentRequestEnvelopeResponse{PaymentRequest: mapper.PaymentRequestToResponse(item)})
}

func (c *PaymentController) GetPaymentRequest(ctx echo.Context) error {
	item, err := c.lifecycle.Get(ctx.Request().Context(), ctx.Param("paymentRequestId"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequestNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment request not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment request failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentRequestEnvelopeResponse{PaymentRequest: mapper.PaymentRequestToResponse(item)})
}

// PayPaymentRequest proxies the nominee's payment creation. The created
// gateway payment id is attached to the request inside the interceptor.
func (c *PaymentController) PayPaymentRequest(ctx echo.Context) error {
	request, err := c.lifecycle.Get(ctx.Request().Context(), ctx.Param("paymentRequestId"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequestNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment request not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment request failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	if request.IsPaid() {
		return c.writeError(ctx, http.StatusBadRequest, "payment request is already paid")
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	tenant := ctx.Param("tenant")
	return c.proxyPayment(ctx, &proxy.ForwardRequest{
		Tenant: tenant,
		Method: http.MethodPost,
		Path:   "/v1/payments",
		Header: ctx.Request().Header,
		Body:   body,
	}, service.RecordContext{
		SessionID:        request.SessionID,
		FlowID:           request.FlowID,
		Tenant:           tenant,
		PaymentRequestID: request.ID,
	}, true)
}

// GetPaymentRequestStatus polls the nominee's payment. A success observation
// marks the request paid via the recorder.
func (c *PaymentController) GetPaymentRequestStatus(ctx echo.Context) error {
	request, err := c.lifecycle.Get(ctx.Request().Context(), ctx.Param("paymentRequestId"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequestNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment request not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment request failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	tenant := ctx.Param("tenant")
	return c.proxyPayment(ctx, &proxy.ForwardRequest{
		Tenant: tenant,
		Method: http.MethodGet,
		Path:   "/v1/payments/" + url.PathEscape(ctx.Param("paymentId")),
		Header: ctx.Request().Header,
	}, service.RecordContext{
		SessionID:        request.SessionID,
		FlowID:           request.FlowID,
		Tenant:           tenant,
		PaymentRequestID: request.ID,
	}, false)
}

func (c *PaymentController) CreateSendEvents(ctx echo.Context) error {
	req, err := types.NewCreateSendEventsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.dispatcher.CreateSendEvents(ctx.Request().Context(), ctx.Param("sessionId"), req.Team, req.Destinations)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownDestination), errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create send events failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.SubmissionsToResponse(items))
}

// proxyPayment runs the forward-buffer-transform-emit sequence. Side effects
// use a context detached from the client connection: audit integrity must
// not depend on the caller staying connected.
func (c *PaymentController) proxyPayment(ctx echo.Context, fr *proxy.ForwardRequest, rc service.RecordContext, attach bool) error {
	callCtx := context.WithoutCancel(ctx.Request().Context())

	result, err := c.gatewayProxy.Execute(callCtx, fr, c.paymentInterceptor(rc, attach))
	if err != nil {
		if errors.Is(err, gateway.ErrTenantNotConfigured) {
			return c.writeError(ctx, http.StatusBadRequest, "payment gateway is not configured for this team")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Gateway proxy call failed")
		return ctx.JSONBlob(http.StatusInternalServerError, proxy.GenericFailureBody())
	}

	return ctx.JSONBlob(result.StatusCode, result.Body)
}

func (c *PaymentController) paymentInterceptor(rc service.RecordContext, attach bool) proxy.Interceptor {
	return func(ictx context.Context, statusCode int, body []byte) *proxy.ForwardResult {
		if statusCode >= 300 {
			return nil
		}

		payment, err := gateway.ParsePayment(body)
		if err != nil {
			// A 2xx body that is not a payment object must never reach the
			// browser unfiltered.
			c.logger.WithError(err).Error("Gateway 2xx response is not a payment object")
			return &proxy.ForwardResult{StatusCode: http.StatusInternalServerError, Body: proxy.GenericFailureBody()}
		}

		if attach && rc.PaymentRequestID != "" {
			if err := c.lifecycle.AttachPayment(ictx, rc.PaymentRequestID, payment.PaymentID); err != nil {
				c.logger.WithError(err).WithField("payment_request_id", rc.PaymentRequestID).Error("Attach gateway payment failed")
			}
		}

		if err := c.recorder.Record(ictx, rc, payment); err != nil {
			c.logger.WithError(err).WithField("payment_id", payment.PaymentID).Error("Payment observation failed")
		}

		filtered, err := gateway.FilterPublic(body)
		if err != nil {
			c.logger.WithError(err).WithField("payment_id", payment.PaymentID).Error("Response filtering failed")
			return &proxy.ForwardResult{StatusCode: http.StatusInternalServerError, Body: proxy.GenericFailureBody()}
		}
		return &proxy.ForwardResult{StatusCode: statusCode, Body: filtered}
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
