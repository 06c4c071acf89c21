package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/flow"
	"github.com/aiocensor/aiocensor/pkg/metrics"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type CensorRequest struct {
	Content string         `json:"content"`
	Source  string         `json:"source"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type CensorResponse struct {
	Result *censor.Result `json:"result"`
	// set when the result was written to the audit log
	AuditID string `json:"audit_id,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		slog.Warn("aiocensor-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "aiocensor", Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "aiocensor"})
}

func bindCensorRequest(c echo.Context) (*CensorRequest, error) {
	var req CensorRequest
	if err := c.Bind(&req); err != nil {
		return nil, c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.Source == "" {
		return nil, c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "source is required",
		})
	}
	return &req, nil
}

// respond persists non-pass results (when enabled) and writes the response.
func (srv *Server) respond(c echo.Context, res *censor.Result, err error) error {
	if errors.Is(err, flow.ErrTextDisabled) || errors.Is(err, flow.ErrImageDisabled) {
		return c.JSON(501, GenericError{
			Error:   "ChannelDisabled",
			Message: err.Error(),
		})
	} else if err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}

	out := CensorResponse{Result: res}
	if srv.enableAuditLog && res.Risk != censor.Pass {
		id, err := srv.store.AddAuditLog(c.Request().Context(), res, nil)
		if err != nil {
			// the verdict is still valid without its audit entry
			srv.logger.Error("failed to persist audit log", "source", res.Message.Source, "err", err)
			auditLogCount.WithLabelValues(metrics.StatusError).Inc()
		} else {
			out.AuditID = id
			auditLogCount.WithLabelValues(metrics.StatusOK).Inc()
		}
	}
	return c.JSON(200, out)
}

func (srv *Server) HandleCensorText(c echo.Context) error {
	req, err := bindCensorRequest(c)
	if req == nil {
		return err
	}
	res, err := srv.flow.SubmitText(c.Request().Context(), req.Content, req.Source, req.Extra)
	return srv.respond(c, res, err)
}

func (srv *Server) HandleCensorImage(c echo.Context) error {
	req, err := bindCensorRequest(c)
	if req == nil {
		return err
	}
	if req.Content == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "content must be an image URL or base64:// payload",
		})
	}
	res, err := srv.flow.SubmitImage(c.Request().Context(), req.Content, req.Source)
	if res != nil {
		for k, v := range req.Extra {
			res.SetExtra(k, v)
		}
	}
	return srv.respond(c, res, err)
}

func (srv *Server) HandleCensorUserID(c echo.Context) error {
	req, err := bindCensorRequest(c)
	if req == nil {
		return err
	}
	res, err := srv.flow.SubmitUserID(c.Request().Context(), req.Content, req.Source)
	if res != nil {
		for k, v := range req.Extra {
			res.SetExtra(k, v)
		}
	}
	return srv.respond(c, res, err)
}
