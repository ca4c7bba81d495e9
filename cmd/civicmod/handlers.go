package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/civictrack/civictrack/automod/engine"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/labstack/echo/v4"
)

const moderatorHeader = "X-Moderator-Id"

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type FlagRequest struct {
	UserID principal.ID `json:"userId" validate:"required"`
	Reason string       `json:"reason" validate:"max=1000"`
}

type UnflagRequest struct {
	UserID principal.ID `json:"userId" validate:"required"`
}

type ModerateRequest struct {
	Action string `json:"action" validate:"required"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

type EnsureAccountRequest struct {
	VerificationStatus standing.Verification `json:"verificationStatus"`
}

type StandingRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type SuspendRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
	Days   int    `json:"days" validate:"gte=1"`
}

type StandingResponse struct {
	Account *standing.Account `json:"account"`
	Action  *standing.Action  `json:"action,omitempty"`
}

type CanPerformResponse struct {
	Allowed bool `json:"allowed"`
}

func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// Rejects callers whose principal is not on the moderator allow-list.
func (srv *Server) requireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := principal.ID(c.Request().Header.Get(moderatorHeader))
		if !id.Valid() {
			return echo.NewHTTPError(http.StatusUnauthorized, "moderator identity required")
		}
		ok, err := srv.engine.IsModerator(c.Request().Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			return echo.NewHTTPError(http.StatusForbidden, "not a moderator")
		}
		c.Set("moderator", id)
		return next(c)
	}
}

func moderatorID(c echo.Context) principal.ID {
	id, _ := c.Get("moderator").(principal.ID)
	return id
}

// Checks the acting account may perform action. Accounts the engine has not seen yet are allowed.
func (srv *Server) checkPermission(c echo.Context, userID principal.ID, action string) error {
	ok, err := srv.engine.CanPerform(c.Request().Context(), userID, action)
	if errors.Is(err, moderr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("account %s may not %s", userID, action))
	}
	return nil
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "civicmod"})
}

func (srv *Server) HandleFlagReasons(c echo.Context) error {
	return c.JSON(http.StatusOK, moderation.FlagReasons)
}

func (srv *Server) HandleSubmitContent(c echo.Context) error {
	var sub engine.Submission
	if err := c.Bind(&sub); err != nil {
		return err
	}
	if err := srv.checkPermission(c, sub.SubmitterID, standing.PermReport); err != nil {
		return err
	}
	st, err := srv.engine.SubmitContent(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, st)
}

func (srv *Server) HandleGetContent(c echo.Context) error {
	st, err := srv.engine.GetModerationStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleListContent(c echo.Context) error {
	listing := c.QueryParam("index")
	if listing == "" {
		listing = engine.ListingVisible
	}
	out, err := srv.engine.ListContent(c.Request().Context(), listing)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleFlag(c echo.Context) error {
	var req FlagRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := srv.checkPermission(c, req.UserID, "flag"); err != nil {
		return err
	}
	st, err := srv.engine.Flag(c.Request().Context(), c.Param("id"), req.UserID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleUnflag(c echo.Context) error {
	var req UnflagRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	st, err := srv.engine.Unflag(c.Request().Context(), c.Param("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleModerate(c echo.Context) error {
	var req ModerateRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	kind, ok := moderation.ParseAdminAction(req.Action)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown moderation action %q", req.Action))
	}
	st, err := srv.engine.AdminModerate(c.Request().Context(), c.Param("id"), moderatorID(c), kind, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleEnsureAccount(c echo.Context) error {
	var req EnsureAccountRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acct, created, err := srv.engine.EnsureAccount(c.Request().Context(), principal.ID(c.Param("id")), req.VerificationStatus)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, acct)
}

func (srv *Server) HandleGetAccount(c echo.Context) error {
	acct, err := srv.engine.GetUserStanding(c.Request().Context(), principal.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acct)
}

func (srv *Server) HandleListAccounts(c echo.Context) error {
	out, err := srv.engine.ListAccounts(c.Request().Context(), c.QueryParam("standing"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleAccountHistory(c echo.Context) error {
	out, err := srv.engine.UserHistory(c.Request().Context(), principal.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleCanPerform(c echo.Context) error {
	ok, err := srv.engine.CanPerform(c.Request().Context(), principal.ID(c.Param("id")), c.Param("action"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CanPerformResponse{Allowed: ok})
}

func (srv *Server) HandleBan(c echo.Context) error {
	var req StandingRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acct, act, err := srv.engine.Ban(c.Request().Context(), principal.ID(c.Param("id")), moderatorID(c), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StandingResponse{Account: acct, Action: act})
}

func (srv *Server) HandleUnban(c echo.Context) error {
	var req StandingRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acct, act, err := srv.engine.Unban(c.Request().Context(), principal.ID(c.Param("id")), moderatorID(c), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StandingResponse{Account: acct, Action: act})
}

func (srv *Server) HandleSuspend(c echo.Context) error {
	var req SuspendRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acct, act, err := srv.engine.Suspend(c.Request().Context(), principal.ID(c.Param("id")), moderatorID(c), req.Reason, req.Days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StandingResponse{Account: acct, Action: act})
}

func (srv *Server) HandleWarn(c echo.Context) error {
	var req StandingRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acct, act, err := srv.engine.Warn(c.Request().Context(), principal.ID(c.Param("id")), moderatorID(c), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StandingResponse{Account: acct, Action: act})
}

func (srv *Server) HandleSuggestions(c echo.Context) error {
	out, err := srv.engine.ListSuggestions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleStats(c echo.Context) error {
	out, err := srv.engine.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Maps an error to a response status, error label and message. Internal error details are not exposed.
func errorStatus(err error) (int, string, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, http.StatusText(he.Code), fmt.Sprintf("%v", he.Message)
	}
	kind := moderr.Kind(err)
	switch kind {
	case "invalid_argument":
		return http.StatusBadRequest, kind, err.Error()
	case "not_found":
		return http.StatusNotFound, kind, err.Error()
	case "invalid_transition", "conflict":
		return http.StatusConflict, kind, err.Error()
	default:
		return http.StatusInternalServerError, kind, "internal error"
	}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, kind, msg := errorStatus(err)
	if code >= 500 {
		srv.logger.Warn("civicmod-http-internal-error", "err", err, "path", c.Path())
	}
	if err := c.JSON(code, GenericError{Error: kind, Message: msg}); err != nil {
		srv.logger.Error("failed to write error response", "err", err)
	}
}
