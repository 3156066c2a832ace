package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/engine"

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

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "siftd"})
}

type decisionView struct {
	Fingerprint    string    `json:"fingerprint"`
	Verdict        string    `json:"verdict"`
	ReviewerID     string    `json:"reviewer_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	NormalizedText string    `json:"normalized_text,omitempty"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

func viewDecision(d *decisionstore.Decision) *decisionView {
	if d == nil {
		return nil
	}
	return &decisionView{
		Fingerprint:    d.PrimaryFingerprint,
		Verdict:        d.Verdict.String(),
		ReviewerID:     d.ReviewerID,
		Reason:         d.Reason,
		NormalizedText: d.NormalizedText,
		Source:         d.Source.String(),
		CreatedAt:      d.CreatedAt,
	}
}

type scanRequest struct {
	ContentID string `json:"content_id"`
	ScopeID   string `json:"scope_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	Link      string `json:"link"`
}

type scanResponse struct {
	Status   string        `json:"status"`
	CaseID   string        `json:"case_id,omitempty"`
	Decision *decisionView `json:"decision,omitempty"`
}

// POST /scan
func (srv *Server) HandleScan(c echo.Context) error {
	var body scanRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: err.Error(),
		})
	}
	if body.ContentID == "" || body.Text == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "request fields missing or empty: content_id, text",
		})
	}

	res, err := srv.engine.Scan(c.Request().Context(), casestore.RawContent{
		ContentID:   body.ContentID,
		ScopeID:     body.ScopeID,
		AuthorID:    body.AuthorID,
		Text:        body.Text,
		Link:        body.Link,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}

	out := scanResponse{Status: res.Status.String()}
	if res.Case != nil {
		out.CaseID = res.Case.Content.ContentID
	}
	out.Decision = viewDecision(res.Decision)
	return c.JSON(http.StatusOK, out)
}

type voteRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Choice     string `json:"choice"`
}

type voteResponse struct {
	Outcome   string        `json:"outcome"`
	Whitelist int           `json:"whitelist"`
	Blacklist int           `json:"blacklist"`
	Decision  *decisionView `json:"decision,omitempty"`
}

// POST /cases/:id/votes
func (srv *Server) HandleVote(c echo.Context) error {
	var body voteRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: err.Error(),
		})
	}
	if body.ReviewerID == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "request field missing or empty: reviewer_id",
		})
	}
	choice, err := decisionstore.ParseVerdict(body.Choice)
	if err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidChoice",
			Message: err.Error(),
		})
	}

	vr, err := srv.engine.CastVote(c.Request().Context(), c.Param("id"), body.ReviewerID, choice)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	if vr.Outcome == engine.VoteNotFound {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "CaseNotFound",
			Message: "no open flag case with that ID",
		})
	}
	return c.JSON(http.StatusOK, voteResponse{
		Outcome:   vr.Outcome.String(),
		Whitelist: vr.Whitelist,
		Blacklist: vr.Blacklist,
		Decision:  viewDecision(vr.Decision),
	})
}

type overruleRequest struct {
	AdminID string `json:"admin_id"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// POST /cases/:id/overrule
func (srv *Server) HandleOverrule(c echo.Context) error {
	var body overruleRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: err.Error(),
		})
	}
	if body.AdminID == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "request field missing or empty: admin_id",
		})
	}
	verdict, err := decisionstore.ParseVerdict(body.Verdict)
	if err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidVerdict",
			Message: err.Error(),
		})
	}

	d, err := srv.engine.Overrule(c.Request().Context(), c.Param("id"), body.AdminID, verdict, body.Reason)
	if err != nil && errors.Is(err, engine.ErrCaseNotFound) {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "CaseNotFound",
			Message: err.Error(),
		})
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, viewDecision(d))
}

// GET /decisions?text=
func (srv *Server) HandleLookupDecision(c echo.Context) error {
	text := c.QueryParam("text")
	if text == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "query parameter missing or empty: text",
		})
	}

	d, err := srv.engine.LookupDecision(c.Request().Context(), text)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	if d == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "DecisionNotFound",
			Message: "no prior decision matches that text",
		})
	}
	return c.JSON(http.StatusOK, viewDecision(d))
}

type pendingCaseView struct {
	ContentID string    `json:"content_id"`
	ScopeID   string    `json:"scope_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /cases/pending?scope=
func (srv *Server) HandlePendingCases(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, GenericError{
				Error:   "BadRequest",
				Message: "query parameter must be a positive integer: limit",
			})
		}
		limit = n
	}

	entries, err := srv.engine.ReviewLog.Pending(c.Request().Context(), c.QueryParam("scope"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}

	out := make([]pendingCaseView, len(entries))
	for i, e := range entries {
		out[i] = pendingCaseView{
			ContentID: e.ContentID,
			ScopeID:   e.ScopeID,
			AuthorID:  e.AuthorID,
			Content:   e.Content,
			Link:      e.Link,
			CreatedAt: e.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"cases": out})
}

type settingsView struct {
	ScopeID           string `json:"scope_id"`
	ModerationEnabled bool   `json:"moderation_enabled"`
}

// GET /scopes/:id/settings
func (srv *Server) HandleGetSettings(c echo.Context) error {
	enabled, err := engine.ModerationEnabled(c.Request().Context(), srv.engine.Settings, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, settingsView{
		ScopeID:           c.Param("id"),
		ModerationEnabled: enabled,
	})
}

type settingsUpdateRequest struct {
	ModerationEnabled *bool `json:"moderation_enabled"`
}

// PUT /scopes/:id/settings
//
// Scopes opt in to moderation here: scans short-circuit to not_flagged
// until moderation_enabled is set true for the scope.
func (srv *Server) HandleUpdateSettings(c echo.Context) error {
	var body settingsUpdateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: err.Error(),
		})
	}
	if body.ModerationEnabled == nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "request field missing: moderation_enabled",
		})
	}

	err := engine.SetModerationEnabled(c.Request().Context(), srv.engine.Settings, c.Param("id"), *body.ModerationEnabled)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, settingsView{
		ScopeID:           c.Param("id"),
		ModerationEnabled: *body.ModerationEnabled,
	})
}

// GET /stats?scope=&days=
func (srv *Server) HandleStats(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, GenericError{
				Error:   "BadRequest",
				Message: "query parameter must be a positive integer: days",
			})
		}
		days = n
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := srv.engine.ReviewLog.Stats(c.Request().Context(), c.QueryParam("scope"), since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "InternalServerError",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"scope": c.QueryParam("scope"),
		"days":  days,
		"stats": stats,
	})
}
