package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contact-chat-lab/internal/auth"
	"contact-chat-lab/internal/chatapi"
	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/model"
)

// ConsoleHandler exposes console operations to the browser page (form posts
// that redirect back) and to scripts (JSON).
type ConsoleHandler struct {
	Console    *console.Console
	APIBaseURL string
	WSBaseURL  string
	Now        func() time.Time
}

type pageData struct {
	State      console.Snapshot
	APIBaseURL string
	WSBaseURL  string
	Token      *auth.TokenInfo
	TokenError string
	Expired    bool
	Directions []model.Direction
}

func (h *ConsoleHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *ConsoleHandler) Page(c *gin.Context) {
	snap := h.Console.Snapshot()
	data := pageData{
		State:      snap,
		APIBaseURL: h.APIBaseURL,
		WSBaseURL:  h.WSBaseURL,
		Directions: []model.Direction{model.DirectionAny, model.DirectionLocation, model.DirectionContact},
	}
	if snap.HasToken {
		info, err := auth.Inspect(snap.Session.AuthToken)
		if err != nil {
			data.TokenError = "not a JWT"
		} else {
			data.Token = &info
			data.Expired = info.Expired(h.now())
		}
	}
	c.HTML(http.StatusOK, "console.html", data)
}

func (h *ConsoleHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.Console.Snapshot())
}

type contextBody struct {
	LocationID string `json:"locationID" form:"locationID"`
	ContactID  string `json:"contactID" form:"contactID"`
	AuthToken  string `json:"authToken" form:"authToken"`
}

type filtersBody struct {
	Limit     string `json:"limit" form:"limit"`
	Offset    string `json:"offset" form:"offset"`
	Direction string `json:"direction" form:"direction"`
	UnreadBy  string `json:"unreadBy" form:"unreadBy"`
	StartTime string `json:"startTime" form:"startTime"`
	EndTime   string `json:"endTime" form:"endTime"`
}

type composerBody struct {
	Content     string `json:"content" form:"content"`
	Attachments string `json:"attachments" form:"attachments"`
}

type tokenExpiryBody struct {
	ExpiresAt string `json:"expiresAt" form:"expiresAt"`
}

// respond finishes a request either as a redirect to the page or as JSON.
func (h *ConsoleHandler) respond(c *gin.Context, asJSON bool, err error) {
	if !asJSON {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	status := http.StatusOK
	body := gin.H{"ok": err == nil, "state": h.Console.Snapshot()}
	if err != nil {
		body["error"] = err.Error()
		status = statusFor(err)
	}
	c.JSON(status, body)
}

// statusFor maps local validation failures to 422 and upstream ones to 502,
// keeping the chat API's own status when it answered.
func statusFor(err error) int {
	if console.IsRejected(err) {
		return http.StatusUnprocessableEntity
	}
	var apiErr *chatapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

func bindBody(c *gin.Context, asJSON bool, dst any) error {
	if asJSON {
		return c.ShouldBindJSON(dst)
	}
	return c.ShouldBind(dst)
}

func (h *ConsoleHandler) SetContext(asJSON bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body contextBody
		if err := bindBody(c, asJSON, &body); err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		h.Console.SetSession(console.Session{
			LocationID: body.LocationID,
			ContactID:  body.ContactID,
			AuthToken:  body.AuthToken,
		})
		h.respond(c, asJSON, nil)
	}
}

func (h *ConsoleHandler) SetFilters(asJSON bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body filtersBody
		if err := bindBody(c, asJSON, &body); err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		direction, err := model.ParseDirection(body.Direction)
		if err != nil {
			abortMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		unreadBy, err := model.ParseDirection(body.UnreadBy)
		if err != nil {
			abortMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		h.Console.SetFilters(console.Filters{
			Limit:     body.Limit,
			Offset:    body.Offset,
			Direction: direction,
			UnreadBy:  unreadBy,
			StartTime: body.StartTime,
			EndTime:   body.EndTime,
		})
		h.respond(c, asJSON, nil)
	}
}

func (h *ConsoleHandler) SetComposer(asJSON bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body composerBody
		if err := bindBody(c, asJSON, &body); err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		h.Console.SetComposer(body.Content, body.Attachments)
		h.respond(c, asJSON, nil)
	}
}

func (h *ConsoleHandler) SetTokenExpiry(asJSON bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body tokenExpiryBody
		if err := bindBody(c, asJSON, &body); err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		h.Console.SetTokenExpiry(body.ExpiresAt)
		h.respond(c, asJSON, nil)
	}
}

// postedFields is whatever part of the page's inputs came with an action.
// Missing fields leave the console state alone.
type postedFields struct {
	LocationID *string `json:"locationID" form:"locationID"`
	ContactID  *string `json:"contactID" form:"contactID"`
	AuthToken  *string `json:"authToken" form:"authToken"`

	Limit     *string `json:"limit" form:"limit"`
	Offset    *string `json:"offset" form:"offset"`
	Direction *string `json:"direction" form:"direction"`
	UnreadBy  *string `json:"unreadBy" form:"unreadBy"`
	StartTime *string `json:"startTime" form:"startTime"`
	EndTime   *string `json:"endTime" form:"endTime"`

	Content     *string `json:"content" form:"content"`
	Attachments *string `json:"attachments" form:"attachments"`

	ExpiresAt *string `json:"expiresAt" form:"expiresAt"`
}

func bindPosted(c *gin.Context, asJSON bool) (postedFields, error) {
	var posted postedFields
	if !asJSON {
		err := c.ShouldBind(&posted)
		return posted, err
	}
	raw, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return posted, err
	}
	err = json.Unmarshal(raw, &posted)
	return posted, err
}

func overlay(dst *string, src *string) bool {
	if src == nil {
		return false
	}
	*dst = *src
	return true
}

func overlayDirection(dst *model.Direction, src *string) (bool, error) {
	if src == nil {
		return false, nil
	}
	d, err := model.ParseDirection(*src)
	if err != nil {
		return false, err
	}
	*dst = d
	return true, nil
}

// apply copies posted inputs into the console before an action runs.
func (h *ConsoleHandler) apply(p postedFields) error {
	snap := h.Console.Snapshot()

	filters := snap.Filters
	changedDirection, err := overlayDirection(&filters.Direction, p.Direction)
	if err != nil {
		return err
	}
	changedUnread, err := overlayDirection(&filters.UnreadBy, p.UnreadBy)
	if err != nil {
		return err
	}

	session := snap.Session
	if a, b, t := overlay(&session.LocationID, p.LocationID), overlay(&session.ContactID, p.ContactID), overlay(&session.AuthToken, p.AuthToken); a || b || t {
		h.Console.SetSession(session)
	}

	changed := changedDirection || changedUnread
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&filters.Limit, p.Limit},
		{&filters.Offset, p.Offset},
		{&filters.StartTime, p.StartTime},
		{&filters.EndTime, p.EndTime},
	} {
		if overlay(f.dst, f.src) {
			changed = true
		}
	}
	if changed {
		h.Console.SetFilters(filters)
	}

	composer := snap.Composer
	if a, b := overlay(&composer.Content, p.Content), overlay(&composer.Attachments, p.Attachments); a || b {
		h.Console.SetComposer(composer.Content, composer.Attachments)
	}

	if p.ExpiresAt != nil {
		h.Console.SetTokenExpiry(*p.ExpiresAt)
	}
	return nil
}

// withPosted applies the posted inputs, then hands over to next.
func (h *ConsoleHandler) withPosted(asJSON bool, next func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		posted, err := bindPosted(c, asJSON)
		if err != nil {
			abortMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.apply(posted); err != nil {
			abortMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		next(c)
	}
}

// Run wraps a console operation. Outcomes already land in the status log, so
// the page only needs a redirect.
func (h *ConsoleHandler) Run(asJSON bool, op func(ctx context.Context) error) gin.HandlerFunc {
	return h.withPosted(asJSON, func(c *gin.Context) {
		h.respond(c, asJSON, op(c.Request.Context()))
	})
}

// Do wraps a console action that cannot fail.
func (h *ConsoleHandler) Do(asJSON bool, action func()) gin.HandlerFunc {
	return h.withPosted(asJSON, func(c *gin.Context) {
		action()
		h.respond(c, asJSON, nil)
	})
}

func (h *ConsoleHandler) Invalidate(asJSON bool) gin.HandlerFunc {
	return h.withPosted(asJSON, func(c *gin.Context) {
		h.respond(c, asJSON, h.Console.InvalidateToken(c.Request.Context(), c.Param("id")))
	})
}
