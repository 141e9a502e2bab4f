package rest

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/common/errors"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Ctx struct {
	*fasthttp.RequestCtx
}

type APIError = errors.APIError

func (c *Ctx) JSON(status HttpStatusCode, v interface{}) APIError {
	b, err := json.Marshal(v)
	if err != nil {
		c.SetStatusCode(InternalServerError)
		return errors.ErrInternalServerError().
			SetDetail("JSON Parsing Failed").
			SetFields(errors.Fields{"JSON_ERROR": err.Error()})
	}

	c.SetStatusCode(status)
	c.SetContentType("application/json")
	c.SetBody(b)

	return nil
}

// Bind decodes the JSON request body into v.
func (c *Ctx) Bind(v interface{}) APIError {
	if len(c.PostBody()) == 0 {
		return errors.ErrInvalidRequest().SetDetail("Request body is empty")
	}

	if err := json.Unmarshal(c.PostBody(), v); err != nil {
		return errors.ErrInvalidRequest().SetDetail("Malformed JSON body: %s", err.Error())
	}

	return nil
}

func (c *Ctx) NoContent() APIError {
	c.SetStatusCode(NoContent)
	c.ResetBody()

	return nil
}

func (c *Ctx) SetStatusCode(code HttpStatusCode) {
	c.RequestCtx.SetStatusCode(int(code))
}

func (c *Ctx) StatusCode() HttpStatusCode {
	return HttpStatusCode(c.RequestCtx.Response.StatusCode())
}

// Set the current authenticated user and the token they used
func (c *Ctx) SetActor(userID, token string) {
	c.SetUserValue(string(AuthUserKey), userID)
	c.SetUserValue(string(AuthTokenKey), token)
}

// Get the current authenticated user
func (c *Ctx) GetActor() (string, bool) {
	return c.UserValue(AuthUserKey).String()
}

func (c *Ctx) GetToken() (string, bool) {
	return c.UserValue(AuthTokenKey).String()
}
