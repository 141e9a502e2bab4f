package rest

import (
	"github.com/fasthttp/router"
)

type Route interface {
	Config() RouteConfig
	Handler(ctx *Ctx) APIError
}

type Router = router.Router

type RouteConfig struct {
	URI        string
	Method     RouteMethod
	Children   []Route
	Middleware []Middleware
}

type RouteMethod string

const (
	GET    RouteMethod = "GET"
	POST   RouteMethod = "POST"
	DELETE RouteMethod = "DELETE"
)

type Middleware = func(ctx *Ctx) APIError

type APIErrorResponse struct {
	StatusCode HttpStatusCode         `json:"status_code"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error"`
	ErrorCode  int                    `json:"error_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

type HttpStatusCode int

const (
	OK                  HttpStatusCode = 200
	Created             HttpStatusCode = 201
	NoContent           HttpStatusCode = 204
	BadRequest          HttpStatusCode = 400
	Unauthorized        HttpStatusCode = 401
	Forbidden           HttpStatusCode = 403
	NotFound            HttpStatusCode = 404
	MethodNotAllowed    HttpStatusCode = 405
	Conflict            HttpStatusCode = 409
	TooManyRequests     HttpStatusCode = 429
	InternalServerError HttpStatusCode = 500
	BadGateway          HttpStatusCode = 502
	ServiceUnavailable  HttpStatusCode = 503
)

// String: return the http status code in text form
func (c HttpStatusCode) String() string {
	return codeTextMap[c]
}

var codeTextMap = map[HttpStatusCode]string{
	OK:                  "OK",
	Created:             "Created",
	NoContent:           "No Content",
	BadRequest:          "Bad Request",
	Unauthorized:        "Unauthorized",
	Forbidden:           "Forbidden",
	NotFound:            "Not Found",
	MethodNotAllowed:    "Method Not Allowed",
	Conflict:            "Conflict",
	TooManyRequests:     "Too Many Requests",
	InternalServerError: "Internal Server Error",
	BadGateway:          "Bad Gateway",
	ServiceUnavailable:  "Service Unavailable",
}
