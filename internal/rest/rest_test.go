package rest

import (
	"context"
	"errors"
	"net"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/seventv/chatsync/internal/app"
	"github.com/seventv/chatsync/internal/configure"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/structures"
	"github.com/seventv/chatsync/internal/svc/identity"
	"github.com/seventv/chatsync/internal/svc/store"
	"github.com/seventv/chatsync/internal/testutil"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type harness struct {
	t      *testing.T
	gCtx   global.Context
	store  *store.MockInstance
	client *fasthttp.Client
}

func setup(t *testing.T, opts ...func(*configure.Config)) *harness {
	t.Helper()

	config := configure.Default()
	config.Credentials.JWTSecret = "test-secret"

	for _, opt := range opts {
		opt(&config)
	}

	gCtx, cancel := global.WithCancel(global.New(context.Background(), &config))

	s := store.NewMock()
	app.Setup(gCtx, app.Options{
		Store:    s,
		Identity: identity.NewMock(),
	})

	ln := fasthttputil.NewInmemoryListener()
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = Serve(gCtx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{
		t:     t,
		gCtx:  gCtx,
		store: s,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
	}
}

func (h *harness) do(method, path, token string, body interface{}) (int, []byte) {
	h.t.Helper()

	status, b, _ := h.doHeaders(method, path, token, body)

	return status, b
}

func (h *harness) doHeaders(method, path, token string, body interface{}) (int, []byte, map[string]string) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://chatsync" + path)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if body != nil {
		b, err := json.Marshal(body)
		testutil.IsNil(h.t, err, "encode body")
		req.SetBody(b)
	}

	testutil.IsNil(h.t, h.client.Do(req, resp), "request "+path)

	headers := map[string]string{}
	resp.Header.VisitAll(func(k, v []byte) {
		headers[strings.ToLower(string(k))] = string(v)
	})

	return resp.StatusCode(), append([]byte(nil), resp.Body()...), headers
}

type sessionBody struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (h *harness) register(email, name string) sessionBody {
	h.t.Helper()

	status, b := h.do("POST", "/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "hunter22",
		"name":     name,
	})
	testutil.Assert(h.t, 201, status, "register status: "+string(b))

	sess := sessionBody{}
	testutil.IsNil(h.t, json.Unmarshal(b, &sess), "decode session")

	return sess
}

func TestRouteTree(t *testing.T) {
	t.Parallel()

	h := setup(t)

	s := HttpServer{router: router.New()}
	s.SetupHandlers()
	s.V1(h.gCtx)

	routes := s.router.List()

	for _, path := range []string{"/v1", "/v1/auth", "/v1/auth/me", "/v1/users/{user.id}", "/v1/ws"} {
		testutil.Assert(t, true, slices.Contains(routes["GET"], path), "GET "+path)
	}

	for _, path := range []string{"/v1/auth/register", "/v1/auth/login", "/v1/auth/logout", "/v1/messages"} {
		testutil.Assert(t, true, slices.Contains(routes["POST"], path), "POST "+path)
	}

	for _, paths := range routes {
		for _, path := range paths {
			testutil.Assert(t, true, strings.HasPrefix(path, "/v1"), "registered under /v1: "+path)
		}
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	h := setup(t)

	status, b := h.do("GET", "/v1", "", nil)
	testutil.Assert(t, 200, status, "root")
	testutil.Assert(t, `{"online":true}`, string(b), "body")

	status, _ = h.do("GET", "/nope", "", nil)
	testutil.Assert(t, 404, status, "unknown route")
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()

	h := setup(t)
	sess := h.register("amy@example.com", "Amy")
	testutil.Assert(t, true, sess.Token != "", "token")

	status, b := h.do("GET", "/v1/auth/me", sess.Token, nil)
	testutil.Assert(t, 200, status, "me")
	testutil.Assert(t, `{"user_id":"`+sess.UserID+`"}`, string(b), "me body")

	status, _ = h.do("POST", "/v1/auth/login", "", map[string]string{"email": "amy@example.com", "password": "hunter22"})
	testutil.Assert(t, 200, status, "login")

	status, _ = h.do("POST", "/v1/auth/login", "", map[string]string{"email": "amy@example.com", "password": "wrong!!"})
	testutil.Assert(t, 401, status, "bad password")

	status, _ = h.do("POST", "/v1/auth/register", "", map[string]string{"email": "amy@example.com", "password": "hunter22", "name": "Again"})
	testutil.Assert(t, 409, status, "email taken")

	status, _ = h.do("POST", "/v1/auth/register", "", map[string]string{"email": "bo@example.com", "password": "123", "name": "Bo"})
	testutil.Assert(t, 400, status, "weak password")

	status, _ = h.do("GET", "/v1/auth/me", "", nil)
	testutil.Assert(t, 401, status, "no token")
}

func TestLogout(t *testing.T) {
	t.Parallel()

	h := setup(t)
	sess := h.register("cy@example.com", "Cy")

	status, _ := h.do("POST", "/v1/auth/logout", sess.Token, nil)
	testutil.Assert(t, 204, status, "logout")

	status, _ = h.do("GET", "/v1/auth/me", sess.Token, nil)
	testutil.Assert(t, 401, status, "revoked")

	testutil.Assert(t, false, h.gCtx.Inst().Presence.Online(context.Background(), sess.UserID), "offline")
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := setup(t)

	a := h.register("a@example.com", "A")
	b := h.register("b@example.com", "B")

	status, body := h.do("POST", "/v1/messages", a.Token, map[string]string{"receiver_id": b.UserID, "text": " hi "})
	testutil.Assert(t, 201, status, "sent: "+string(body))

	msg := structures.Message{}
	testutil.IsNil(t, json.Unmarshal(body, &msg), "decode message")
	testutil.Assert(t, "hi", msg.Text, "trimmed text")
	testutil.Assert(t, a.UserID, msg.SenderID, "sender is the caller")

	_, err := h.store.Get(ctx, structures.MessagePath(a.UserID, b.UserID, msg.ID))
	testutil.IsNil(t, err, "sender copy")
	_, err = h.store.Get(ctx, structures.MessagePath(b.UserID, a.UserID, msg.ID))
	testutil.IsNil(t, err, "receiver copy")

	status, _ = h.do("POST", "/v1/messages", a.Token, map[string]string{"receiver_id": "ghost", "text": "hi"})
	testutil.Assert(t, 404, status, "unknown receiver")

	status, _ = h.do("POST", "/v1/messages", a.Token, map[string]string{"receiver_id": b.UserID, "text": "   "})
	testutil.Assert(t, 400, status, "blank text")

	status, _ = h.do("POST", "/v1/messages", a.Token, map[string]string{"receiver_id": a.UserID, "text": "me"})
	testutil.Assert(t, 400, status, "self send")

	status, _ = h.do("POST", "/v1/messages", "", map[string]string{"receiver_id": b.UserID, "text": "hi"})
	testutil.Assert(t, 401, status, "anonymous")
}

func TestSendPartialDelivery(t *testing.T) {
	t.Parallel()

	h := setup(t)

	a := h.register("a@example.com", "A")
	b := h.register("b@example.com", "B")

	h.store.FailSet(func(path string) error {
		if strings.HasPrefix(path, structures.MailboxPath(b.UserID, a.UserID)+"/") {
			return errors.New("receiver shard down")
		}

		return nil
	})

	status, body := h.do("POST", "/v1/messages", a.Token, map[string]string{"receiver_id": b.UserID, "text": "hi"})
	testutil.Assert(t, 502, status, "partial delivery")

	resp := errorBody{}
	testutil.IsNil(t, json.Unmarshal(body, &resp), "decode error")
	testutil.Assert(t, 502, resp.StatusCode, "status in body")
}

type errorBody struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

func TestSendRateLimited(t *testing.T) {
	t.Parallel()

	h := setup(t, func(c *configure.Config) {
		c.Limits.Messages = configure.Limit{Count: 2, Window: time.Minute}
	})

	a := h.register("a@example.com", "A")
	b := h.register("b@example.com", "B")

	send := map[string]string{"receiver_id": b.UserID, "text": "hi"}

	status, _, headers := h.doHeaders("POST", "/v1/messages", a.Token, send)
	testutil.Assert(t, 201, status, "first")
	testutil.Assert(t, "2", headers["x-ratelimit-limit"], "limit header")
	testutil.Assert(t, "1", headers["x-ratelimit-remaining"], "remaining header")

	status, _ = h.do("POST", "/v1/messages", a.Token, send)
	testutil.Assert(t, 201, status, "second")

	status, _ = h.do("POST", "/v1/messages", a.Token, send)
	testutil.Assert(t, 429, status, "third is limited")

	status, _ = h.do("POST", "/v1/messages", b.Token, map[string]string{"receiver_id": a.UserID, "text": "hey"})
	testutil.Assert(t, 201, status, "other sender has its own bucket")
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	h := setup(t)

	a := h.register("a@example.com", "Ann")
	b := h.register("b@example.com", "Ben")

	status, body := h.do("GET", "/v1/users/"+b.UserID, a.Token, nil)
	testutil.Assert(t, 200, status, "get user")

	u := struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Online bool   `json:"online"`
	}{}
	testutil.IsNil(t, json.Unmarshal(body, &u), "decode user")
	testutil.Assert(t, b.UserID, u.ID, "id")
	testutil.Assert(t, "Ben", u.Name, "name")
	testutil.Assert(t, true, u.Online, "signed in users are online")

	status, _ = h.do("GET", "/v1/users/ghost", a.Token, nil)
	testutil.Assert(t, 404, status, "unknown user")

	status, _ = h.do("GET", "/v1/users/"+b.UserID, "", nil)
	testutil.Assert(t, 401, status, "anonymous")
}
