package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/crypto/bcrypt"

	apiHandler "github.com/fastygo/taskhub/api/handler"
	"github.com/fastygo/taskhub/client/api"
	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/credential"
	"github.com/fastygo/taskhub/internal/infrastructure/monitor"
	"github.com/fastygo/taskhub/internal/metrics"
	"github.com/fastygo/taskhub/internal/middleware"
	"github.com/fastygo/taskhub/pkg/httpcontext"
	"github.com/fastygo/taskhub/repository/memory"
	authUC "github.com/fastygo/taskhub/usecase/auth"
	chatUC "github.com/fastygo/taskhub/usecase/chat"
	profileUC "github.com/fastygo/taskhub/usecase/profile"
	taskUC "github.com/fastygo/taskhub/usecase/task"
)

type testServer struct {
	ln *fasthttputil.InmemoryListener
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository()
	tasks := memory.NewTaskRepository()

	tokens := credential.NewTokenManager("test-secret", "taskhub", time.Hour)
	hasher := credential.NewPasswordHasher(bcrypt.MinCost)
	adapter := httpcontext.NewAdapter(5 * time.Second)

	auth := authUC.New(users, sessions, tokens, hasher, nil)
	appMetrics := metrics.New("taskhub_router_test")

	handlers := Handlers{
		Auth:   apiHandler.NewAuthHandler(auth, profileUC.New(users, nil), adapter, nil),
		Task:   apiHandler.NewTaskHandler(taskUC.New(tasks, nil), adapter, nil),
		Chat:   apiHandler.NewChatHandler(chatUC.New(), adapter, nil),
		Health: apiHandler.NewHealthHandler(monitor.New(nil, nil, nil, time.Second, nil), adapter, nil),
	}
	r := New(handlers, Options{
		Auth:      middleware.BearerAuth(auth, adapter, nil),
		AccessLog: middleware.AccessLog(nil, appMetrics),
		Metrics:   appMetrics.Handler(),
	})

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: r.Handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() {
		_ = server.Shutdown()
		_ = ln.Close()
	})
	return &testServer{ln: ln}
}

func (s *testServer) client(t *testing.T) *api.Client {
	t.Helper()
	c, err := api.New("http://taskhub.test", api.WithDialer(func(string) (net.Conn, error) {
		return s.ln.Dial()
	}))
	require.NoError(t, err)
	return c
}

func (s *testServer) raw(t *testing.T, method, path, token string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://taskhub.test" + path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return s.ln.Dial() }}
	resp := &fasthttp.Response{}
	require.NoError(t, client.DoTimeout(req, resp, 5*time.Second))
	return resp
}

func signIn(t *testing.T, c *api.Client, name, email string) *domain.Credential {
	t.Helper()
	ctx := context.Background()
	_, err := c.Register(ctx, domain.Registration{Name: name, Email: email, Password: "hunter22"})
	require.NoError(t, err)
	cred, err := c.Login(ctx, email, "hunter22")
	require.NoError(t, err)
	return cred
}

func TestAuthFlow(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t)
	ctx := context.Background()

	user, err := c.Register(ctx, domain.Registration{Name: "Alice", Email: "Alice@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = c.Register(ctx, domain.Registration{Name: "Alice 2", Email: "alice@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = c.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = c.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	cred, err := c.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Token)
	assert.Equal(t, cred.Token, c.Token())

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token())

	// The revoked token is rejected even though it has not expired.
	c.SetToken(cred.Token)
	_, err = c.Profile(ctx)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := startServer(t)

	for _, tc := range []struct{ method, path string }{
		{fasthttp.MethodGet, "/api/v1/tasks"},
		{fasthttp.MethodPost, "/api/v1/tasks"},
		{fasthttp.MethodGet, "/api/v1/tasks/abc"},
		{fasthttp.MethodPut, "/api/v1/tasks/abc"},
		{fasthttp.MethodDelete, "/api/v1/tasks/abc"},
		{fasthttp.MethodGet, "/api/v1/profile"},
		{fasthttp.MethodPost, "/api/v1/auth/logout"},
	} {
		resp := srv.raw(t, tc.method, tc.path, "")
		assert.Equal(t, fasthttp.StatusUnauthorized, resp.StatusCode(), "%s %s", tc.method, tc.path)

		resp = srv.raw(t, tc.method, tc.path, "not-a-jwt")
		assert.Equal(t, fasthttp.StatusUnauthorized, resp.StatusCode(), "%s %s", tc.method, tc.path)
	}
}

func TestTaskCRUD(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t)
	ctx := context.Background()
	signIn(t, c, "Alice", "alice@example.com")

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	due := domain.NewDate(2024, time.March, 15)
	created, err := c.CreateTask(ctx, domain.NewTask{Title: " Pay bills ", Priority: "high", DueDate: due})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Pay bills", created.Title)
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	assert.Equal(t, due, created.DueDate)
	assert.False(t, created.Completed)

	_, err = c.CreateTask(ctx, domain.NewTask{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)

	second, err := c.CreateTask(ctx, domain.NewTask{Title: "Walk dog"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, second.Priority)

	tasks, err = c.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)

	done := true
	updated, err := c.UpdateTask(ctx, created.ID, domain.TaskPatch{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Pay bills", updated.Title)
	assert.Equal(t, due, updated.DueDate)

	cleared, err := c.UpdateTask(ctx, created.ID, domain.TaskPatch{DueDate: domain.ClearDate()})
	require.NoError(t, err)
	assert.True(t, cleared.DueDate.IsZero())
	assert.True(t, cleared.Completed)

	got, err := c.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, cleared.ID, got.ID)

	require.NoError(t, c.DeleteTask(ctx, created.ID))
	assert.ErrorIs(t, c.DeleteTask(ctx, created.ID), domain.ErrTaskNotFound)
	_, err = c.GetTask(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTasksAreOwnerScoped(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	alice := srv.client(t)
	signIn(t, alice, "Alice", "alice@example.com")
	bob := srv.client(t)
	signIn(t, bob, "Bob", "bob@example.com")

	task, err := alice.CreateTask(ctx, domain.NewTask{Title: "Private"})
	require.NoError(t, err)

	_, err = bob.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	title := "Hijacked"
	_, err = bob.UpdateTask(ctx, task.ID, domain.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, bob.DeleteTask(ctx, task.ID), domain.ErrTaskNotFound)

	bobTasks, err := bob.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, bobTasks)

	mine, err := alice.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", mine.Title)
}

func TestChatAndHealth(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t)
	ctx := context.Background()

	reply, err := c.Chat(ctx, "What should I do today?")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	_, err = c.Chat(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrPromptRequired)

	resp := srv.raw(t, fasthttp.MethodGet, "/health", "")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"status":"success"`)
}

func TestMetricsExposeRouteLabels(t *testing.T) {
	srv := startServer(t)
	srv.raw(t, fasthttp.MethodGet, "/api/v1/tasks/some-id", "")

	resp := srv.raw(t, fasthttp.MethodGet, "/metrics", "")
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	body := string(resp.Body())
	assert.Contains(t, body, `route="/tasks/{id}"`)
	assert.NotContains(t, body, "some-id")
}
