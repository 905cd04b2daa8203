package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"rendezvous/internal/config"
	"rendezvous/internal/geo"
	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type geocoderStub struct {
	point *geo.Point
	err   error
}

func (g *geocoderStub) Geocode(context.Context, string) (*geo.Point, error) {
	return g.point, g.err
}

type notifierStub struct {
	mu    sync.Mutex
	pairs [][2]uint
}

func (n *notifierStub) NotifyMutualMatch(_ context.Context, a, b *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pairs = append(n.pairs, [2]uint{a.ID, b.ID})
	return nil
}

type testEnv struct {
	srv      *Server
	db       *gorm.DB
	mr       *miniredis.Miniredis
	geocoder *geocoderStub
	notifier *notifierStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      "test-secret-key-12345678901234567890123456789012",
		JWTAlgorithm:   "HS256",
		TokenTTLDays:   30,
		Env:            "test",
		AvatarDir:      t.TempDir(),
		DailyLikeLimit: 5,
		DefaultAddress: "Red Square, Moscow",
	}
	db := testutil.NewSQLiteDB(t)
	rdb, mr := testutil.NewRedis(t)
	g := &geocoderStub{point: &geo.Point{Latitude: 55.7539, Longitude: 37.6208}}
	n := &notifierStub{}

	srv, err := NewServer(cfg, Deps{DB: db, Redis: rdb, Geocoder: g, MatchNotifier: n})
	require.NoError(t, err)
	return &testEnv{srv: srv, db: db, mr: mr, geocoder: g, notifier: n}
}

// tokenFor issues an access token for u.
func (e *testEnv) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := e.srv.auth.IssueToken(u.ID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) authed(t *testing.T, method, target, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: token})
	return e.do(t, req)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func multipartRequest(t *testing.T, target string, fields map[string]string, avatar []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if avatar != nil {
		part, err := w.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = part.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	return req
}
