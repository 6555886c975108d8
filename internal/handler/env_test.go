package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/content-hub/internal/auth"
	"github.com/sakif/content-hub/internal/handler"
	sqliteRepo "github.com/sakif/content-hub/internal/repository/sqlite"
	"github.com/sakif/content-hub/internal/service"
	"github.com/sakif/content-hub/internal/storage"
	"github.com/sakif/content-hub/internal/validation"
)

// testEnv wires real services over an in-memory database and a temporary
// upload folder, so handler tests exercise the whole stack below HTTP.
type testEnv struct {
	db         *sqliteRepo.DB
	tokens     *auth.TokenService
	auth       *handler.AuthHandler
	categories *handler.CategoryHandler
	contents   *handler.ContentHandler
	files      *handler.FileHandler
	targets    *handler.TargetHandler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	validate := validation.New()
	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)

	return &testEnv{
		db:         db,
		tokens:     tokens,
		auth:       handler.NewAuthHandler(authSvc, nil, tokens, validate, logger),
		categories: handler.NewCategoryHandler(service.NewCategoryService(db, logger), validate, logger),
		contents:   handler.NewContentHandler(service.NewContentService(db, logger), validate, logger),
		files:      handler.NewFileHandler(service.NewFileService(db, db, blobs, 1<<10, logger), logger),
		targets:    handler.NewTargetHandler(service.NewTargetService(db, db, logger), validate),
	}
}

// register creates an account through the handler and returns its id.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	rr := serve(e.auth.HandleRegister, jsonRequest(http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "pw123",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rr, &body)
	return body.User.ID
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// as marks the request as authenticated for userID, standing in for
// auth.RequireAuth.
func as(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

// withPath sets path values the router would normally fill in.
func withPath(req *http.Request, kv ...string) *http.Request {
	for i := 0; i+1 < len(kv); i += 2 {
		req.SetPathValue(kv[i], kv[i+1])
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), "body: %s", rr.Body.String())
}

type errorBody struct {
	Error               string `json:"error"`
	Message             string `json:"message"`
	Field               string `json:"field"`
	Stage               string `json:"stage"`
	Details             any    `json:"details"`
	RawPredictionDetail any    `json:"raw_prediction_detail"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	decode(t, rr, &body)
	return body
}
