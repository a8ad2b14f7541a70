package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/auth"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/config"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document/extractor"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/document/pdftest"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/session"
	"github.com/sanjeevkumarraob/pdf-text-service/pkg/recordstore"
)

const testMaxSize = 4096

type testServer struct {
	router *gin.Engine
	jwt    *auth.JWTManager
	store  recordstore.Store
}

func newTestServer(t *testing.T, store recordstore.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if store == nil {
		store = recordstore.NewMemoryStore()
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.NewDefaultConfig()
	cfg.RateLimit.Enabled = false
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limits := document.DefaultLimits()
	limits.MaxSizeBytes = testMaxSize
	processor := document.NewProcessor(extractor.NewPDFParser(extractor.DefaultOptions()), limits, logger)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Hour)
	sessOpts := session.Options{MaxAge: 3600}
	sessions := session.NewSessionManager(logger, session.NewStore(cfg.Auth.SessionSecret, sessOpts), sessOpts)
	authenticator := NewAuthenticator(jwtManager, sessions, logger)

	handler := NewHandler(processor, store, authenticator, logger, 512)
	return &testServer{
		router: NewRouter(handler, cfg, logger),
		jwt:    jwtManager,
		store:  store,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.jwt.GenerateToken(userID, userID+"@example.com", userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, fileName, mediaType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	if mediaType != "" {
		header.Set("Content-Type", mediaType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func twoPagePDF() []byte {
	return pdftest.New().
		AddPage(pdftest.TextLine("Total:", "100")).
		AddPage(pdftest.TextLine("Page", "two")).
		Bytes()
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestUpload_Success(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "user-1")

	w := s.do(uploadRequest(t, "invoice.pdf", "application/pdf", twoPagePDF()), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Total: 100\n\nPage two", body["text"])

	records, err := s.store.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "invoice.pdf", records[0].FileName)
	assert.Equal(t, "Total: 100\n\nPage two", records[0].Text)
	assert.NotEmpty(t, records[0].ID)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		request    func(t *testing.T) *http.Request
		token      bool
		wantStatus int
		wantError  string
	}{
		{
			name: "unauthenticated",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "a.pdf", "application/pdf", twoPagePDF())
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name: "no multipart body",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
			},
			token:      true,
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name: "wrong field name",
			request: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				fw, err := mw.CreateFormFile("document", "a.pdf")
				require.NoError(t, err)
				_, _ = fw.Write(twoPagePDF())
				require.NoError(t, mw.Close())
				req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
				req.Header.Set("Content-Type", mw.FormDataContentType())
				return req
			},
			token:      true,
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name: "plain text file",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "notes.txt", "text/plain", []byte("hello"))
			},
			token:      true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "empty file",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "empty.pdf", "application/pdf", nil)
			},
			token:      true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "over size limit",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), testMaxSize+1))
			},
			token:      true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "truncated pdf",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "broken.pdf", "application/pdf", pdftest.Truncate(twoPagePDF()))
			},
			token:      true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			var token string
			if tt.token {
				token = s.token(t, "user-1")
			}

			w := s.do(tt.request(t), token)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}

			records, err := s.store.List(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Empty(t, records, "failed uploads store nothing")
		})
	}
}

func TestUpload_TruncatedReportsParseFailure(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(uploadRequest(t, "broken.pdf", "application/pdf", pdftest.Truncate(twoPagePDF())), s.token(t, "user-1"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.HasPrefix(decode(t, w)["error"].(string), "Failed to parse PDF"))
}

func TestUpload_Duplicate(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "user-1")

	w := s.do(uploadRequest(t, "report.pdf", "application/pdf", twoPagePDF()), token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(uploadRequest(t, "report.pdf", "application/pdf", twoPagePDF()), token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, msgDuplicateFile, decode(t, w)["error"])

	// same name for another user is fine
	w = s.do(uploadRequest(t, "report.pdf", "application/pdf", twoPagePDF()), s.token(t, "user-2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

// insertFailingStore accepts everything except writes
type insertFailingStore struct {
	*recordstore.MemoryStore
	insertErr error
}

func (s *insertFailingStore) Insert(ctx context.Context, rec *recordstore.Record) error {
	return s.insertErr
}

func TestUpload_StoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		insertErr  error
		wantStatus int
		wantError  string
	}{
		{name: "write fails", insertErr: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantError: msgSaveFailed},
		{name: "lost duplicate race", insertErr: recordstore.ErrDuplicate, wantStatus: http.StatusConflict, wantError: msgDuplicateFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &insertFailingStore{MemoryStore: recordstore.NewMemoryStore(), insertErr: tt.insertErr}
			s := newTestServer(t, store)

			w := s.do(uploadRequest(t, "a.pdf", "application/pdf", twoPagePDF()), s.token(t, "user-1"))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decode(t, w)["error"])
		})
	}
}

func seed(t *testing.T, store recordstore.Store, recs ...*recordstore.Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, store.Insert(context.Background(), rec))
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestServer(t, nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, s.store,
		&recordstore.Record{ID: "a", UserID: "user-1", FileName: "old.pdf", Text: "short", UploadedAt: base},
		&recordstore.Record{ID: "b", UserID: "user-1", FileName: "new.pdf", Text: strings.Repeat("é", 60), UploadedAt: base.Add(time.Hour)},
		&recordstore.Record{ID: "c", UserID: "user-2", FileName: "other.pdf", Text: "hidden", UploadedAt: base},
	)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/pdf", nil), s.token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Documents []struct {
			ID       string `json:"id"`
			FileName string `json:"fileName"`
			Preview  string `json:"preview"`
		} `json:"documents"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.Equal(t, 2, body.Count)
	assert.Equal(t, "b", body.Documents[0].ID, "newest first")
	assert.Equal(t, strings.Repeat("é", 50)+"...", body.Documents[0].Preview)
	assert.Equal(t, "a", body.Documents[1].ID)
	assert.Equal(t, "short", body.Documents[1].Preview)
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s.store, &recordstore.Record{ID: "doc-1", UserID: "user-1", FileName: "a.pdf", Text: "full text", UploadedAt: time.Now()})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/pdf/doc-1", nil), s.token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "full text", decode(t, w)["text"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/pdf/doc-1", nil), s.token(t, "user-2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s.store, &recordstore.Record{ID: "doc-1", UserID: "user-1", FileName: "a.pdf", Text: "x", UploadedAt: time.Now()})

	tests := []struct {
		name       string
		target     string
		user       string
		wantStatus int
	}{
		{name: "missing id", target: "/api/pdf", user: "user-1", wantStatus: http.StatusBadRequest},
		{name: "other user", target: "/api/pdf?id=doc-1", user: "user-2", wantStatus: http.StatusNotFound},
		{name: "owner", target: "/api/pdf?id=doc-1", user: "user-1", wantStatus: http.StatusOK},
		{name: "already deleted", target: "/api/pdf?id=doc-1", user: "user-1", wantStatus: http.StatusNotFound},
	}

	// cases run in order against the same store
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodDelete, tt.target, nil), s.token(t, tt.user))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	records, err := s.store.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "user-1")

	// no identity yet
	w := s.do(httptest.NewRequest(http.MethodGet, "/auth/session", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// sign in with a bearer token
	w = s.do(httptest.NewRequest(http.MethodPost, "/auth/session", nil), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	withCookies := func(req *http.Request) *http.Request {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req
	}

	w = s.do(withCookies(httptest.NewRequest(http.MethodGet, "/auth/session", nil)), "")
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "user-1", user["id"])

	// the cookie alone authorizes API calls
	w = s.do(withCookies(httptest.NewRequest(http.MethodGet, "/api/pdf", nil)), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/auth/signout", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	expired := w.Result().Cookies()
	require.NotEmpty(t, expired)
	assert.Less(t, expired[0].MaxAge, 0)
}

func TestCreateSession_RejectsInvalidToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodPost, "/auth/session", nil), "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}
