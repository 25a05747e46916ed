package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gmsas95/notakopi/internal/config"
	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/export"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/metrics"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testNota = `Toko ...Indah Abadi... Jl. Merdeka No. 5
08/11/2024
Kopi Arabica 2 Kg 50000
Susu UHT 1 liter 18.000
Total Rp 68.000
`

type fakeNotas struct {
	parser *nota.Parser
	inv    *inventory.Service
	err    error
}

func (f *fakeNotas) ProcessNota(ctx context.Context, filename string, data []byte) (*nota.ParsedReceipt, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	text := string(data)
	return f.parser.Parse(text), text, nil
}

func (f *fakeNotas) ParseText(text string) *nota.ParsedReceipt {
	return f.parser.Parse(text)
}

func (f *fakeNotas) SaveNota(ctx context.Context, receipt *nota.ParsedReceipt, source, rawText string) (*inventory.SaveResult, error) {
	return f.inv.SaveNota(ctx, receipt, source, rawText)
}

type testEnv struct {
	server *Server
	notas  *fakeNotas
	store  *inventory.Store
	cfg    *config.Config
}

func setupTestServer(t *testing.T, adminPassword string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: ":memory:"}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	st, err := inventory.NewStore(db)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Address: "127.0.0.1", Port: 8080, ReadTimeout: 5, WriteTimeout: 5, Production: true},
		Security: config.SecurityConfig{
			JWTSecret:     "test-secret",
			AdminPassword: adminPassword,
			AllowOrigins:  []string{"*"},
			TokenTTL:      time.Hour,
		},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
		Inbox:  config.InboxConfig{LowStockThreshold: 5},
	}

	notas := &fakeNotas{parser: nota.NewParser(nil), inv: inventory.NewService(st, nil)}
	server := New(Deps{
		Config:    cfg,
		Notas:     notas,
		Inventory: st,
		Metrics:   metrics.New(),
		Upload: ocr.UploadPolicy{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		},
		OCRProvider: config.ProviderMock,
		Version:     "test",
	})
	return &testEnv{server: server, notas: notas, store: st, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp, out
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/inventori/process-nota", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, config.ProviderMock, body["ocr"])
	assert.Equal(t, false, body["auth"])
}

func TestMetricsEndpoints(t *testing.T) {
	env := setupTestServer(t, "")

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, body["requests_total"], float64(1))

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(text), "notakopi_http_requests_total")
}

func TestParseText(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori/parse-text", map[string]string{"text": testNota}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Indah Abadi", data["supplier"])
	assert.Equal(t, "Rp 68.000", data["total"])
	assert.Len(t, data["items"], 2)
}

func TestParseText_Empty(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori/parse-text", map[string]string{"text": "  "}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "text is required", body["error"])
}

func TestProcessNota(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, uploadRequest(t, "nota.png", "image/png", []byte(testNota)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, testNota, body["rawText"])

	data := body["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Kopi Arabica", items[0].(map[string]interface{})["name"])
}

func TestProcessNota_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		ctype    string
		data     []byte
		ocrErr   error
		status   int
		code     string
	}{
		{"unsupported type", "nota.txt", "text/plain", []byte(testNota), nil, http.StatusBadRequest, apperrors.ErrUnsupportedFile.Code},
		{"too large", "nota.png", "image/png", bytes.Repeat([]byte("x"), 1<<20+1), nil, http.StatusRequestEntityTooLarge, apperrors.ErrFileTooLarge.Code},
		{"ocr no text", "nota.png", "image/png", []byte("img"), apperrors.ErrOCRNoText, http.StatusUnprocessableEntity, apperrors.ErrOCRNoText.Code},
		{"ocr down", "nota.png", "image/png", []byte("img"), apperrors.ErrOCRUnavailable, http.StatusBadGateway, apperrors.ErrOCRUnavailable.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, "")
			env.notas.err = tt.ocrErr

			resp, body := env.do(t, uploadRequest(t, tt.filename, tt.ctype, tt.data))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestProcessNota_NoFile(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori/process-nota", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file provided", body["error"])
}

func TestSaveNota(t *testing.T) {
	env := setupTestServer(t, "")
	receipt := nota.Parse(testNota)

	payload := map[string]interface{}{
		"items":    receipt.Items,
		"supplier": receipt.Supplier,
		"total":    receipt.Total,
		"source":   "upload",
		"rawText":  testNota,
	}
	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori/save-nota", payload))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.Len(t, data["created"], 2)
	assert.Len(t, data["merged"], 0)

	// Same nota again merges into the existing items.
	resp, body = env.do(t, jsonRequest(http.MethodPost, "/api/inventori/save-nota", payload))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Len(t, data["created"], 0)
	assert.Len(t, data["merged"], 2)

	items, err := env.store.List(inventory.ListFilter{Search: "arabica"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4.0, items[0].Quantity)

	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/notas", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notas := body["data"].([]interface{})
	require.Len(t, notas, 2)

	id := notas[0].(map[string]interface{})["id"].(string)
	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/notas/"+id, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["receipt"].(map[string]interface{})["items"], 2)
}

func TestSaveNota_Empty(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori/save-nota", map[string]interface{}{"items": []interface{}{}}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.ErrEmptyNota.Code, body["code"])
}

func TestInventoryCRUD(t *testing.T) {
	env := setupTestServer(t, "")

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/inventori", map[string]interface{}{
		"nama_barang": "Gula Aren",
		"jumlah":      3,
		"kategori":    nota.CategoryPemanis,
		"catatan":     "kg - Toko Manis",
	}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["data"].(map[string]interface{})
	assert.Equal(t, "BRG0001", created["kode_barang"])
	id := created["id"].(string)

	resp, body = env.do(t, jsonRequest(http.MethodPost, "/api/inventori", map[string]interface{}{"nama_barang": "Gula"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Nama barang dan jumlah harus diisi", body["error"])

	resp, body = env.do(t, jsonRequest(http.MethodPut, "/api/inventori", map[string]interface{}{
		"id":          id,
		"nama_barang": "Gula Aren Cair",
		"jumlah":      10,
		"kategori":    nota.CategoryPemanis,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["data"].(map[string]interface{})
	assert.Equal(t, "BRG0001", updated["kode_barang"])
	assert.Equal(t, 10.0, updated["jumlah"])

	resp, body = env.do(t, jsonRequest(http.MethodPut, "/api/inventori", map[string]interface{}{"id": id}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Field yang diperlukan tidak lengkap", body["error"])

	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/inventori?search=aren", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, body = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/inventori", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ID diperlukan", body["error"])

	resp, body = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/inventori?id="+id, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/inventori?id="+id, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.ErrItemNotFound.Code, body["code"])
}

func TestLowStock(t *testing.T) {
	env := setupTestServer(t, "")
	require.NoError(t, env.store.Create(&inventory.Item{Name: "Susu UHT", Quantity: 2}))
	require.NoError(t, env.store.Create(&inventory.Item{Name: "Kopi Robusta", Quantity: 20}))

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/inventori/low-stock", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, 5.0, body["threshold"])

	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/inventori/low-stock?threshold=50", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 2)
}

func TestExport(t *testing.T) {
	env := setupTestServer(t, "")
	require.NoError(t, env.store.Create(&inventory.Item{Name: "Susu UHT", Quantity: 2, Category: nota.CategorySusu}))

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/inventori/export", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetItems)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Susu UHT", rows[1][1])
}

func TestAuth(t *testing.T) {
	env := setupTestServer(t, "rahasia")

	resp, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/inventori", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"password": "salah"}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"password": "rahasia"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := body["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/api/inventori", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/inventori", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, _ = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays public.
	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
