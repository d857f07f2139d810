package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/core/reconcile"
	"github.com/SscSPs/accounts_reconciliation/internal/core/services"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
	"github.com/SscSPs/accounts_reconciliation/internal/handlers"
	"github.com/SscSPs/accounts_reconciliation/internal/platform/config"
	"github.com/SscSPs/accounts_reconciliation/internal/repositories/memory"
	"github.com/SscSPs/accounts_reconciliation/internal/utils"
)

const (
	testOperator = "alice"
	testPassword = "correct horse"
)

type errorBody struct {
	Error string              `json:"error"`
	Kind  apperrors.ErrorKind `json:"kind"`
	IDs   []string            `json:"ids"`
}

type ReconciliationHandlerTestSuite struct {
	suite.Suite
	cfg    *config.Config
	router *gin.Engine
	token  string
}

func testConfig(hash string) *config.Config {
	return &config.Config{
		IsProduction:           true,
		JWTSecret:              "test-secret",
		JWTExpiryDuration:      time.Hour,
		JWTIssuer:              "accounts-reconciliation",
		Operators:              map[string]string{testOperator: hash},
		RateLimit:              "1000-M",
		LoginRateLimit:         "1000-M",
		MatchDateToleranceDays: 0,
		MatchAmountTolerance:   decimal.Zero,
		MatchWindowDays:        3,
		MaxUploadBytes:         1 << 20,
	}
}

func newRouter(cfg *config.Config) (*gin.Engine, error) {
	container := services.NewServiceContainer(cfg, memory.NewRepositoryProvider(), nil)
	r := gin.New()
	if err := handlers.RegisterRoutes(r, cfg, container); err != nil {
		return nil, err
	}
	return r, nil
}

func (suite *ReconciliationHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	binding.EnableDecoderUseNumber = true
}

func (suite *ReconciliationHandlerTestSuite) SetupTest() {
	hash, err := utils.HashPassword(testPassword)
	suite.Require().NoError(err)
	suite.cfg = testConfig(hash)
	suite.router, err = newRouter(suite.cfg)
	suite.Require().NoError(err)

	w := suite.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Username: testOperator, Password: testPassword}, false)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login dto.LoginResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &login))
	suite.token = login.Token
}

func TestReconciliationHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationHandlerTestSuite))
}

func (suite *ReconciliationHandlerTestSuite) do(method, path string, body any, auth bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+suite.token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ReconciliationHandlerTestSuite) decodeSession(w *httptest.ResponseRecorder) dto.SessionResponse {
	var resp dto.SessionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (suite *ReconciliationHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func createRequest() map[string]any {
	return map[string]any{
		"accountID":               "acct-1",
		"periodStart":             "2026-01-01",
		"periodEnd":               "2026-01-31",
		"openingBalance":          "1000.00",
		"closingBalanceStatement": "1043.00",
		"closingBalanceBook":      "1045.00",
		"amountTolerance":         "5",
		"bankRows": []map[string]any{
			{"id": "B1", "date": "2026-01-05", "description": "Customer receipt", "amount": 100.00, "ref": "INV-1"},
			{"id": "B2", "date": "2026-01-10", "description": "Supplier payment", "amount": "-50.00"},
			{"id": "B3", "date": "2026-01-15", "description": "Bank fee", "amount": "-7.00"},
		},
		"bookRows": []map[string]any{
			{"id": "K1", "date": "2026-01-05", "description": "Invoice 1", "amount": "100.00", "reference": "inv-1"},
			{"id": "K2", "date": "2026-01-11", "description": "Supplier", "amount": "-48.00"},
			{"id": "K3", "description": "No date", "amount": "1.00"},
			{"id": "K4", "date": "2026-01-25", "description": "Fees booked late", "amount": "-7.00"},
		},
	}
}

func (suite *ReconciliationHandlerTestSuite) TestHealthIsPublic() {
	w := suite.do(http.MethodGet, "/health", nil, false)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *ReconciliationHandlerTestSuite) TestRequiresToken() {
	w := suite.do(http.MethodGet, "/api/v1/reconciliations?accountID=acct-1", nil, false)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/whoami", nil, true)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), testOperator)
}

func (suite *ReconciliationHandlerTestSuite) TestLoginRejectsWrongPassword() {
	w := suite.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Username: testOperator, Password: "nope"}, false)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": testOperator}, false)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *ReconciliationHandlerTestSuite) TestFullLifecycle() {
	w := suite.do(http.MethodPost, "/api/v1/reconciliations", createRequest(), true)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := suite.decodeSession(w)
	suite.Equal(domain.SessionOpen, created.Status)
	suite.Equal(testOperator, created.CreatedBy)
	suite.Require().Len(created.Pairs, 2)
	suite.Require().Len(created.ImportErrors, 1)
	suite.Equal("date", created.ImportErrors[0].Field)
	base := "/api/v1/reconciliations/" + created.SessionID
	discrepancyID := reconcile.PairID("B2", "K2")

	w = suite.do(http.MethodPost, base+"/confirm", nil, true)
	suite.Require().Equal(http.StatusConflict, w.Code)
	blocked := suite.decodeError(w)
	suite.Equal(apperrors.KindUnresolvedItems, blocked.Kind)
	suite.ElementsMatch([]string{"B3", "K4", discrepancyID}, blocked.IDs)

	w = suite.do(http.MethodPost, base+"/pairs", dto.ManualPairRequest{BankRecordID: "B3", BookRecordID: "K2"}, true)
	suite.Require().Equal(http.StatusConflict, w.Code)
	paired := suite.decodeError(w)
	suite.Equal(apperrors.KindAlreadyPaired, paired.Kind)
	suite.Contains(paired.IDs, "K2")

	w = suite.do(http.MethodPost, base+"/pairs", dto.ManualPairRequest{BankRecordID: "B3", BookRecordID: "K4"}, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, base+"/pairs/"+reconcile.PairID("B1", "K1")+"/accept", nil, true)
	suite.Require().Equal(http.StatusConflict, w.Code)
	suite.Equal(apperrors.KindNotDiscrepancy, suite.decodeError(w).Kind)

	w = suite.do(http.MethodPost, base+"/pairs/"+discrepancyID+"/escalate", map[string]string{"note": ""}, true)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, base+"/pairs/"+discrepancyID+"/adjust", dto.AdjustPairRequest{CorrectedAmount: "-48.00", Side: "BANK"}, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	adjusted := suite.decodeSession(w)
	suite.Equal(0, adjusted.Stats.OutstandingItems)

	w = suite.do(http.MethodGet, base+"/stats", nil, true)
	suite.Require().Equal(http.StatusOK, w.Code)
	var stats domain.ReconciliationStats
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	suite.Equal(6, stats.TotalRecords)
	suite.Equal(1, stats.AdjustedPairs)

	w = suite.do(http.MethodPost, base+"/confirm", nil, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	confirmed := suite.decodeSession(w)
	suite.Equal(domain.SessionConfirmed, confirmed.Status)
	suite.Equal(testOperator, confirmed.ConfirmedBy)

	w = suite.do(http.MethodDelete, base+"/pairs/"+discrepancyID, nil, true)
	suite.Require().Equal(http.StatusConflict, w.Code)
	closed := suite.decodeError(w)
	suite.Equal(apperrors.KindSessionClosed, closed.Kind)
	suite.Equal([]string{created.SessionID}, closed.IDs)

	w = suite.do(http.MethodGet, "/api/v1/reconciliations?accountID=acct-1", nil, true)
	suite.Require().Equal(http.StatusOK, w.Code)
	var list dto.ListSessionsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	suite.Require().Len(list.Sessions, 1)
	suite.Equal(domain.SessionConfirmed, list.Sessions[0].Status)
}

func (suite *ReconciliationHandlerTestSuite) TestUnpairAndAutoMatch() {
	w := suite.do(http.MethodPost, "/api/v1/reconciliations", createRequest(), true)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	base := "/api/v1/reconciliations/" + suite.decodeSession(w).SessionID

	w = suite.do(http.MethodDelete, base+"/pairs/"+reconcile.PairID("B2", "K2"), nil, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Len(suite.decodeSession(w).Pairs, 1)

	// Without a body the server default tolerance of zero applies and nothing new pairs up.
	w = suite.do(http.MethodPost, base+"/auto-match", nil, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Len(suite.decodeSession(w).Pairs, 1)

	window := 10
	w = suite.do(http.MethodPost, base+"/auto-match", dto.AutoMatchRequest{MatcherOverrides: dto.MatcherOverrides{AmountTolerance: "5", ToleranceWindowDays: &window}}, true)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Len(suite.decodeSession(w).Pairs, 3)

	w = suite.do(http.MethodDelete, base+"/pairs/does-not-exist", nil, true)
	suite.Require().Equal(http.StatusNotFound, w.Code)
	suite.Equal(apperrors.KindPairNotFound, suite.decodeError(w).Kind)
}

func (suite *ReconciliationHandlerTestSuite) TestValidationErrors() {
	req := createRequest()
	req["periodStart"] = "01/01/2026"
	w := suite.do(http.MethodPost, "/api/v1/reconciliations", req, true)
	suite.Equal(http.StatusBadRequest, w.Code)

	req = createRequest()
	req["periodStart"], req["periodEnd"] = "2026-02-01", "2026-01-01"
	w = suite.do(http.MethodPost, "/api/v1/reconciliations", req, true)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/reconciliations", nil, true)
	suite.Equal(http.StatusBadRequest, w.Code, "accountID is required")

	w = suite.do(http.MethodGet, "/api/v1/reconciliations?accountID=acct-1&nextToken=%21%21", nil, true)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/reconciliations/unknown", nil, true)
	suite.Equal(http.StatusNotFound, w.Code)
}

func multipartImport(fields map[string]string, files map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			return nil, "", err
		}
	}
	return &buf, mw.FormDataContentType(), mw.Close()
}

func importFields() map[string]string {
	return map[string]string{
		"accountID":               "acct-2",
		"periodStart":             "2026-01-01",
		"periodEnd":               "2026-01-31",
		"closingBalanceStatement": "100",
		"closingBalanceBook":      "100",
	}
}

func (suite *ReconciliationHandlerTestSuite) TestImportCSV() {
	body, contentType, err := multipartImport(importFields(), map[string]string{
		"bank_file": "Transaction ID,Value Date,Narration,Amount\nB1,2026-01-05,Receipt,100.00\n",
		"book_file": "id,date,memo,debit,credit\nK1,05-Jan-2026,Invoice,,100.00\n",
	})
	suite.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+suite.token)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	resp := suite.decodeSession(w)
	suite.Equal("acct-2", resp.AccountID)
	suite.Require().Len(resp.Pairs, 1)
	suite.Equal(domain.RuleAmountDate, resp.Pairs[0].Rule)
}

func (suite *ReconciliationHandlerTestSuite) TestImportCSVRequiresBothFiles() {
	body, contentType, err := multipartImport(importFields(), map[string]string{
		"bank_file": "id,date,amount\nB1,2026-01-05,1\n",
	})
	suite.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+suite.token)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "book_file")
}

func (suite *ReconciliationHandlerTestSuite) TestCreateSessionBodyTooLarge() {
	suite.cfg.MaxUploadBytes = 256
	router, err := newRouter(suite.cfg)
	suite.Require().NoError(err)
	suite.router = router

	w := suite.do(http.MethodPost, "/api/v1/reconciliations", createRequest(), true)
	suite.Equal(http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func (suite *ReconciliationHandlerTestSuite) TestCreateSessionRejectsUnstorableAmounts() {
	req := createRequest()
	req["bankRows"] = []map[string]any{
		{"id": "B1", "date": "2026-01-05", "amount": "1e-20000000"},
		{"id": "B2", "date": "2026-01-05", "amount": "100.00001"},
		{"id": "B3", "date": "2026-01-05", "amount": "100.0001"},
	}

	w := suite.do(http.MethodPost, "/api/v1/reconciliations", req, true)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	resp := suite.decodeSession(w)
	suite.Require().Len(resp.BankRecords, 1)
	suite.Equal("B3", resp.BankRecords[0].ID)

	rejected := 0
	for _, e := range resp.ImportErrors {
		if e.Source == "BANK" {
			suite.Equal("amount", e.Field)
			rejected++
		}
	}
	suite.Equal(2, rejected)
}

func TestLoginRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig("")
	cfg.LoginRateLimit = "2-M"
	r, err := newRouter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"username":"x","password":"y"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRegisterRoutesRejectsBadRate(t *testing.T) {
	cfg := testConfig("")
	cfg.RateLimit = "lots"
	_, err := newRouter(cfg)
	if err == nil {
		t.Fatal("expected invalid RATE_LIMIT to fail route registration")
	}
}
