package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/internal/analyzer"
	"repogent.app/orchestrator/internal/http/handler"
)

var _ = Describe("AnalysisHandler", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		h := handler.NewAnalysisHandler(analyzer.New(analyzer.DefaultConfig()))
		router.POST("/analysis/logs", h.AnalyzeLogs)
		router.POST("/paths/normalize", h.NormalizePath)
	})

	Describe("AnalyzeLogs", func() {
		It("classifies a test failure", func() {
			body, _ := json.Marshal(map[string]string{
				"logs": "yarn test\n--- FAIL: TestLogin\nexpected 200 got 500",
			})
			req := httptest.NewRequest(http.MethodPost, "/analysis/logs", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Report struct {
					FailureType string `json:"failure_type"`
					Evidence    string `json:"evidence"`
				} `json:"report"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Report.FailureType).To(Equal("test_failure"))
			Expect(resp.Report.Evidence).NotTo(BeEmpty())
		})

		It("rejects an empty body", func() {
			req := httptest.NewRequest(http.MethodPost, "/analysis/logs", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("NormalizePath", func() {
		It("returns the cleaned relative path", func() {
			body, _ := json.Marshal(map[string]string{"path": "scripts/./foo.py"})
			req := httptest.NewRequest(http.MethodPost, "/paths/normalize", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]string
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["path"]).To(Equal("scripts/foo.py"))
		})

		It("rejects a traversal path", func() {
			body, _ := json.Marshal(map[string]string{"path": "../../etc/passwd"})
			req := httptest.NewRequest(http.MethodPost, "/paths/normalize", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
