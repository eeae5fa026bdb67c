package antifraud

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRespondBlockedIgnoresOtherErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if RespondBlocked(c, errors.New("db down")) {
		t.Fatal("plain errors must not render a deny")
	}
	if RespondBlocked(c, nil) {
		t.Fatal("nil error must not render a deny")
	}
}

func TestRespondBlockedRendersLimitDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	be := &BlockError{Scope: "customer_daily", Count: 6, Limit: 5}
	if !RespondBlocked(c, be) {
		t.Fatal("expected a deny response for a block error")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
		Scope string `json:"scope"`
		Count int    `json:"count"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !strings.Contains(resp.Error, "customer_daily=6/5") {
		t.Fatalf("message %q does not carry the scope=count/limit detail", resp.Error)
	}
	if resp.Scope != "customer_daily" || resp.Count != 6 || resp.Limit != 5 {
		t.Fatalf("body fields = %s/%d/%d, want customer_daily/6/5", resp.Scope, resp.Count, resp.Limit)
	}
}
