package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/aiportal/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	apiErr := &model.APIError{
		Code:     "TEST_ERROR",
		Message:  "テストエラーです。",
		Category: "validation",
		Action:   "正しい値を入力してください。",
	}

	WriteErrorResponse(w, http.StatusBadRequest, apiErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Code != "TEST_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "TEST_ERROR")
	}
	if body.Message != "テストエラーです。" {
		t.Errorf("message = %q, want %q", body.Message, "テストエラーです。")
	}
	if body.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Category, "validation")
	}
	if body.Action != "正しい値を入力してください。" {
		t.Errorf("action = %q, want %q", body.Action, "正しい値を入力してください。")
	}
}

// TestStatusForAPIError_MapsCodesToStatuses はエラーコードとHTTPステータスの対応を検証する。
func TestStatusForAPIError_MapsCodesToStatuses(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeWeakPassword, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeSelfModification, http.StatusForbidden},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeDuplicateEmail, http.StatusConflict},
		{model.ErrCodeProviderError, http.StatusBadGateway},
		{model.ErrCodeInternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := StatusForAPIError(&model.APIError{Code: tt.code})
			if got != tt.want {
				t.Errorf("StatusForAPIError(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

// TestWriteServiceError_APIError はAPIErrorが対応するステータスで書き込まれることを検証する。
func TestWriteServiceError_APIError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteServiceError(w, model.NewDuplicateEmailError())

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeDuplicateEmail)
	}
}

// TestWriteServiceError_WrappedAPIError はラップされたAPIErrorも変換されることを検証する。
func TestWriteServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()

	wrapped := errors.Join(errors.New("context"), model.NewUserNotFoundError())
	WriteServiceError(w, wrapped)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestWriteServiceError_UnexpectedError は非APIErrorが500に丸められることを検証する。
func TestWriteServiceError_UnexpectedError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteServiceError(w, errors.New("database connection lost"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	// 内部エラーの詳細はレスポンスに含めない
	if body.Code != model.ErrCodeInternalError {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternalError)
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "INTERNAL_ERROR")
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want %q", body.Category, "system")
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}

// TestErrorResponseBody_AllFieldsPresent は全フィールドがJSONレスポンスに含まれることを検証する。
func TestErrorResponseBody_AllFieldsPresent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "CODE",
		Message:  "MSG",
		Category: "CAT",
		Action:   "ACT",
	})

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	requiredFields := []string{"code", "message", "category", "action"}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
}
