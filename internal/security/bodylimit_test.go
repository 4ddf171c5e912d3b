package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func limited(max int64, seen *string) http.Handler {
	return BodyLimit{Max: max}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if seen != nil {
			*seen = string(data)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestBodyLimitPassesSmallBodies(t *testing.T) {
	var seen string
	rr := httptest.NewRecorder()
	limited(32, &seen).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/coupon", strings.NewReader(`{"code":"SAVE20"}`)))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, `{"code":"SAVE20"}`, seen)
}

func TestBodyLimitRejectsStreamedOversize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/coupon", strings.NewReader(`{"code":"SAVE20"}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	limited(8, nil).ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
}

func TestBodyLimitRejectsDeclaredOversize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/coupon", strings.NewReader("tiny"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	limited(8, nil).ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitDisabled(t *testing.T) {
	rr := httptest.NewRecorder()
	limited(0, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/coupon", strings.NewReader(strings.Repeat("x", 64))))
	require.Equal(t, http.StatusNoContent, rr.Code)
}
