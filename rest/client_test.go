package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"echo": body["name"]})
	}))
	defer srv.Close()

	c := New(Options{})
	res, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		JSON:   map[string]string{"name": "tenant1"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "tenant1"}, res)
}

func TestDoForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{})
	res, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Form:   url.Values{"username": {"admin"}},
	})
	require.NoError(t, err)
	assert.Nil(t, res, "204 yields no body")
}

func TestDoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(Options{})

	// Tolerated when asked for.
	res, err := c.Do(context.Background(), Request{
		Method: http.MethodGet, URL: srv.URL, Accept404: true})
	require.NoError(t, err)
	assert.Nil(t, res)

	// An error otherwise.
	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestDoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Options{}).Do(context.Background(), Request{
		Method: http.MethodGet, URL: srv.URL})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "boom")
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realm_template.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"realm":"{realm}","enabled":true,"displayName":"{realm} realm"}`), 0o600))

	decoded, err := LoadTemplate(path, map[string]string{"realm": "tenant1"})
	require.NoError(t, err)
	assert.Equal(t, "tenant1", decoded["realm"])
	assert.Equal(t, "tenant1 realm", decoded["displayName"])
	assert.Equal(t, true, decoded["enabled"])
}

func TestLoadTemplateMissingFile(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "absent.json"), nil)
	require.Error(t, err)
}
