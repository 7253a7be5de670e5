package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/and161185/face-keeper/internal/model"
	"github.com/and161185/face-keeper/internal/repository/jsonfile"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "face-keeper")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken(tokenFile{Username: "alice", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tf, err := loadToken()
	if err != nil || tf.AccessToken != "tok" || tf.Username != "alice" {
		t.Fatalf("loadToken: %+v err=%v", tf, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}

	if err := saveToken(tokenFile{AccessToken: "tok2", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

func Test_readAll_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "img")
	if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := readAll(p)
	if err != nil || string(b) != "data" {
		t.Fatalf("readAll: %q %v", b, err)
	}
}

type captured struct {
	path string
	auth string
	body map[string]any
}

func fakeAPI(t *testing.T, status int, resp any) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func Test_register_SendsBase64Images(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, map[string]any{"status": "success", "message": "ok"})
	a, b := writeImage(t, "a.png", "AAA"), writeImage(t, "b.png", "BBB")

	out, err := run(t, "--addr", srv.URL, "register", "-u", "alice", "-p", "pw", "-i", a, "-i", b)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got.path != "/api/v1/auth/register" {
		t.Fatalf("path=%s", got.path)
	}
	imgs, _ := got.body["images"].([]any)
	if len(imgs) != 2 || imgs[0] != base64.StdEncoding.EncodeToString([]byte("AAA")) {
		t.Fatalf("images not sent as base64: %v", got.body["images"])
	}
	if !strings.Contains(out, "success") {
		t.Fatalf("output: %s", out)
	}
}

func Test_register_RequiresImage(t *testing.T) {
	if _, err := run(t, "register", "-u", "alice", "-p", "pw"); err == nil {
		t.Fatalf("want error without images")
	}
}

func Test_login_SavesToken(t *testing.T) {
	_ = withTmpConfig(t)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	srv, got := fakeAPI(t, http.StatusOK, map[string]any{
		"status": "success", "message": "ok", "similarity": 0.8,
		"access_token": "jwt", "expires_at": exp,
	})

	if _, err := run(t, "--addr", srv.URL, "login", "-u", "alice", "-p", "pw", "-i", writeImage(t, "f.png", "F")); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.body["image_base64"] != base64.StdEncoding.EncodeToString([]byte("F")) {
		t.Fatalf("image not sent: %v", got.body)
	}
	tf, err := loadToken()
	if err != nil || tf.AccessToken != "jwt" || !tf.ExpiresAt.Equal(exp) {
		t.Fatalf("token not saved: %+v %v", tf, err)
	}
}

func Test_login_APIError(t *testing.T) {
	_ = withTmpConfig(t)
	srv, _ := fakeAPI(t, http.StatusUnauthorized, map[string]any{
		"status": "error", "code": "threshold_not_met", "message": "face verification failed", "similarity": 0.5,
	})

	_, err := run(t, "--addr", srv.URL, "login", "-u", "alice", "-p", "pw", "-i", writeImage(t, "f.png", "F"))
	var ae *apiError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || ae.Code != "threshold_not_met" {
		t.Fatalf("want apiError, got %v", err)
	}
	if ae.Similarity == nil || *ae.Similarity != 0.5 {
		t.Fatalf("similarity not reported: %+v", ae)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("no token may be saved on failure")
	}
}

func Test_whoami_UsesSavedToken(t *testing.T) {
	_ = withTmpConfig(t)
	srv, got := fakeAPI(t, http.StatusOK, map[string]any{"username": "alice"})

	if _, err := run(t, "--addr", srv.URL, "whoami"); err == nil {
		t.Fatalf("want error without a saved token")
	}
	if err := saveToken(tokenFile{AccessToken: "jwt", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--addr", srv.URL, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if got.auth != "Bearer jwt" || strings.TrimSpace(out) != "alice" {
		t.Fatalf("auth=%q out=%q", got.auth, out)
	}
}

func Test_users_ListsLocalDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "users.json")
	doc := jsonfile.New(p)
	users := []model.User{
		{Username: "carol", FaceVector: []float32{1}},
		{Username: "alice", FaceVector: []float32{1}},
	}
	if err := doc.Save(context.Background(), users); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "users", "--store-path", p)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if out != "alice\ncarol\n" {
		t.Fatalf("out=%q", out)
	}

	if _, err := run(t, "users", "--store-path", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("want error for a missing document")
	}
}
