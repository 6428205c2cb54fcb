package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/ephemera-backend/internal/signal"
	"github.com/welldanyogia/ephemera-backend/tests/fixtures"
)

type testEnv struct {
	cliEnv
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestEnv(stdin string) *testEnv {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		cliEnv: cliEnv{stdin: strings.NewReader(stdin), stdout: out, stderr: errOut},
		out:    out,
		err:    errOut,
	}
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	return run(context.Background(), &e.cliEnv, args)
}

func keygen(t *testing.T) (dir, author string) {
	t.Helper()
	dir = filepath.Join(t.TempDir(), "keys")
	env := newTestEnv("")
	require.NoError(t, env.run(t, "keygen", "--keys", dir))
	return dir, strings.TrimSpace(env.out.String())
}

func TestRun_Usage(t *testing.T) {
	env := newTestEnv("")

	require.NoError(t, env.run(t))

	for _, name := range commandOrder {
		assert.Contains(t, env.err.String(), name)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	env := newTestEnv("")

	err := env.run(t, "publish")

	assert.ErrorContains(t, err, `unknown command "publish"`)
}

func TestRun_CommandHelp(t *testing.T) {
	env := newTestEnv("")

	require.NoError(t, env.run(t, "post", "--help"))

	assert.Contains(t, env.err.String(), "--attach")
}

func TestKeygen_WhoamiRoundTrip(t *testing.T) {
	dir, author := keygen(t)

	env := newTestEnv("")
	require.NoError(t, env.run(t, "whoami", "--keys", dir))

	assert.Equal(t, author, strings.TrimSpace(env.out.String()))
	_, ok := signal.AuthorKey(author)
	assert.True(t, ok)
}

func TestKeygen_RefusesToOverwrite(t *testing.T) {
	dir, author := keygen(t)

	env := newTestEnv("")
	assert.ErrorContains(t, env.run(t, "keygen", "--keys", dir), "already exists")

	env = newTestEnv("")
	require.NoError(t, env.run(t, "keygen", "--keys", dir, "--force"))
	assert.NotEqual(t, author, strings.TrimSpace(env.out.String()))
}

func TestPost_DryRunSignsWithAttachments(t *testing.T) {
	dir, author := keygen(t)
	png := fixtures.WritePNG(t.TempDir(), 8, 8, 3)

	env := newTestEnv("")
	require.NoError(t, env.run(t, "post", "--keys", dir, "--host", "ephemera.test", "-t", "hi there", "-a", png, "--dry-run"))

	sig, err := signal.DecodeCreatePost(env.out.Bytes())
	require.NoError(t, err)
	assert.True(t, signal.Verify(sig))
	assert.Equal(t, author, sig.Payload.Header.Author)
	assert.Equal(t, "ephemera.test", sig.Payload.Header.Host)
	assert.Equal(t, "hi there", sig.Payload.Text())
	require.Len(t, sig.Payload.Footer, 1)
	assert.Equal(t, "image/png", sig.Payload.Footer[0].DeclaredMIME)
	assert.Equal(t, fixtures.MustFileDigest(png), sig.Payload.Footer[0].Hash)
}

func TestPost_Validation(t *testing.T) {
	dir, _ := keygen(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing host", []string{"post", "--keys", dir, "-t", "x"}, "--host is required"},
		{"too many attachments", []string{"post", "--keys", dir, "--host", "h.test", "-a", "1", "-a", "2", "-a", "3", "-a", "4", "-a", "5"}, "at most 4"},
		{"missing identity", []string{"post", "--keys", filepath.Join(t.TempDir(), "none"), "--host", "h.test", "-t", "x"}, "private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv("")
			assert.ErrorContains(t, env.run(t, tt.args...), tt.want)
		})
	}
}

func TestPost_SendsToServer(t *testing.T) {
	dir, author := keygen(t)
	png := fixtures.WritePNG(t.TempDir(), 4, 4, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		sig, err := signal.DecodeCreatePost([]byte(r.FormValue("post")))
		require.NoError(t, err)
		assert.Equal(t, author, sig.Payload.Header.Author)
		assert.Len(t, r.MultipartForm.File["attachments"], 1)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"data":{"id":"`+signal.DigestHex(sig.Payload)+`"}}`)
	}))
	defer srv.Close()

	env := newTestEnv("")
	require.NoError(t, env.run(t, "post", "--server", srv.URL, "--keys", dir, "--host", "ephemera.test", "-t", "with file", "-a", png))

	assert.Len(t, strings.TrimSpace(env.out.String()), 64)
}

func TestList_FollowsCursors(t *testing.T) {
	posts := fixtures.CreatePosts(fixtures.NewAuthor(1), 3)
	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Query().Get("cursor"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{"posts": posts[:2], "nextCursor": "1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"posts": posts[2:], "nextCursor": nil})
	}))
	defer srv.Close()

	env := newTestEnv("")
	require.NoError(t, env.run(t, "list", "--server", srv.URL, "--all", "-n", "2"))

	assert.Equal(t, []string{"", "1"}, calls)
	assert.Equal(t, 3, strings.Count(env.out.String(), "\n"))
}

func TestList_PrintsNextCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"posts":[],"nextCursor":"17"}`)
	}))
	defer srv.Close()

	env := newTestEnv("")
	require.NoError(t, env.run(t, "list", "--server", srv.URL))

	assert.Contains(t, env.err.String(), "next cursor: 17")
}

func TestList_NormalizesAuthor(t *testing.T) {
	author := fixtures.NewAuthor(2).ID
	var got string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("author")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"posts":[],"nextCursor":null}`)
	}))
	defer srv.Close()

	env := newTestEnv("")
	require.NoError(t, env.run(t, "list", "--server", srv.URL, "--author", strings.ToUpper(author)))
	assert.Equal(t, author, got)

	err := newTestEnv("").run(t, "list", "--server", srv.URL, "--author", "not base37!")
	assert.ErrorContains(t, err, "--author")
}

func TestDelete_ValidatesPostID(t *testing.T) {
	dir, _ := keygen(t)

	env := newTestEnv("")
	err := env.run(t, "delete", "--keys", dir, "--host", "h.test", "not-an-id")

	assert.ErrorContains(t, err, "not a post id")
}

func TestDelete_ReportsServerError(t *testing.T) {
	dir, _ := keygen(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"error":"Post not found","code":"NOT_FOUND"}`)
	}))
	defer srv.Close()

	env := newTestEnv("")
	err := env.run(t, "delete", "--server", srv.URL, "--keys", dir, "--host", "h.test", strings.Repeat("e", 64))

	assert.ErrorContains(t, err, "Post not found")
}

func TestVerify(t *testing.T) {
	alice := fixtures.NewAuthor(1)
	good := fixtures.NewCreatePostBuilder(alice).Build()
	goodJSON, err := json.Marshal(good)
	require.NoError(t, err)

	forged := good
	forged.Signature = fixtures.NewCreatePostBuilder(alice).WithText("other").Build().Signature
	forgedJSON, err := json.Marshal(forged)
	require.NoError(t, err)

	t.Run("valid from stdin", func(t *testing.T) {
		env := newTestEnv(string(goodJSON))
		require.NoError(t, env.run(t, "verify"))

		var out map[string]string
		require.NoError(t, json.Unmarshal(env.out.Bytes(), &out))
		assert.Equal(t, signal.DigestHex(good.Payload), out["id"])
		assert.Equal(t, alice.ID, out["author"])
		assert.Equal(t, string(signal.TypeCreatePost), out["type"])
	})

	t.Run("valid from file", func(t *testing.T) {
		path := fixtures.WriteFile(t.TempDir(), "sig.json", goodJSON)
		env := newTestEnv("")
		require.NoError(t, env.run(t, "verify", path))
	})

	t.Run("forged", func(t *testing.T) {
		env := newTestEnv(string(forgedJSON))
		assert.ErrorContains(t, env.run(t, "verify"), "does not verify")
	})

	t.Run("malformed", func(t *testing.T) {
		env := newTestEnv("{}")
		assert.Error(t, env.run(t, "verify"))
	})
}

func TestSweep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"data":{"reclaimed":2}}`)
	}))
	defer srv.Close()

	env := newTestEnv("")
	require.NoError(t, env.run(t, "sweep", "--server", srv.URL, "--api-key", "k"))

	assert.Equal(t, "reclaimed 2\n", env.out.String())
}
