package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/google/go-github/v75/github"
)

func setupRepo(t *testing.T, mux *http.ServeMux) *GithubSourceRepository {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = baseURL

	return NewGithubSourceRepository(client, "owner", "blog")
}

func TestGetFileContents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/blog/contents/posts/001-hello.md", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ref"); got != "abc123" {
			t.Errorf("ref = %q, want abc123", got)
		}
		encoded := base64.StdEncoding.EncodeToString([]byte("# Hello\n"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","path":"posts/001-hello.md","content":%q}`, encoded)
	})

	repo := setupRepo(t, mux)
	content, err := repo.GetFileContents(context.Background(), "posts/001-hello.md", "abc123")
	if err != nil {
		t.Fatalf("GetFileContents() error = %v", err)
	}
	if string(content) != "# Hello\n" {
		t.Errorf("GetFileContents() = %q", content)
	}
}

func TestGetFileContents_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/blog/contents/posts/missing.md", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	repo := setupRepo(t, mux)
	_, err := repo.GetFileContents(context.Background(), "posts/missing.md", "main")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetFileContents() error = %v, want ErrNotFound", err)
	}
}

func TestListFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/blog/contents/posts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"type":"file","path":"posts/001-hello.md"},
			{"type":"dir","path":"posts/images"},
			{"type":"file","path":"posts/002-world.md"}
		]`)
	})

	repo := setupRepo(t, mux)
	paths, err := repo.ListFiles(context.Background(), "posts", "main")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	want := []string{"posts/001-hello.md", "posts/002-world.md"}
	if len(paths) != len(want) {
		t.Fatalf("ListFiles() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestGetDefaultBranchName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/blog", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"owner/blog","default_branch":"trunk"}`)
	})

	repo := setupRepo(t, mux)
	branch, err := repo.GetDefaultBranchName(context.Background())
	if err != nil {
		t.Fatalf("GetDefaultBranchName() error = %v", err)
	}
	if branch != "trunk" {
		t.Errorf("GetDefaultBranchName() = %q, want trunk", branch)
	}
	if repo.GetRepoFullName() != "owner/blog" {
		t.Errorf("GetRepoFullName() = %q", repo.GetRepoFullName())
	}
}

func TestHandleGithubError(t *testing.T) {
	if handleGithubError("op", nil) != nil {
		t.Error("nil error should stay nil")
	}

	err := handleGithubError("op", errors.New("boom"))
	if !domain.IsRetryable(err) {
		t.Errorf("network failure should be retryable: %v", err)
	}
	if err.Error() != "content store: github: op failed: boom" {
		t.Errorf("handleGithubError() = %q", err.Error())
	}
}

func TestGithubStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		retryable bool
	}{
		{name: "missing", status: http.StatusNotFound, notFound: true},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/owner/blog", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			})

			repo := setupRepo(t, mux)
			_, err := repo.GetDefaultBranchName(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, domain.ErrNotFound); got != tt.notFound {
				t.Errorf("not found = %v, want %v (%v)", got, tt.notFound, err)
			}
			if got := domain.IsRetryable(err); got != tt.retryable {
				t.Errorf("retryable = %v, want %v (%v)", got, tt.retryable, err)
			}
		})
	}
}
