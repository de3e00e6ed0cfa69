package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const helloValue = `{"content":"<p>hello</p>","delta":{"ops":[{"insert":"hello\n"}]}}`

func TestDocumentRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{Title: "Doc", Value: ""}
	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "Other"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() second call error = %v", err)
	}

	updated := Content{Title: "Doc", Value: helloValue}
	commit, err := svc.CommitContent("doc-1", updated, "Avery", "Write greeting")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("doc-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Added != 1 || history[0].Removed != 0 {
		t.Fatalf("unexpected line stats: %+v", history[0])
	}

	changed, err := svc.GetContentByHash("doc-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if changed.Value != helloValue {
		t.Fatalf("value not preserved verbatim: %q", changed.Value)
	}

	head, info, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if head != updated || info.Hash != commit.Hash {
		t.Fatalf("unexpected head %+v %+v", head, info)
	}
}

func TestCreateTagResolvesByName(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "Doc"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}
	commit, err := svc.CommitContent("doc-1", Content{Title: "Doc", Value: helloValue}, "Avery", "v1")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if err := svc.CreateTag("doc-1", commit.Hash, "release-1"); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if err := svc.CreateTag("doc-1", commit.Hash, "release-1"); err != nil {
		t.Fatalf("CreateTag() repeat error = %v", err)
	}

	tagged, err := svc.GetCommitByHash("doc-1", "release-1")
	if err != nil {
		t.Fatalf("GetCommitByHash() error = %v", err)
	}
	if tagged.Hash != commit.Hash {
		t.Fatalf("tag resolved to %s, want %s", tagged.Hash, commit.Hash)
	}
}

func TestRemoveDocumentRepo(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "Doc"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}
	if err := svc.RemoveDocumentRepo("doc-1"); err != nil {
		t.Fatalf("RemoveDocumentRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc-1")); !os.IsNotExist(err) {
		t.Fatalf("expected repo removed, stat err = %v", err)
	}
	if err := svc.RemoveDocumentRepo("doc-1"); err != nil {
		t.Fatalf("RemoveDocumentRepo() on missing repo error = %v", err)
	}
}

func TestDiffFields(t *testing.T) {
	from := Content{Title: "Doc", Value: helloValue}
	to := Content{Title: "Doc 2", Value: `{"content":"<p>bye</p>","delta":{"ops":[{"insert":"bye\n"}]}}`}

	diff := DiffFields(from, to)
	if len(diff) != 2 {
		t.Fatalf("expected 2 changed fields, got %v", diff)
	}
	if diff[1]["field"] != "value" || diff[1]["before"] != "hello" || diff[1]["after"] != "bye" {
		t.Fatalf("unexpected value diff: %v", diff[1])
	}
}

func TestHasValueChangesIgnoresFormatting(t *testing.T) {
	spaced := `{ "content": "<p>hello</p>", "delta": { "ops": [ { "insert": "hello\n" } ] } }`
	if HasValueChanges(helloValue, spaced) {
		t.Fatal("whitespace-only difference reported as change")
	}
	if !HasValueChanges(helloValue, "") {
		t.Fatal("clearing the document should be a change")
	}
	if HasValueChanges("", "   ") {
		t.Fatal("blank values should be equal")
	}
	if !HasValueChanges("{broken", "{other") {
		t.Fatal("malformed values fall back to string comparison")
	}
}

func TestLineStats(t *testing.T) {
	added, removed := lineStats("a\nb\nc", "a\nc\nd\ne")
	if added != 2 || removed != 1 {
		t.Fatalf("lineStats() = %d, %d", added, removed)
	}
}

func TestConcurrentCommitContent(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "Doc"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := Content{Title: fmt.Sprintf("title-%02d", idx), Value: helloValue}
			if _, err := svc.CommitContent("doc-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitContent() concurrent error = %v", err)
		}
	}

	history, err := svc.History("doc-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits in history, got %d", writers+1, len(history))
	}

	head, _, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if !strings.HasPrefix(head.Title, "title-") {
		t.Fatalf("unexpected head content after concurrent commits: %+v", head)
	}
}
