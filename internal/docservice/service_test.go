package docservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/storage"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/testutil"
)

const plan = `@@Plan
@work
# Goals
- [ ] ship the parser @due(2026-03-01)
- [x] write tests
## Later
Ideas:
- [ ] caching
`

func testService(t *testing.T) (*Service, storage.Provider) {
	t.Helper()
	_, store := testutil.TestVault(t)
	testutil.WriteFiles(t, store, map[string]string{"plan.zortex": plan})
	db := testutil.TestDB(t)
	if err := index.Sync(db, store, testutil.Quiet); err != nil {
		t.Fatal(err)
	}
	reg := testutil.TestRegistry(t, store)
	return NewService(store, db, reg, testutil.Quiet), store
}

func TestOutline(t *testing.T) {
	svc, _ := testService(t)
	view, err := svc.Outline(context.Background(), "plan.zortex")
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	if view.Title != "Plan" || view.Version != 1 {
		t.Errorf("title = %q version = %d", view.Title, view.Version)
	}
	if view.Stats.Tasks != 3 || view.Stats.Completed != 1 {
		t.Errorf("stats = %+v", view.Stats)
	}
	if len(view.Root.Children) != 1 || view.Root.Children[0].ID != "goals" {
		t.Fatalf("root children = %+v", view.Root.Children)
	}
}

func TestOutline_Missing(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.Outline(context.Background(), "ghost.zortex"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSectionQueries(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	sec, err := svc.SectionAtLine(ctx, "plan.zortex", 8)
	if err != nil {
		t.Fatalf("SectionAtLine: %v", err)
	}
	if sec.ID != "goals/later/ideas" || sec.Type != "label" {
		t.Errorf("section = %+v", sec)
	}

	if _, err := svc.SectionAtLine(ctx, "plan.zortex", 99); !errors.Is(err, apperr.ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}

	later, err := svc.SectionByID(ctx, "plan.zortex", "goals/later")
	if err != nil {
		t.Fatalf("SectionByID: %v", err)
	}
	if len(later.Children) != 1 || later.StartLine != 6 || later.EndLine != 8 {
		t.Errorf("later = %+v", later)
	}
	if _, err := svc.SectionByID(ctx, "plan.zortex", "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTasks(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	tasks, err := svc.Tasks(ctx, "plan.zortex")
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Section != "goals" || tasks[2].Section != "goals/later/ideas" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if _, ok := tasks[0].Attributes["due"]; !ok {
		t.Errorf("due attribute missing: %v", tasks[0].Attributes)
	}

	one, err := svc.Task(ctx, "plan.zortex", tasks[1].ID)
	if err != nil || !one.Completed {
		t.Errorf("Task = %+v, %v", one, err)
	}

	open := false
	rows, err := svc.VaultTasks(ctx, index.TaskFilter{Completed: &open})
	if err != nil || len(rows) != 2 {
		t.Errorf("vault tasks = %+v, %v", rows, err)
	}
}

func TestBufferLifecycle(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	buf, err := svc.OpenBuffer(ctx, "plan.zortex", nil)
	if err != nil {
		t.Fatalf("OpenBuffer: %v", err)
	}
	if buf.Lines != 8 || buf.Pending {
		t.Errorf("opened buffer = %+v", buf)
	}

	buf, err = svc.ApplyEdits(ctx, buf.ID, []document.Edit{
		{Op: document.OpInsert, Start: 9, Lines: []string{"- [ ] profiling"}},
	})
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if !buf.Pending || len(buf.Dirty) != 1 {
		t.Errorf("after edit = %+v", buf)
	}

	stale, _ := svc.BufferOutline(ctx, buf.ID, false)
	if stale.Stats.Tasks != 3 {
		t.Errorf("stale outline saw %d tasks", stale.Stats.Tasks)
	}

	// Queries by path see the open buffer, parsed on demand.
	tasks, err := svc.Tasks(ctx, "plan.zortex")
	if err != nil || len(tasks) != 4 {
		t.Fatalf("tasks through buffer = %d, %v", len(tasks), err)
	}

	res, err := svc.SaveBuffer(ctx, buf.ID, false)
	if err != nil {
		t.Fatalf("SaveBuffer: %v", err)
	}
	if res.Buffer.Pending || res.Checksum == "" {
		t.Errorf("save result = %+v", res)
	}

	data, _ := store.Read("plan.zortex")
	if !strings.HasSuffix(string(data), "- [ ] caching\n- [ ] profiling\n") {
		t.Errorf("saved content = %q", data)
	}
	hits, _ := svc.Search(ctx, "profiling", 10)
	if len(hits) != 1 || hits[0].Line != 9 {
		t.Errorf("search after save = %+v", hits)
	}

	if err := svc.CloseBuffer(ctx, buf.ID); err != nil {
		t.Fatalf("CloseBuffer: %v", err)
	}
	if len(svc.Buffers(ctx)) != 0 {
		t.Error("buffer still listed after close")
	}
}

func TestApplyEdits_PartialFailure(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	buf, _ := svc.OpenBuffer(ctx, "scratch.zortex", []string{"# Scratch"})

	view, err := svc.ApplyEdits(ctx, buf.ID, []document.Edit{
		{Op: document.OpUpdate, Start: 40, Lines: []string{"x"}},
		{Op: document.OpInsert, Start: 2, Lines: []string{"- [ ] kept"}},
	})
	if !errors.Is(err, apperr.ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	if view.Lines != 2 {
		t.Errorf("good edit not applied: %+v", view)
	}

	if _, err := svc.ApplyEdits(ctx, "missing", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFileChangedInvalidates(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, err := svc.Outline(ctx, "plan.zortex"); err != nil {
		t.Fatal(err)
	}
	_ = store.Write("plan.zortex", []byte("@@Plan\n# Replaced\n"))
	svc.FileChanged(index.ChangeUpdated, "plan.zortex")

	view, err := svc.Outline(ctx, "plan.zortex")
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Root.Children) != 1 || view.Root.Children[0].ID != "replaced" {
		t.Errorf("stale outline after change: %+v", view.Root.Children)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if err := svc.DeleteDocument(ctx, "plan.zortex"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	docs, total, _ := svc.ListDocuments(ctx, 10, 0, "")
	if total != 0 || len(docs) != 0 {
		t.Errorf("documents after delete = %+v", docs)
	}
	if err := svc.DeleteDocument(ctx, "plan.zortex"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveBuffer_Conflict(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	buf, err := svc.OpenBuffer(ctx, "plan.zortex", nil)
	if err != nil {
		t.Fatalf("OpenBuffer: %v", err)
	}
	if _, err := svc.ApplyEdits(ctx, buf.ID, []document.Edit{{Op: document.OpUpdate, Start: 8, Lines: []string{"- [x] caching"}}}); err != nil {
		t.Fatal(err)
	}

	// Someone else rewrites the file.
	if err := store.Write("plan.zortex", []byte("@@Plan\n# Other\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveBuffer(ctx, buf.ID, false); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if _, err := svc.SaveBuffer(ctx, buf.ID, true); err != nil {
		t.Fatalf("forced save: %v", err)
	}
	// The forced save is the new base; saving again is clean.
	if _, err := svc.SaveBuffer(ctx, buf.ID, false); err != nil {
		t.Fatalf("save after force: %v", err)
	}
	data, _ := store.Read("plan.zortex")
	if !strings.Contains(string(data), "- [x] caching") {
		t.Errorf("content = %q", data)
	}
}

func TestOpenBuffer_NewFile(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, err := svc.OpenBuffer(ctx, "fresh.zortex", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing file without lines: err = %v", err)
	}

	buf, err := svc.OpenBuffer(ctx, "fresh.zortex", []string{"@@Fresh", "- [ ] first"})
	if err != nil {
		t.Fatalf("OpenBuffer: %v", err)
	}
	if _, err := svc.SaveBuffer(ctx, buf.ID, false); err != nil {
		t.Fatalf("SaveBuffer: %v", err)
	}
	data, err := store.Read("fresh.zortex")
	if err != nil || string(data) != "@@Fresh\n- [ ] first\n" {
		t.Errorf("created file = %q, %v", data, err)
	}
	docs, total, _ := svc.ListDocuments(ctx, 0, 0, "")
	if total != 2 || docs[0].Path != "fresh.zortex" {
		t.Errorf("indexed documents = %+v", docs)
	}
}
