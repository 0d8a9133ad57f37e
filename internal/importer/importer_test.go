package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/repo"
)

func newImporterDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:importer_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Product{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// capturingPublisher records events; optionally fails every publish.
type capturingPublisher struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (p *capturingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("queue unavailable")
	}
	p.events = append(p.events, eventType)
	return nil
}

func newTestImporter(db *gorm.DB, events EventPublisher) (*Importer, *progress.Tracker) {
	tr := progress.NewTracker(progress.NewMemoryStore(), time.Hour)
	return &Importer{DB: db, Tracker: tr, Events: events}, tr
}

func TestRun_CreatesAllRows(t *testing.T) {
	db := newImporterDB(t)
	pub := &capturingPublisher{}
	imp, tr := newTestImporter(db, pub)

	path := writeCSV(t, strings.Join([]string{
		"sku,name,description,price,quantity,is_active",
		"SKU-1,Widget,blue,9.99,5,true",
		"SKU-2,Gadget,,19.99,0,false",
	}, "\n"))

	sum, err := imp.Run(context.Background(), path, "job-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 2 || sum.Created != 2 || sum.Updated != 0 || sum.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	// Source file consumed on success
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected source file removed, stat err=%v", err)
	}

	snap, err := tr.GetProgress(context.Background(), "job-1")
	if err != nil || snap == nil {
		t.Fatalf("GetProgress: %+v, %v", snap, err)
	}
	if snap.Status != progress.StatusComplete || snap.Percentage != 100 {
		t.Fatalf("expected complete snapshot, got %+v", snap)
	}
	if snap.Message != "Import complete! Created: 2, Updated: 0, Errors: 0" {
		t.Fatalf("unexpected terminal message: %q", snap.Message)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 created events, got %v", pub.events)
	}
	for _, e := range pub.events {
		if e != domain.EventProductCreated {
			t.Fatalf("unexpected event type %q", e)
		}
	}
}

func TestRun_ReImportIsIdempotentUpsert(t *testing.T) {
	db := newImporterDB(t)
	imp, _ := newTestImporter(db, nil)
	ctx := context.Background()

	content := strings.Join([]string{
		"sku,name,price",
		"SKU-1,Widget,9.99",
		"SKU-2,Gadget,19.99",
	}, "\n")

	if _, err := imp.Run(ctx, writeCSV(t, content), "job-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sum, err := imp.Run(ctx, writeCSV(t, content), "job-2")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Created != 0 || sum.Updated != 2 || sum.Errors != 0 {
		t.Fatalf("re-import should update, not create: %+v", sum)
	}

	total, err := repo.CountProducts(ctx, db, repo.ProductFilter{})
	if err != nil || total != 2 {
		t.Fatalf("expected 2 products after re-import, got %d (%v)", total, err)
	}
}

func TestRun_CaseInsensitiveUpdate_KeepsStoredCasing(t *testing.T) {
	db := newImporterDB(t)
	imp, _ := newTestImporter(db, nil)
	ctx := context.Background()

	if err := repo.CreateProduct(ctx, db, &domain.Product{
		SKU: "ABC-1", Name: "Old", Price: 1, Quantity: 1, IsActive: true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sum, err := imp.Run(ctx, writeCSV(t, "sku,name,price\nabc-1,New,2.50"), "job-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Created != 0 || sum.Updated != 1 {
		t.Fatalf("case-variant SKU should update: %+v", sum)
	}

	got, err := repo.GetBySKU(ctx, db, "ABC-1")
	if err != nil {
		t.Fatalf("GetBySKU: %v", err)
	}
	if got.SKU != "ABC-1" {
		t.Fatalf("stored casing must survive the update, got %q", got.SKU)
	}
	if got.Name != "New" || got.Price != 2.50 {
		t.Fatalf("fields not updated: %+v", got)
	}
}

func TestRun_DuplicateSKUInFile_LastRowWins(t *testing.T) {
	db := newImporterDB(t)
	imp, _ := newTestImporter(db, nil)
	ctx := context.Background()

	sum, err := imp.Run(ctx, writeCSV(t, strings.Join([]string{
		"sku,name,price,quantity,is_active",
		"DUP-1,Widget1,9.99,5,true",
		"bad sku!,Broken,1.00,1,true",
		"dup-1,Widget2,19.99,7,false",
	}, "\n")), "job-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 3 || sum.Processed != 3 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.Created != 1 || sum.Updated != 0 || sum.Errors != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	got, err := repo.GetBySKU(ctx, db, "DUP-1")
	if err != nil {
		t.Fatalf("GetBySKU: %v", err)
	}
	if got.Name != "Widget2" || got.Price != 19.99 || got.Quantity != 7 || got.IsActive {
		t.Fatalf("last row should win: %+v", got)
	}
}

func TestRun_EmptyFile(t *testing.T) {
	db := newImporterDB(t)
	imp, tr := newTestImporter(db, nil)
	ctx := context.Background()

	path := writeCSV(t, "sku,name,price\n")
	_, err := imp.Run(ctx, path, "job-1")
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}

	snap, err := tr.GetProgress(ctx, "job-1")
	if err != nil || snap == nil {
		t.Fatalf("GetProgress: %+v, %v", snap, err)
	}
	if snap.Status != progress.StatusError || snap.Error != "file is empty" {
		t.Fatalf("unexpected error snapshot: %+v", snap)
	}

	// Failed jobs keep their source file for inspection.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("source file should remain after failure: %v", err)
	}
}

func TestRun_MissingRequiredColumn(t *testing.T) {
	db := newImporterDB(t)
	imp, tr := newTestImporter(db, nil)
	ctx := context.Background()

	_, err := imp.Run(ctx, writeCSV(t, "sku,name\nS-1,Widget"), "job-1")
	if err == nil || !strings.Contains(err.Error(), "price") {
		t.Fatalf("expected missing-column error naming price, got %v", err)
	}

	snap, _ := tr.GetProgress(ctx, "job-1")
	if snap == nil || snap.Status != progress.StatusError {
		t.Fatalf("expected error snapshot, got %+v", snap)
	}
	if !strings.Contains(snap.Error, "missing required columns") {
		t.Fatalf("unexpected snapshot error: %q", snap.Error)
	}
}

func TestRun_ChunkedProcessing(t *testing.T) {
	db := newImporterDB(t)
	imp, tr := newTestImporter(db, nil)
	imp.ChunkSize = 2
	ctx := context.Background()

	lines := []string{"sku,name,price"}
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf("S-%d,Item %d,%d.50", i, i, i+1))
	}

	sum, err := imp.Run(ctx, writeCSV(t, strings.Join(lines, "\n")), "job-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 5 || sum.Processed != 5 || sum.Created != 5 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	snap, _ := tr.GetProgress(ctx, "job-1")
	if snap == nil || snap.Status != progress.StatusComplete {
		t.Fatalf("expected complete snapshot, got %+v", snap)
	}

	total, err := repo.CountProducts(ctx, db, repo.ProductFilter{})
	if err != nil || total != 5 {
		t.Fatalf("expected 5 products, got %d (%v)", total, err)
	}
}

func TestRun_PublishFailureDoesNotAffectImport(t *testing.T) {
	db := newImporterDB(t)
	pub := &capturingPublisher{fail: true}
	imp, _ := newTestImporter(db, pub)

	sum, err := imp.Run(context.Background(), writeCSV(t, "sku,name,price\nS-1,Widget,1.00"), "job-1")
	if err != nil {
		t.Fatalf("Run should tolerate publish failures: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRun_QuotedMultilineField(t *testing.T) {
	db := newImporterDB(t)
	imp, _ := newTestImporter(db, nil)
	ctx := context.Background()

	content := "sku,name,description,price\n" +
		"S-1,Widget,\"line one\nline two\",3.00\n"
	sum, err := imp.Run(ctx, writeCSV(t, content), "job-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The embedded newline must not inflate the row count.
	if sum.Total != 1 || sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	got, err := repo.GetBySKU(ctx, db, "S-1")
	if err != nil {
		t.Fatalf("GetBySKU: %v", err)
	}
	if got.Description != "line one\nline two" {
		t.Fatalf("quoted field mangled: %q", got.Description)
	}
}

func TestCountDataRows(t *testing.T) {
	path := writeCSV(t, "sku,name,price\na,b,1\nc,d,2\n")
	n, err := countDataRows(path)
	if err != nil || n != 2 {
		t.Fatalf("countDataRows = %d, %v", n, err)
	}

	empty := writeCSV(t, "")
	n, err = countDataRows(empty)
	if err != nil || n != 0 {
		t.Fatalf("countDataRows(empty) = %d, %v", n, err)
	}
}
