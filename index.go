package arxiv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Index is the SQLite catalog of paper metadata for stored artifacts.
type Index struct {
	db *gorm.DB
}

// OpenIndex opens or creates the catalog database at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	// modernc.org/sqlite registers itself as "sqlite" and needs no cgo.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&Paper{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the catalog database.
func (x *Index) Close() error {
	sqlDB, err := x.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts paper metadata, leaving conversion columns untouched.
func (x *Index) Save(ctx context.Context, p *Paper) error {
	now := time.Now()
	row := *p
	row.MetadataUpdated = &now
	return x.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"published", "updated", "title", "abstract", "authors", "categories",
			"comments", "journal_ref", "doi", "metadata_updated",
		}),
	}).Create(&row).Error
}

// MarkConverted records that the artifact for id was written at path.
func (x *Index) MarkConverted(ctx context.Context, id, path string) error {
	now := time.Now()
	return x.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"converted", "artifact_path", "converted_at"}),
	}).Create(&Paper{ID: id, Converted: true, ArtifactPath: path, ConvertedAt: &now}).Error
}

// Get returns the paper with id.
func (x *Index) Get(ctx context.Context, id string) (*Paper, error) {
	var p Paper
	err := x.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, newError(ErrNotFound, id, err)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Papers returns the catalog rows for ids, keyed by id.
// Ids without a row, or whose row has no title yet, are absent.
func (x *Index) Papers(ctx context.Context, ids []string) (map[string]*Paper, error) {
	out := make(map[string]*Paper, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var papers []Paper
	if err := x.db.WithContext(ctx).Where("id IN ? AND title != ?", ids, "").Find(&papers).Error; err != nil {
		return nil, err
	}
	for i := range papers {
		out[papers[i].ID] = &papers[i]
	}
	return out, nil
}

// Search matches title and abstract text of cataloged papers.
func (x *Index) Search(ctx context.Context, text string, limit int) ([]Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + text + "%"
	var papers []Paper
	err := x.db.WithContext(ctx).
		Where("title LIKE ? OR abstract LIKE ?", like, like).
		Order("published DESC").
		Limit(limit).
		Find(&papers).Error
	return papers, err
}

// IndexStats contains statistics about the catalog.
type IndexStats struct {
	TotalPapers int64
	Converted   int64
}

// Stats returns catalog statistics.
func (x *Index) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}
	if err := x.db.WithContext(ctx).Model(&Paper{}).Count(&stats.TotalPapers).Error; err != nil {
		return nil, err
	}
	if err := x.db.WithContext(ctx).Model(&Paper{}).Where("converted = ?", true).Count(&stats.Converted).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
