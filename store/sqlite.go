package store

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/record"
)

// Columns refreshed when an upsert hits an existing (domain, type, value) row. The row
// id survives which keeps insertion order stable for tie-breaking.
var refreshColumns = []string{"priority", "ttl", "expiration_date"}

var uniquenessKey = []clause.Column{
	{Name: "domain"}, {Name: "record_type"}, {Name: "address"}, {Name: "host"},
}

type sqliteStore struct {
	db *gorm.DB
}

// Open opens (creating if missing) the SQLite cache database at path and migrates the
// "entries" table into existence. Rows already past their expiration relative to the
// current clock are pruned eagerly before the store is handed to anyone, so a restart
// never serves records which died while the process was down.
func Open(path string) (*sqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Our log package does the talking
	})
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}

	if err = db.AutoMigrate(&record.Record{}); err != nil {
		return nil, &IOError{Op: "migrate", Err: err}
	}

	t := &sqliteStore{db: db}

	if _, err = t.PruneExpired(context.Background(), time.Now()); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *sqliteStore) Upsert(ctx context.Context, recs []record.Record) (int64, error) {
	for ix := range recs { // Reject the whole set before touching storage
		if err := recs[ix].Validate(); err != nil {
			return 0, err
		}
	}

	var affected int64
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			rec.ID = 0 // Surrogate ids are assigned here, never by callers
			rec.Domain = dnsutil.CanonicalName(rec.Domain)
			res := tx.Clauses(clause.OnConflict{
				Columns:   uniquenessKey,
				DoUpdates: clause.AssignmentColumns(refreshColumns),
			}).Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}

		return nil
	})
	if err != nil {
		return 0, &IOError{Op: "upsert", Err: err}
	}

	return affected, nil
}

func (t *sqliteStore) Query(ctx context.Context, domain string, qType uint16) ([]record.Record, error) {
	var recs []record.Record
	res := t.db.WithContext(ctx).
		Where("domain = ? AND record_type = ? AND expiration_date > ?",
			dnsutil.CanonicalName(domain), qType, time.Now()).
		Order("priority ASC, id ASC").
		Find(&recs)
	if res.Error != nil {
		return nil, &IOError{Op: "query", Err: res.Error}
	}

	return recs, nil
}

func (t *sqliteStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res := t.db.WithContext(ctx).
		Where("expiration_date <= ?", now).
		Delete(&record.Record{})
	if res.Error != nil {
		return 0, &IOError{Op: "prune", Err: res.Error}
	}

	return res.RowsAffected, nil
}

func (t *sqliteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	res := t.db.WithContext(ctx).Model(&record.Record{}).Count(&n)
	if res.Error != nil {
		return 0, &IOError{Op: "count", Err: res.Error}
	}

	return n, nil
}

func (t *sqliteStore) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return &IOError{Op: "close", Err: err}
	}

	return sqlDB.Close()
}
