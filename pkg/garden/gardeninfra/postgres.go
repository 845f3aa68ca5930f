package gardeninfra

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/verdant/pkg/asyncx"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/Abraxas-365/verdant/pkg/streamx"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// upsertChunkSize bounds the number of rows per statement so a full catalog
// refresh does not turn into one oversized query.
const upsertChunkSize = 100

// upsertWorkers bounds concurrent upsert statements per batch.
const upsertWorkers = 4

// PostgresStore is the PostgreSQL implementation of garden.PlantStore.
//
// Change notification is in-process: watchers of this store instance are
// re-queried and notified after each successful UpsertAll through it. Writes
// from other processes are picked up on the next local write.
type PostgresStore struct {
	db      *sqlx.DB
	changes *streamx.Source[struct{}]
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		changes: streamx.NewSource[struct{}](),
	}
}

// UpsertAll inserts or replaces plants by ID. The batch is split into chunks
// executed by a bounded worker pool.
func (s *PostgresStore) UpsertAll(ctx context.Context, plants []garden.Plant) error {
	if len(plants) == 0 {
		return nil
	}

	query := `
		INSERT INTO plants (
			id, name, description, grow_zone, watering_interval, image_url, updated_at
		) VALUES (
			:id, :name, :description, :grow_zone, :watering_interval, :image_url, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			grow_zone = EXCLUDED.grow_zone,
			watering_interval = EXCLUDED.watering_interval,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at`

	rows := toPersistenceSlice(plants)

	var chunks [][]plantPersistence
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(rows))
		chunks = append(chunks, rows[start:end])
	}

	_, err := asyncx.Pool(ctx, upsertWorkers, chunks, func(ctx context.Context, chunk []plantPersistence) (struct{}, error) {
		if _, err := s.db.NamedExecContext(ctx, query, chunk); err != nil {
			if pqErr, ok := err.(*pq.Error); ok {
				return struct{}{}, infraErrors.NewWithCause(ErrUpsert, err).
					WithDetail("pq_code", string(pqErr.Code))
			}
			return struct{}{}, infraErrors.NewWithCause(ErrUpsert, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	logx.WithField("plants", len(plants)).Debug("plant batch upserted")
	s.changes.Emit(struct{}{})
	return nil
}

// WatchAll implements garden.PlantStore.
func (s *PostgresStore) WatchAll(ctx context.Context) (<-chan []garden.Plant, context.CancelFunc) {
	query := `SELECT * FROM plants ORDER BY id`
	return s.watch(ctx, func(ctx context.Context) ([]garden.Plant, error) {
		var rows []plantPersistence
		if err := s.db.SelectContext(ctx, &rows, query); err != nil {
			return nil, infraErrors.NewWithCause(ErrQuery, err)
		}
		return toDomainSlice(rows), nil
	})
}

// WatchZone implements garden.PlantStore.
func (s *PostgresStore) WatchZone(ctx context.Context, zone garden.Zone) (<-chan []garden.Plant, context.CancelFunc) {
	query := `SELECT * FROM plants WHERE grow_zone = $1 ORDER BY id`
	return s.watch(ctx, func(ctx context.Context) ([]garden.Plant, error) {
		var rows []plantPersistence
		if err := s.db.SelectContext(ctx, &rows, query, int(zone)); err != nil {
			return nil, infraErrors.NewWithCause(ErrQuery, err)
		}
		return toDomainSlice(rows), nil
	})
}

// watch emits one snapshot up front and then one per change signal. A failed
// snapshot query is logged and skipped; the watch itself stays alive.
func (s *PostgresStore) watch(ctx context.Context, load func(context.Context) ([]garden.Plant, error)) (<-chan []garden.Plant, context.CancelFunc) {
	signals, cancelSignals := s.changes.Subscribe()
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSignals()
			close(done)
		})
	}

	out := make(chan []garden.Plant)
	emit := func() bool {
		snapshot, err := load(ctx)
		if err != nil {
			logx.WithError(err).Warn("plant snapshot query failed, skipping emission")
			return true
		}
		select {
		case out <- snapshot:
			return true
		case <-done:
			return false
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		if !emit() {
			return
		}
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel
}

// plantPersistence handles DB-specific column mapping.
type plantPersistence struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	GrowZone         int       `db:"grow_zone"`
	WateringInterval int       `db:"watering_interval"`
	ImageURL         string    `db:"image_url"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func toPersistence(p garden.Plant) plantPersistence {
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return plantPersistence{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		GrowZone:         int(p.Zone),
		WateringInterval: p.WateringInterval,
		ImageURL:         p.ImageURL,
		UpdatedAt:        updated,
	}
}

func toPersistenceSlice(plants []garden.Plant) []plantPersistence {
	rows := make([]plantPersistence, len(plants))
	for i, p := range plants {
		rows[i] = toPersistence(p)
	}
	return rows
}

func toDomain(row plantPersistence) garden.Plant {
	return garden.Plant{
		ID:               row.ID,
		Name:             row.Name,
		Description:      row.Description,
		Zone:             garden.Zone(row.GrowZone),
		WateringInterval: row.WateringInterval,
		ImageURL:         row.ImageURL,
		UpdatedAt:        row.UpdatedAt,
	}
}

func toDomainSlice(rows []plantPersistence) []garden.Plant {
	plants := make([]garden.Plant, len(rows))
	for i, row := range rows {
		plants[i] = toDomain(row)
	}
	return plants
}
