package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facetrack/internal/config"
	"github.com/your-org/facetrack/internal/models"
)

// PostgresStore backs the known-identity directory (persons and their face
// embeddings) and the append-only attendance log.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Persons ---

type Person struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *PostgresStore) CreatePerson(ctx context.Context, name string) (*Person, error) {
	p := &Person{
		ID:   uuid.New(),
		Name: name,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, name) VALUES ($1, $2) RETURNING created_at`,
		p.ID, p.Name,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	p := &Person{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM persons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

func (s *PostgresStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person not found")
	}
	return nil
}

// --- Face embeddings ---

func (s *PostgresStore) AddFaceEmbedding(ctx context.Context, personID uuid.UUID, embedding []float32, quality float32) error {
	vec := pgvector.NewVector(embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_embeddings (id, person_id, embedding, quality) VALUES ($1, $2, $3, $4)`,
		uuid.New(), personID, vec, quality)
	if err != nil {
		return fmt.Errorf("add face embedding: %w", err)
	}
	return nil
}

// SearchIdentity finds the closest enrolled person for an embedding, or nil
// when no match reaches the similarity threshold. Implements the identity
// directory consumed by the face recognizer.
func (s *PostgresStore) SearchIdentity(ctx context.Context, embedding []float32, threshold float64) (*models.Identity, error) {
	vec := pgvector.NewVector(embedding)

	var id uuid.UUID
	var name string
	var score float32

	err := s.pool.QueryRow(ctx,
		`SELECT fe.person_id, p.name, 1 - (fe.embedding <=> $1) AS score
		 FROM face_embeddings fe
		 JOIN persons p ON p.id = fe.person_id
		 WHERE 1 - (fe.embedding <=> $1) >= $2
		 ORDER BY fe.embedding <=> $1
		 LIMIT 1`,
		vec, threshold,
	).Scan(&id, &name, &score)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("search identity: %w", err)
	}

	return &models.Identity{ID: id.String(), Name: name, Score: score}, nil
}

// --- Attendance log ---

// InsertAttendance appends one classified movement to the audit log.
func (s *PostgresStore) InsertAttendance(ctx context.Context, rec models.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_log (id, employee_id, name, movement, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), rec.EmployeeID, rec.Name, rec.Movement, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}
