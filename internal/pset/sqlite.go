package pset

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SqliteRepository is a PSET store backed by a SQLite database,
// seeded with the default PSETs on first use.
type SqliteRepository struct {
	db *sql.DB
}

// NewSqliteRepository opens (or creates) the database at dbPath,
// ensures the schema exists, and seeds it with the default PSETs if
// it is empty.
func NewSqliteRepository(dbPath string) (*SqliteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	repo := &SqliteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	if err := repo.seedIfEmpty(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SqliteRepository) initSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS psets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		torque_min REAL NOT NULL,
		torque_max REAL NOT NULL,
		angle_min REAL NOT NULL,
		angle_max REAL NOT NULL,
		description TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create psets table: %w", err)
	}
	return nil
}

func (r *SqliteRepository) seedIfEmpty() error {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM psets").Scan(&count); err != nil {
		return fmt.Errorf("count psets: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range DefaultPsets() {
		_, err := r.db.Exec(
			`INSERT INTO psets (name, torque_min, torque_max, angle_min, angle_max, description, is_default)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			p.Name, p.TorqueMin, p.TorqueMax, p.AngleMin, p.AngleMax, p.Description,
		)
		if err != nil {
			return fmt.Errorf("seed pset %q: %w", p.Name, err)
		}
	}
	return nil
}

func scanPset(scan func(dest ...interface{}) error) (Pset, error) {
	var p Pset
	var description sql.NullString
	if err := scan(&p.ID, &p.Name, &p.TorqueMin, &p.TorqueMax, &p.AngleMin, &p.AngleMax, &description); err != nil {
		return Pset{}, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	return p, nil
}

func (r *SqliteRepository) GetAll() []Pset {
	rows, err := r.db.Query("SELECT id, name, torque_min, torque_max, angle_min, angle_max, description FROM psets ORDER BY id")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Pset
	for rows.Next() {
		p, err := scanPset(rows.Scan)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *SqliteRepository) GetByID(id uint32) (Pset, bool) {
	row := r.db.QueryRow("SELECT id, name, torque_min, torque_max, angle_min, angle_max, description FROM psets WHERE id = ?", id)
	p, err := scanPset(row.Scan)
	if err != nil {
		return Pset{}, false
	}
	return p, true
}

func (r *SqliteRepository) Create(p Pset) (Pset, error) {
	if err := validateRanges(p); err != nil {
		return Pset{}, err
	}

	result, err := r.db.Exec(
		`INSERT INTO psets (name, torque_min, torque_max, angle_min, angle_max, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.TorqueMin, p.TorqueMax, p.AngleMin, p.AngleMax, p.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Pset{}, fmt.Errorf("a PSET with name %q already exists", p.Name)
		}
		return Pset{}, fmt.Errorf("create pset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Pset{}, fmt.Errorf("create pset: %w", err)
	}

	created, ok := r.GetByID(uint32(id))
	if !ok {
		return Pset{}, fmt.Errorf("failed to retrieve created PSET")
	}
	return created, nil
}

func (r *SqliteRepository) Update(id uint32, p Pset) (Pset, error) {
	if err := validateRanges(p); err != nil {
		return Pset{}, err
	}

	result, err := r.db.Exec(
		`UPDATE psets SET name = ?, torque_min = ?, torque_max = ?,
		 angle_min = ?, angle_max = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Name, p.TorqueMin, p.TorqueMax, p.AngleMin, p.AngleMax, p.Description, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Pset{}, fmt.Errorf("a PSET with name %q already exists", p.Name)
		}
		return Pset{}, fmt.Errorf("update pset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return Pset{}, fmt.Errorf("update pset: %w", err)
	}
	if rowsAffected == 0 {
		return Pset{}, fmt.Errorf("PSET with id %d not found", id)
	}

	updated, ok := r.GetByID(id)
	if !ok {
		return Pset{}, fmt.Errorf("failed to retrieve updated PSET")
	}
	return updated, nil
}

func (r *SqliteRepository) Delete(id uint32) error {
	var isDefault bool
	_ = r.db.QueryRow("SELECT is_default FROM psets WHERE id = ?", id).Scan(&isDefault)
	if isDefault {
		return fmt.Errorf("cannot delete default PSET")
	}

	result, err := r.db.Exec("DELETE FROM psets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete pset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pset: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("PSET with id %d not found", id)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SqliteRepository) Close() error { return r.db.Close() }

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
