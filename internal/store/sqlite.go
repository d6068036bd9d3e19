package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dataflow-gateway/internal/engine"
)

// SQLite is a single-file registry used by local engine deployments.
// Timestamps are stored as unix milliseconds.
type SQLite struct {
	db *sql.DB
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

// OpenSQLite opens (or creates) the registry database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) RunMigrations(ctx context.Context) error {
	return runMigrations(ctx, "sqlite", func(ctx context.Context, sql string) error {
		_, err := s.db.ExecContext(ctx, sql)
		return err
	})
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullText(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

const sqliteOperationColumns = `id, module_type, module_config, doc, tags, is_internal, inputs_schema, outputs_schema`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteOperation(row rowScanner) (engine.Operation, error) {
	var c operationColumns
	if err := row.Scan(&c.id, &c.moduleType, &c.config, &c.doc, &c.tags, &c.internal, &c.inputs, &c.outputs); err != nil {
		return engine.Operation{}, err
	}
	return c.decode()
}

func (s *SQLite) GetOperation(ctx context.Context, id string) (engine.Operation, error) {
	op, err := scanSQLiteOperation(s.db.QueryRowContext(ctx, `SELECT `+sqliteOperationColumns+` FROM operations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Operation{}, notFound("operation", id)
	}
	if err != nil {
		return engine.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	return op, nil
}

func (s *SQLite) ListOperations(ctx context.Context) ([]engine.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteOperationColumns+` FROM operations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []engine.Operation
	for rows.Next() {
		op, err := scanSQLiteOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *SQLite) GetDataType(ctx context.Context, name string) (engine.DataTypeInfo, error) {
	dt := engine.DataTypeInfo{Name: name}
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT is_scalar, is_internal, doc FROM data_types WHERE name = ?`, name).
		Scan(&dt.IsScalar, &dt.Internal, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.DataTypeInfo{}, notFound("data type", name)
	}
	if err != nil {
		return engine.DataTypeInfo{}, fmt.Errorf("scan data type: %w", err)
	}
	if err := decodeJSON(doc, &dt.Doc); err != nil {
		return engine.DataTypeInfo{}, fmt.Errorf("decode doc: %w", err)
	}
	return dt, nil
}

func (s *SQLite) CreateJob(ctx context.Context, p CreateJobParams) (engine.Job, error) {
	inputs := orEmptyMap(p.Inputs)
	inputsJSON, err := encodeJSON(inputs)
	if err != nil {
		return engine.Job{}, err
	}
	var manifestJSON []byte
	if p.Manifest != nil {
		if manifestJSON, err = encodeJSON(p.Manifest); err != nil {
			return engine.Job{}, err
		}
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, operation_id, manifest, inputs, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), nullString(p.OperationID), nullText(manifestJSON), string(inputsJSON), string(engine.StatusQueued), toMillis(now),
	)
	if err != nil {
		return engine.Job{}, fmt.Errorf("insert job: %w", err)
	}

	return engine.Job{
		ID:          id,
		OperationID: p.OperationID,
		Manifest:    p.Manifest,
		Inputs:      inputs,
		Status:      engine.StatusQueued,
		Submitted:   engine.NewTimestamp(now),
	}, nil
}

func (s *SQLite) GetJob(ctx context.Context, id uuid.UUID) (engine.Job, error) {
	var (
		opID              sql.NullString
		manifestJSON      []byte
		inputsJSON        []byte
		status            string
		lastErr           sql.NullString
		submitted         int64
		started, finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT operation_id, manifest, inputs, status, error, submitted_at, started_at, finished_at
		FROM jobs WHERE id = ?`, id.String(),
	).Scan(&opID, &manifestJSON, &inputsJSON, &status, &lastErr, &submitted, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Job{}, notFound("job", id.String())
	}
	if err != nil {
		return engine.Job{}, fmt.Errorf("scan job: %w", err)
	}

	job := engine.Job{
		ID:          id,
		OperationID: opID.String,
		Status:      engine.JobStatus(status),
		Submitted:   engine.NewTimestamp(fromMillis(submitted)),
		Error:       textPtr(lastErr.String, lastErr.Valid),
	}
	if started.Valid {
		job.Started = engine.TimestampPtr(fromMillis(started.Int64))
	}
	if finished.Valid {
		job.Finished = engine.TimestampPtr(fromMillis(finished.Int64))
	}
	if err := decodeJSON(inputsJSON, &job.Inputs); err != nil {
		return engine.Job{}, fmt.Errorf("decode inputs: %w", err)
	}
	if len(manifestJSON) > 0 {
		job.Manifest = &engine.Manifest{}
		if err := decodeJSON(manifestJSON, job.Manifest); err != nil {
			return engine.Job{}, fmt.Errorf("decode manifest: %w", err)
		}
	}
	return job, nil
}

func (s *SQLite) MarkJobFailed(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(engine.StatusFailed), msg, toMillis(time.Now()), id.String(),
		string(engine.StatusQueued), string(engine.StatusRunning),
	)
	return err
}

func (s *SQLite) JobResults(ctx context.Context, id uuid.UUID) (map[string]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value_id FROM job_results WHERE job_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query job results: %w", err)
	}
	defer rows.Close()

	out := map[string]uuid.UUID{}
	for rows.Next() {
		var field, valueID string
		if err := rows.Scan(&field, &valueID); err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		vid, err := uuid.Parse(valueID)
		if err != nil {
			return nil, fmt.Errorf("parse value id: %w", err)
		}
		out[field] = vid
	}
	return out, rows.Err()
}

const sqliteValueColumns = `id, data_type, status, size, hash, is_internal, data, object_key, properties, created_at`

func scanSQLiteValue(row rowScanner) (engine.Value, error) {
	var (
		v         engine.Value
		id        string
		data      []byte
		objectKey sql.NullString
		props     []byte
		created   int64
	)
	if err := row.Scan(&id, &v.DataType, &v.Status, &v.Size, &v.Hash, &v.Internal, &data, &objectKey, &props, &created); err != nil {
		return engine.Value{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return engine.Value{}, fmt.Errorf("parse value id: %w", err)
	}
	v.ID = parsed
	v.ObjectKey = objectKey.String
	v.Created = engine.NewTimestamp(fromMillis(created))
	if err := decodeJSON(data, &v.Data); err != nil {
		return engine.Value{}, fmt.Errorf("decode value data: %w", err)
	}
	if err := decodeJSON(props, &v.Properties); err != nil {
		return engine.Value{}, fmt.Errorf("decode properties: %w", err)
	}
	return v, nil
}

func (s *SQLite) GetValue(ctx context.Context, id uuid.UUID) (engine.Value, error) {
	v, err := scanSQLiteValue(s.db.QueryRowContext(ctx, `SELECT `+sqliteValueColumns+` FROM data_values WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Value{}, notFound("value", id.String())
	}
	if err != nil {
		return engine.Value{}, fmt.Errorf("scan value: %w", err)
	}
	aliases, err := s.aliases(ctx)
	if err != nil {
		return engine.Value{}, err
	}
	v.Aliases = aliases[v.ID]
	return v, nil
}

func (s *SQLite) ListValues(ctx context.Context) ([]engine.Value, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteValueColumns+` FROM data_values ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	var out []engine.Value
	for rows.Next() {
		v, err := scanSQLiteValue(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the single connection before the alias query.
	rows.Close()

	aliases, err := s.aliases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Aliases = aliases[out[i].ID]
	}
	return out, nil
}

func (s *SQLite) aliases(ctx context.Context) (map[uuid.UUID][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, value_id FROM value_aliases ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID][]string{}
	for rows.Next() {
		var alias, valueID string
		if err := rows.Scan(&alias, &valueID); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		vid, err := uuid.Parse(valueID)
		if err != nil {
			return nil, fmt.Errorf("parse value id: %w", err)
		}
		out[vid] = append(out[vid], alias)
	}
	return out, rows.Err()
}

func (s *SQLite) ResolveAlias(ctx context.Context, alias string) (uuid.UUID, error) {
	var valueID string
	err := s.db.QueryRowContext(ctx, `SELECT value_id FROM value_aliases WHERE alias = ?`, alias).Scan(&valueID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, notFound("alias", alias)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query alias: %w", err)
	}
	return uuid.Parse(valueID)
}

func (s *SQLite) GetPipeline(ctx context.Context, name string) (engine.PipelineStructure, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT structure FROM pipelines WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.PipelineStructure{}, notFound("pipeline", name)
	}
	if err != nil {
		return engine.PipelineStructure{}, fmt.Errorf("query pipeline: %w", err)
	}
	var p engine.PipelineStructure
	if err := decodeJSON(raw, &p); err != nil {
		return engine.PipelineStructure{}, fmt.Errorf("decode pipeline: %w", err)
	}
	p.Name = name
	return p, nil
}

func (s *SQLite) GetWorkflow(ctx context.Context, id uuid.UUID) (engine.WorkflowInfo, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT info FROM workflows WHERE id = ?`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.WorkflowInfo{}, notFound("workflow", id.String())
	}
	if err != nil {
		return engine.WorkflowInfo{}, fmt.Errorf("query workflow: %w", err)
	}
	var w engine.WorkflowInfo
	if err := decodeJSON(raw, &w); err != nil {
		return engine.WorkflowInfo{}, fmt.Errorf("decode workflow: %w", err)
	}
	w.ID = id
	return w, nil
}

func (s *SQLite) ListWorkflows(ctx context.Context) ([]engine.WorkflowInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, info FROM workflows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var out []engine.WorkflowInfo
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		var w engine.WorkflowInfo
		if err := decodeJSON(raw, &w); err != nil {
			return nil, fmt.Errorf("decode workflow: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse workflow id: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) PutDataType(ctx context.Context, dt engine.DataTypeInfo) error {
	doc, err := encodeJSON(dt.Doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO data_types (name, is_scalar, is_internal, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET is_scalar = excluded.is_scalar,
			is_internal = excluded.is_internal, doc = excluded.doc`,
		dt.Name, dt.IsScalar, dt.Internal, string(doc),
	)
	return err
}

func (s *SQLite) PutOperation(ctx context.Context, op engine.Operation) error {
	p, err := encodeOperation(op)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (`+sqliteOperationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET module_type = excluded.module_type,
			module_config = excluded.module_config, doc = excluded.doc, tags = excluded.tags,
			is_internal = excluded.is_internal, inputs_schema = excluded.inputs_schema,
			outputs_schema = excluded.outputs_schema`,
		op.ID, op.ModuleType, string(p.config), string(p.doc), string(p.tags), op.Internal, string(p.inputs), string(p.outputs),
	)
	return err
}

func (s *SQLite) PutValue(ctx context.Context, v engine.Value) error {
	data, err := nullableJSON(v.Data)
	if err != nil {
		return err
	}
	props, err := encodeJSON(orEmptyMap(v.Properties))
	if err != nil {
		return err
	}
	created := v.Created.Time
	if created.IsZero() {
		created = time.Now()
	}
	status := v.Status
	if status == "" {
		status = "set"
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO data_values (`+sqliteValueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.DataType, status, v.Size, v.Hash, v.Internal, nullText(data), nullString(v.ObjectKey), string(props), toMillis(created),
	)
	return err
}

func (s *SQLite) PutAlias(ctx context.Context, alias string, valueID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO value_aliases (alias, value_id) VALUES (?, ?)
		ON CONFLICT (alias) DO UPDATE SET value_id = excluded.value_id`,
		alias, valueID.String(),
	)
	return err
}

func (s *SQLite) StartJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(engine.StatusRunning), toMillis(time.Now()), id.String(), string(engine.StatusQueued),
	)
	return err
}

func (s *SQLite) CompleteJob(ctx context.Context, id uuid.UUID, results map[string]uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, finished_at = ?, error = NULL
		WHERE id = ? AND status IN (?, ?)`,
		string(engine.StatusSuccess), toMillis(time.Now()), id.String(),
		string(engine.StatusQueued), string(engine.StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete job %s: not in a running state", id)
	}
	for field, valueID := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO job_results (job_id, field, value_id) VALUES (?, ?, ?)`,
			id.String(), field, valueID.String(),
		); err != nil {
			return fmt.Errorf("insert job result: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) PutPipeline(ctx context.Context, p engine.PipelineStructure) error {
	raw, err := encodeJSON(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipelines (name, structure) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET structure = excluded.structure`,
		p.Name, string(raw),
	)
	return err
}

func (s *SQLite) PutWorkflow(ctx context.Context, w engine.WorkflowInfo) error {
	raw, err := encodeJSON(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, info) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET info = excluded.info`,
		w.ID.String(), string(raw),
	)
	return err
}
