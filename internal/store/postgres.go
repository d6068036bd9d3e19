package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"dataflow-gateway/internal/engine"
)

// Postgres wraps pgxpool for the engine registry.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a pooled connection to Postgres.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations executes the embedded Postgres migrations.
func (s *Postgres) RunMigrations(ctx context.Context) error {
	return runMigrations(ctx, "postgres", func(ctx context.Context, sql string) error {
		_, err := s.pool.Exec(ctx, sql)
		return err
	})
}

const pgOperationColumns = `id, module_type, module_config, doc, tags, is_internal, inputs_schema, outputs_schema`

func scanPgOperation(row pgx.Row) (engine.Operation, error) {
	var c operationColumns
	if err := row.Scan(&c.id, &c.moduleType, &c.config, &c.doc, &c.tags, &c.internal, &c.inputs, &c.outputs); err != nil {
		return engine.Operation{}, err
	}
	return c.decode()
}

// GetOperation fetches an operation by id.
func (s *Postgres) GetOperation(ctx context.Context, id string) (engine.Operation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgOperationColumns+` FROM operations WHERE id = $1`, id)
	op, err := scanPgOperation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.Operation{}, notFound("operation", id)
	}
	if err != nil {
		return engine.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	return op, nil
}

// ListOperations returns every registered operation ordered by id.
func (s *Postgres) ListOperations(ctx context.Context) ([]engine.Operation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgOperationColumns+` FROM operations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []engine.Operation
	for rows.Next() {
		op, err := scanPgOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// GetDataType fetches a data type by name.
func (s *Postgres) GetDataType(ctx context.Context, name string) (engine.DataTypeInfo, error) {
	dt := engine.DataTypeInfo{Name: name}
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT is_scalar, is_internal, doc FROM data_types WHERE name = $1
	`, name).Scan(&dt.IsScalar, &dt.Internal, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
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

// CreateJob inserts a queued job row.
func (s *Postgres) CreateJob(ctx context.Context, p CreateJobParams) (engine.Job, error) {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, operation_id, manifest, inputs, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.String(), emptyToNil(p.OperationID), manifestJSON, inputsJSON, string(engine.StatusQueued), now)
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

// GetJob fetches a job by id.
func (s *Postgres) GetJob(ctx context.Context, id uuid.UUID) (engine.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT operation_id, manifest, inputs, status, error, submitted_at, started_at, finished_at
		FROM jobs WHERE id = $1
	`, id.String())

	var (
		opID              pgtype.Text
		manifestJSON      []byte
		inputsJSON        []byte
		status            string
		lastErr           pgtype.Text
		submitted         time.Time
		started, finished pgtype.Timestamptz
	)
	if err := row.Scan(&opID, &manifestJSON, &inputsJSON, &status, &lastErr, &submitted, &started, &finished); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Job{}, notFound("job", id.String())
		}
		return engine.Job{}, fmt.Errorf("scan job: %w", err)
	}

	job := engine.Job{
		ID:          id,
		OperationID: opID.String,
		Status:      engine.JobStatus(status),
		Submitted:   engine.NewTimestamp(submitted),
		Error:       textPtr(lastErr.String, lastErr.Valid),
	}
	if started.Valid {
		job.Started = engine.TimestampPtr(started.Time)
	}
	if finished.Valid {
		job.Finished = engine.TimestampPtr(finished.Time)
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

// MarkJobFailed moves a non-terminal job to failed.
func (s *Postgres) MarkJobFailed(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, finished_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, id.String(), string(engine.StatusFailed), msg, string(engine.StatusQueued), string(engine.StatusRunning))
	return err
}

// JobResults maps output fields to value ids.
func (s *Postgres) JobResults(ctx context.Context, id uuid.UUID) (map[string]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT field, value_id FROM job_results WHERE job_id = $1`, id.String())
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

const pgValueColumns = `id, data_type, status, size, hash, is_internal, data, object_key, properties, created_at`

func scanPgValue(row pgx.Row) (engine.Value, error) {
	var (
		v         engine.Value
		id        string
		data      []byte
		objectKey pgtype.Text
		props     []byte
		created   time.Time
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
	v.Created = engine.NewTimestamp(created)
	if err := decodeJSON(data, &v.Data); err != nil {
		return engine.Value{}, fmt.Errorf("decode value data: %w", err)
	}
	if err := decodeJSON(props, &v.Properties); err != nil {
		return engine.Value{}, fmt.Errorf("decode properties: %w", err)
	}
	return v, nil
}

// GetValue fetches a value with its aliases.
func (s *Postgres) GetValue(ctx context.Context, id uuid.UUID) (engine.Value, error) {
	v, err := scanPgValue(s.pool.QueryRow(ctx, `SELECT `+pgValueColumns+` FROM data_values WHERE id = $1`, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
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

// ListValues returns every value with its aliases, oldest first.
func (s *Postgres) ListValues(ctx context.Context) ([]engine.Value, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgValueColumns+` FROM data_values ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	var out []engine.Value
	for rows.Next() {
		v, err := scanPgValue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliases, err := s.aliases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Aliases = aliases[out[i].ID]
	}
	return out, nil
}

func (s *Postgres) aliases(ctx context.Context) (map[uuid.UUID][]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT alias, value_id FROM value_aliases ORDER BY alias`)
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

// ResolveAlias returns the value id an alias points to.
func (s *Postgres) ResolveAlias(ctx context.Context, alias string) (uuid.UUID, error) {
	var valueID string
	err := s.pool.QueryRow(ctx, `SELECT value_id FROM value_aliases WHERE alias = $1`, alias).Scan(&valueID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, notFound("alias", alias)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query alias: %w", err)
	}
	return uuid.Parse(valueID)
}

// GetPipeline fetches a pipeline structure by name.
func (s *Postgres) GetPipeline(ctx context.Context, name string) (engine.PipelineStructure, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT structure FROM pipelines WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

// GetWorkflow fetches a workflow by id.
func (s *Postgres) GetWorkflow(ctx context.Context, id uuid.UUID) (engine.WorkflowInfo, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT info FROM workflows WHERE id = $1`, id.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

// ListWorkflows returns every stored workflow.
func (s *Postgres) ListWorkflows(ctx context.Context) ([]engine.WorkflowInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, info FROM workflows ORDER BY id`)
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

// PutDataType upserts a data type.
func (s *Postgres) PutDataType(ctx context.Context, dt engine.DataTypeInfo) error {
	doc, err := encodeJSON(dt.Doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO data_types (name, is_scalar, is_internal, doc) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET is_scalar = $2, is_internal = $3, doc = $4
	`, dt.Name, dt.IsScalar, dt.Internal, doc)
	return err
}

// PutOperation upserts an operation.
func (s *Postgres) PutOperation(ctx context.Context, op engine.Operation) error {
	p, err := encodeOperation(op)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO operations (`+pgOperationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET module_type = $2, module_config = $3, doc = $4, tags = $5,
			is_internal = $6, inputs_schema = $7, outputs_schema = $8
	`, op.ID, op.ModuleType, p.config, p.doc, p.tags, op.Internal, p.inputs, p.outputs)
	return err
}

// PutValue inserts a value.
func (s *Postgres) PutValue(ctx context.Context, v engine.Value) error {
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
		created = time.Now().UTC()
	}
	status := v.Status
	if status == "" {
		status = "set"
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO data_values (`+pgValueColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID.String(), v.DataType, status, v.Size, v.Hash, v.Internal, data, emptyToNil(v.ObjectKey), props, created)
	return err
}

// PutAlias points alias at a value.
func (s *Postgres) PutAlias(ctx context.Context, alias string, valueID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO value_aliases (alias, value_id) VALUES ($1, $2)
		ON CONFLICT (alias) DO UPDATE SET value_id = $2
	`, alias, valueID.String())
	return err
}

// StartJob moves a queued job to running.
func (s *Postgres) StartJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, started_at = NOW() WHERE id = $1 AND status = $3
	`, id.String(), string(engine.StatusRunning), string(engine.StatusQueued))
	return err
}

// CompleteJob records results and marks a non-terminal job successful.
func (s *Postgres) CompleteJob(ctx context.Context, id uuid.UUID, results map[string]uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	tag, err := tx.Exec(ctx, `
		UPDATE jobs SET status = $2, finished_at = NOW(), error = NULL
		WHERE id = $1 AND status IN ($3, $4)
	`, id.String(), string(engine.StatusSuccess), string(engine.StatusQueued), string(engine.StatusRunning))
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete job %s: not in a running state", id)
	}
	for field, valueID := range results {
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_results (job_id, field, value_id) VALUES ($1, $2, $3)
		`, id.String(), field, valueID.String()); err != nil {
			return fmt.Errorf("insert job result: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// PutPipeline upserts a pipeline structure.
func (s *Postgres) PutPipeline(ctx context.Context, p engine.PipelineStructure) error {
	raw, err := encodeJSON(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipelines (name, structure) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET structure = $2
	`, p.Name, raw)
	return err
}

// PutWorkflow upserts a workflow.
func (s *Postgres) PutWorkflow(ctx context.Context, w engine.WorkflowInfo) error {
	raw, err := encodeJSON(w)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflows (id, info) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET info = $2
	`, w.ID.String(), raw)
	return err
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
