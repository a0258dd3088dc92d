package tracing

import (
	"database/sql"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sarchlab/dtusim/sim"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB
	taskStatement *sql.Stmt
	tagStatement  *sql.Stmt

	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database file is
// path with the ".sqlite3" suffix. If the path is empty, a unique name is
// generated.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 100000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// FileName returns the name of the database file.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init establishes a connection to the database and creates the tables.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "dtusim_trace_" + xid.New().String()
	}

	if _, err := os.Stat(t.FileName()); err == nil {
		return errors.Errorf("file %s already exists", t.FileName())
	}

	db, err := sql.Open("sqlite3", t.FileName())
	if err != nil {
		return errors.Wrap(err, "opening trace database")
	}

	t.DB = db

	for _, q := range schema {
		if _, err := t.Exec(q); err != nil {
			return errors.Wrapf(err, "executing %q", q)
		}
	}

	t.taskStatement, err = t.Prepare(`INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing trace statement")
	}

	t.tagStatement, err = t.Prepare(`INSERT INTO tag VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing tag statement")
	}

	return nil
}

var schema = []string{
	`create table trace
	(
		task_id    varchar(200) not null,
		parent_id  varchar(200),
		kind       varchar(100),
		what       varchar(100),
		location   varchar(100),
		start_time integer not null,
		end_time   integer default 0
	);`,
	`create index trace_task_id_index on trace (task_id);`,
	`create index trace_kind_index on trace (kind);`,
	`create index trace_location_index on trace (location);`,
	`create table tag
	(
		task_id varchar(200) not null,
		what    varchar(100),
		detail  varchar(200)
	);`,
	`create index tag_task_id_index on tag (task_id);`,
}

// Write buffers a task. The buffered tasks are written in batches.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	if len(t.tasksToWriteToDB) >= t.batchSize {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() {
	if len(t.tasksToWriteToDB) == 0 || t.DB == nil {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.tasksToWriteToDB {
		_, err := t.taskStatement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			uint64(task.StartTime),
			uint64(task.EndTime),
		)
		if err != nil {
			panic(err)
		}

		for _, tag := range task.Tags {
			_, err := t.tagStatement.Exec(tag.TaskID, tag.What, tag.Detail)
			if err != nil {
				panic(err)
			}
		}
	}

	t.tasksToWriteToDB = nil
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(errors.Wrapf(err, "executing %q", query))
	}

	return res
}

// SQLiteTraceReader is a reader that reads trace data from a SQLite database.
type SQLiteTraceReader struct {
	*sql.DB

	filename string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	return &SQLiteTraceReader{filename: filename}
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() error {
	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		return errors.Wrap(err, "opening trace database")
	}

	r.DB = db

	return nil
}

// ListComponents returns the locations that appear in the trace.
func (r *SQLiteTraceReader) ListComponents() ([]string, error) {
	rows, err := r.Query("SELECT DISTINCT location FROM trace ORDER BY location")
	if err != nil {
		return nil, errors.Wrap(err, "listing components")
	}
	defer rows.Close()

	var components []string
	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, err
		}

		components = append(components, component)
	}

	return components, rows.Err()
}

// ListTasks returns the tasks of the given kind, ordered by start time.
func (r *SQLiteTraceReader) ListTasks(kind string) ([]Task, error) {
	rows, err := r.Query(`
		SELECT task_id, parent_id, kind, what, location, start_time, end_time
		FROM trace WHERE kind = ? ORDER BY start_time, task_id`, kind)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			task       Task
			start, end uint64
		)

		err := rows.Scan(&task.ID, &task.ParentID, &task.Kind, &task.What,
			&task.Where, &start, &end)
		if err != nil {
			return nil, err
		}

		task.StartTime = sim.VTimeInCycle(start)
		task.EndTime = sim.VTimeInCycle(end)
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}
