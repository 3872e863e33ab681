package repository

// Schema definitions for Railwatch database.
// Compatible with both SQLite and PostgreSQL.

// schemaIncidents holds the ingested failure dataset. seq keeps the
// source row order; date is NULL when the source value was unparseable.
const schemaIncidents = `
CREATE TABLE IF NOT EXISTS incidents (
    seq INTEGER PRIMARY KEY,
    date TEXT,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    day_name TEXT NOT NULL,
    line TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    system TEXT NOT NULL,
    category TEXT NOT NULL,
    supervisor_reviewed TEXT NOT NULL DEFAULT '',
    service_reliability TEXT NOT NULL DEFAULT '',
    caused_evacuation INTEGER NOT NULL DEFAULT 0,
    delay_minutes REAL,
    evacuation_percentage REAL,
    description_length INTEGER NOT NULL DEFAULT 0,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_year ON incidents(year);
CREATE INDEX IF NOT EXISTS idx_incidents_line ON incidents(line);
`

const schemaPredictionLogs = `
CREATE TABLE IF NOT EXISTS prediction_logs (
    id TEXT PRIMARY KEY,
    trace_id TEXT,
    label TEXT NOT NULL,
    request TEXT NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prediction_logs_created ON prediction_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_prediction_logs_label ON prediction_logs(label);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaIncidents,
		schemaPredictionLogs,
	}
}
