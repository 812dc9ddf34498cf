package store

const catalogSchema = `
CREATE SEQUENCE IF NOT EXISTS sessions_id_seq START 1;
CREATE SEQUENCE IF NOT EXISTS faults_id_seq START 1;

CREATE TABLE IF NOT EXISTS runs (
    run_id       VARCHAR PRIMARY KEY,
    started_at   TIMESTAMP NOT NULL,
    duration_ms  BIGINT NOT NULL DEFAULT 0,
    sessions     INTEGER NOT NULL,
    faults       INTEGER NOT NULL,
    assembly     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id                  BIGINT DEFAULT nextval('sessions_id_seq') PRIMARY KEY,
    run_id              VARCHAR NOT NULL,
    kind                VARCHAR NOT NULL,
    session_id          VARCHAR NOT NULL,
    project             VARCHAR NOT NULL,
    project_path        VARCHAR,
    category            VARCHAR,
    first_ts            VARCHAR,
    last_ts             VARCHAR,
    first_at            TIMESTAMP,
    message_count       INTEGER NOT NULL,
    is_checkpoint       BOOLEAN NOT NULL,
    is_assembly         BOOLEAN NOT NULL,
    assembly_mentions   INTEGER NOT NULL,
    perspectives        VARCHAR,
    summary             VARCHAR,
    first_message       VARCHAR,
    last_message        VARCHAR,
    user_messages       INTEGER,
    assistant_messages  INTEGER,
    tool_calls          INTEGER,
    word_count          INTEGER,
    source_path         VARCHAR NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_run      ON sessions(run_id);
CREATE INDEX IF NOT EXISTS idx_sessions_first_at ON sessions(first_at);

CREATE TABLE IF NOT EXISTS faults (
    id       BIGINT DEFAULT nextval('faults_id_seq') PRIMARY KEY,
    run_id   VARCHAR NOT NULL,
    kind     VARCHAR NOT NULL,
    path     VARCHAR NOT NULL,
    line     INTEGER NOT NULL,
    error    VARCHAR
);
CREATE INDEX IF NOT EXISTS idx_faults_run ON faults(run_id);
`
