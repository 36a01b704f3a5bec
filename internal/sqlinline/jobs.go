package sqlinline

const QCreateJobsTable = `--sql 7c1f2d8a-9b64-4a17-8c2e-3f5d0a6b1e92
create table if not exists game_jobs (
    id            uuid primary key,
    status        text not null,
    spec          jsonb not null,
    aggregate     jsonb not null default '{}'::jsonb,
    version       integer not null default 0,
    error_stage   text not null default '',
    error_message text not null default '',
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now()
);
`

const QInsertJob = `--sql 2e8b4c6d-1f3a-4e5b-9c7d-8a0b2c4d6e1f
insert into game_jobs (id, status, spec, aggregate, version, error_stage, error_message, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

const QSelectJob = `--sql 5a9c1e3b-7d2f-4b6a-8e0c-1d3f5a7b9c2e
select id, status, spec, aggregate, version, error_stage, error_message, created_at, updated_at
from game_jobs
where id = $1;
`

const QUpdateJob = `--sql 9d3b5f1a-2c4e-4d8b-a6f0-7e1c3a5b8d4f
update game_jobs
set status = $2,
    aggregate = $3,
    version = $4,
    error_stage = $5,
    error_message = $6,
    updated_at = $7
where id = $1;
`
