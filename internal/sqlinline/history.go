package sqlinline

const QCreateHistoryEntries = `--sql a2f2e57f-41c4-4470-b55f-7044cb91030e
create table if not exists history_entries (
  partition  text        not null,
  key        text        not null,
  created_at timestamptz not null,
  value      jsonb       not null,
  primary key (partition, key)
);
create index if not exists idx_history_entries_created on history_entries(partition, created_at);
`

const QUpsertHistoryEntry = `--sql 9ad6655f-203b-4b7d-adf8-7ff25589a3bc
insert into history_entries(partition, key, created_at, value)
values ($1::text, $2::text, $3::timestamptz, $4::jsonb)
on conflict (partition, key) do update
set created_at = excluded.created_at,
    value      = excluded.value
returning (xmax = 0) as inserted;
`

const QDeleteHistoryEntry = `--sql 7bdc0ba1-11f5-4702-be28-ad20d718be5e
delete from history_entries
where partition = $1::text and key = $2::text;
`

const QScanHistoryEntries = `--sql d5bd10a2-9d23-41ff-9fbf-8d3ae2073489
select key, created_at, value
from history_entries
where partition = $1::text;
`

const QClearHistoryEntries = `--sql 646d3331-3a6e-4a98-b770-6b9f7de08e79
delete from history_entries
where partition = $1::text;
`
