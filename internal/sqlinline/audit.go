package sqlinline

const QInsertAuditRun = `--sql b1deafef-0d61-480b-9679-6476a7bec631
insert into audit_runs(id, started_at, finished_at, campaigns, violations, report_key)
values ($1::uuid, $2::timestamptz, $3::timestamptz, $4::int, $5::int, $6::text);
`

const QLatestAuditRun = `--sql 3b840c44-9191-4b2f-a8e6-eb57e974c134
select id, started_at, finished_at, campaigns, violations, report_key
from audit_runs
order by started_at desc
limit 1;
`
