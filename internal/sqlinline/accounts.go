package sqlinline

const QSelectCounter = `--sql 53d6227d-8254-474b-bc43-e53be730f114
select address, count, authority, bump
from program_counters
where address = $1::text;
`

const QSelectCounterForUpdate = `--sql 9ba78f87-cc8f-4193-a6e5-a4f50e3786b5
select address, count, authority, bump
from program_counters
where address = $1::text
for update;
`

const QInsertCounter = `--sql 3dbb1f34-bf00-4ec3-a313-e677a28acd53
insert into program_counters(address, count, authority, bump)
values ($1::text, $2::bigint, $3::text, $4::smallint)
on conflict (address) do nothing;
`

const QUpdateCounter = `--sql 6eb556f2-8e59-47ba-aa78-f47c2ead0518
update program_counters
set count = $2::bigint
where address = $1::text;
`

const QSelectCampaign = `--sql a1cc753d-5e8d-4030-8508-8ce14a4d2f8c
select address, campaign_id, creator, title, short_description, category, cover_image_url, story_url,
       funding_goal, deadline, amount_raised, amount_withdrawn, amount_refunded, backer_count,
       is_active, created_at, milestone_count, bump
from campaigns
where address = $1::text;
`

const QSelectCampaignForUpdate = `--sql 34bafce0-5632-4784-9694-07dac41c2546
select address, campaign_id, creator, title, short_description, category, cover_image_url, story_url,
       funding_goal, deadline, amount_raised, amount_withdrawn, amount_refunded, backer_count,
       is_active, created_at, milestone_count, bump
from campaigns
where address = $1::text
for update;
`

const QListCampaigns = `--sql 5d69e84f-d159-4ae8-ba4f-65a4e30f43f0
select address, campaign_id, creator, title, short_description, category, cover_image_url, story_url,
       funding_goal, deadline, amount_raised, amount_withdrawn, amount_refunded, backer_count,
       is_active, created_at, milestone_count, bump
from campaigns
where address collate "C" > $1::text
order by address collate "C"
limit $2::int;
`

const QInsertCampaign = `--sql 4d73be79-c129-4f99-b7bc-138a1d6de820
insert into campaigns(address, campaign_id, creator, title, short_description, category, cover_image_url,
                      story_url, funding_goal, deadline, amount_raised, amount_withdrawn, amount_refunded,
                      backer_count, is_active, created_at, milestone_count, bump)
values ($1::text, $2::bigint, $3::text, $4::text, $5::text, $6::smallint, $7::text,
        $8::text, $9::bigint, $10::timestamptz, $11::bigint, $12::bigint, $13::bigint,
        $14::bigint, $15::boolean, $16::timestamptz, $17::smallint, $18::smallint)
on conflict (address) do nothing;
`

const QUpdateCampaign = `--sql ee96108d-1e09-4558-97ac-cd8e3c519f4b
update campaigns
set amount_raised = $2::bigint,
    amount_withdrawn = $3::bigint,
    amount_refunded = $4::bigint,
    backer_count = $5::bigint,
    is_active = $6::boolean,
    milestone_count = $7::smallint
where address = $1::text;
`

const QSelectMilestone = `--sql 45f80bad-f413-4fc2-a835-17d151a08097
select address, campaign, milestone_index, title, target_amount, is_completed, bump
from milestones
where address = $1::text;
`

const QSelectMilestoneForUpdate = `--sql 558ed3f2-9cde-4cba-af6d-eaaa16665ad3
select address, campaign, milestone_index, title, target_amount, is_completed, bump
from milestones
where address = $1::text
for update;
`

const QListMilestones = `--sql 6a8136fc-e0fd-4390-b8dd-ec12dd3a0bd8
select address, campaign, milestone_index, title, target_amount, is_completed, bump
from milestones
where campaign = $1::text
order by milestone_index asc;
`

const QInsertMilestone = `--sql 722bd2dd-916c-46fa-af3c-4c3b951b7f1d
insert into milestones(address, campaign, milestone_index, title, target_amount, is_completed, bump)
values ($1::text, $2::text, $3::smallint, $4::text, $5::bigint, $6::boolean, $7::smallint)
on conflict (address) do nothing;
`

const QUpdateMilestone = `--sql 28e4a228-9977-4b4a-be2b-93502a04da95
update milestones
set is_completed = $2::boolean
where address = $1::text;
`

const QSelectContribution = `--sql 111c9475-4734-41e1-a7d7-e8b6fe8d4dea
select address, campaign, contributor, amount, contributed_at, refund_claimed, bump
from contributions
where address = $1::text;
`

const QSelectContributionForUpdate = `--sql 8593e0bd-e5a1-47d9-8d01-d4278b08fc4c
select address, campaign, contributor, amount, contributed_at, refund_claimed, bump
from contributions
where address = $1::text
for update;
`

const QListContributions = `--sql 05a6131e-1868-460c-b01a-272065a59f0e
select address, campaign, contributor, amount, contributed_at, refund_claimed, bump
from contributions
where campaign = $1::text
order by address collate "C";
`

const QInsertContribution = `--sql 12c58c1f-e1f7-4db7-bc89-e5d07238f812
insert into contributions(address, campaign, contributor, amount, contributed_at, refund_claimed, bump)
values ($1::text, $2::text, $3::text, $4::bigint, $5::timestamptz, $6::boolean, $7::smallint)
on conflict (address) do nothing;
`

const QUpdateContribution = `--sql 7b38e5d3-9ee1-4cfe-b297-5a9f58f63be6
update contributions
set amount = $2::bigint,
    refund_claimed = $3::boolean
where address = $1::text;
`

const QSelectBalance = `--sql cc5b9665-c93b-4444-9a0d-3bd685e2cb76
select lamports
from balances
where address = $1::text;
`

// QCreditBalance affects no row when the credit would exceed $3.
const QCreditBalance = `--sql fe914f6a-47e3-46f6-9550-a71253c5400e
insert into balances(address, lamports)
values ($1::text, $2::bigint)
on conflict (address) do update
set lamports = balances.lamports + excluded.lamports
where balances.lamports <= $3::bigint - excluded.lamports;
`

// QDebitBalance affects no row when funds are insufficient.
const QDebitBalance = `--sql 5f5b9233-def3-4a35-8517-a95833201dbb
update balances
set lamports = lamports - $2::bigint
where address = $1::text and lamports >= $2::bigint;
`
