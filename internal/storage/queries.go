package storage

import "fmt"

const (
	marketMetaTable  = "polymarket.raw_market_meta"
	orderFilledTable = "polymarket.polymarket_order_filled"
)

// latestResolvedSQL keeps the most recently updated metadata row per asset
// and restricts resolution to [ref - days, ref]. Parameters: ref, days, ref.
const latestResolvedSQL = `SELECT
            clob_token_id AS asset,
            question,
            outcome,
            toFloat64OrNull(raw_outcome_price) AS outcome_price,
            parseDateTime64BestEffortOrNull(raw_closed_time) AS resolution_time
        FROM (
            SELECT
                clob_token_id,
                question,
                outcome,
                outcome_price AS raw_outcome_price,
                closed_time AS raw_closed_time,
                row_number() OVER (PARTITION BY clob_token_id ORDER BY updated_at DESC) AS rn
            FROM ` + marketMetaTable + `
            WHERE outcome IS NOT NULL
              AND outcome != ''
              AND outcome_price IS NOT NULL
              AND outcome_price != ''
              AND closed_time IS NOT NULL
              AND closed_time != ''
        )
        WHERE rn = 1
          AND resolution_time IS NOT NULL
          AND outcome_price IS NOT NULL
          AND outcome_price BETWEEN 0 AND 1
          AND resolution_time >= parseDateTime64BestEffort(?) - toIntervalDay(?)
          AND resolution_time <= parseDateTime64BestEffort(?)`

const listResolvedMarketsSQL = `WITH resolved_markets AS (
        ` + latestResolvedSQL + `
    )
    SELECT asset, question, outcome, outcome_price, resolution_time
    FROM resolved_markets
    ORDER BY resolution_time DESC, asset`

// countResolvedMarketsSQL does not require an outcome price: it counts every
// market that closed inside the window. Parameters: ref, days, ref.
const countResolvedMarketsSQL = `SELECT COUNT(DISTINCT clob_token_id) AS count
    FROM (
        SELECT
            clob_token_id,
            parseDateTime64BestEffortOrNull(closed_time) AS resolution_time,
            row_number() OVER (PARTITION BY clob_token_id ORDER BY updated_at DESC) AS rn
        FROM ` + marketMetaTable + `
        WHERE outcome IS NOT NULL
          AND outcome != ''
          AND closed_time IS NOT NULL
          AND closed_time != ''
    )
    WHERE rn = 1
      AND resolution_time IS NOT NULL
      AND resolution_time >= parseDateTime64BestEffort(?) - toIntervalDay(?)
      AND resolution_time <= parseDateTime64BestEffort(?)`

// qualifyingTradesTemplate joins every resolved market to its last valid fill
// at or before resolution - offset. Equal timestamps are broken by the larger
// token amount. The two %s verbs take the band comparison operators.
// Parameters: ref, days, ref, minutes, price_min, price_max.
const qualifyingTradesTemplate = `WITH resolved_markets AS (
        ` + latestResolvedSQL + `
    ),
    pre_resolution_prices AS (
        SELECT
            f.asset AS asset,
            m.question AS question,
            m.outcome AS outcome,
            m.outcome_price AS outcome_price,
            m.resolution_time AS resolution_time,
            argMax(f.amount_usdc / f.amount_token, (f.block_timestamp, f.amount_token)) AS pre_price,
            max(f.block_timestamp) AS pre_time
        FROM ` + orderFilledTable + ` f
        INNER JOIN resolved_markets m ON f.asset = m.asset
        WHERE f.block_timestamp <= m.resolution_time - toIntervalMinute(?)
          AND f.amount_token > 0
        GROUP BY f.asset, m.question, m.outcome, m.outcome_price, m.resolution_time
    )
    SELECT
        asset,
        question,
        outcome,
        outcome_price,
        resolution_time,
        pre_price,
        pre_time
    FROM pre_resolution_prices
    WHERE pre_price %s ? AND pre_price %s ?
    ORDER BY resolution_time DESC, asset`

// lastFillAtOrBeforeSQL probes one asset. Parameters: asset, cutoff.
const lastFillAtOrBeforeSQL = `SELECT
        amount_usdc / 1e6 AS usdc,
        amount_token / 1e6 AS tokens,
        (amount_usdc / amount_token) AS price,
        block_timestamp
    FROM ` + orderFilledTable + `
    WHERE asset = ?
      AND block_timestamp <= parseDateTime64BestEffort(?)
      AND amount_token > 0
    ORDER BY block_timestamp DESC, amount_token DESC
    LIMIT 1`

// upcomingEventsSQL lists active markets by end date. Parameters: ref, ref, limit.
const upcomingEventsSQL = `WITH latest_meta AS (
        SELECT
            id,
            question,
            end_date,
            volume_24hr,
            twitter_card_image,
            clob_token_id,
            inserted_at,
            ROW_NUMBER() OVER (
                PARTITION BY id
                ORDER BY inserted_at DESC, clob_token_id DESC
            ) AS rn
        FROM ` + marketMetaTable + `
        WHERE active = TRUE
          AND end_date IS NOT NULL
          AND end_date > parseDateTime64BestEffort(?)
    )
    SELECT DISTINCT
        id,
        question,
        end_date,
        volume_24hr,
        twitter_card_image,
        dateDiff('second', parseDateTime64BestEffort(?), end_date) AS time_to_expire_seconds
    FROM latest_meta
    WHERE rn = 1
    ORDER BY end_date ASC
    LIMIT ?`

func windowArgs(w Window) []any {
	ref := formatStoreTime(w.Reference)
	return []any{ref, w.LookbackDays, ref}
}

func qualifyingTradesSQL(w Window) (string, []any) {
	query := fmt.Sprintf(qualifyingTradesTemplate, w.minOperator(), w.maxOperator())
	args := append(windowArgs(w), w.OffsetMinutes, w.PriceMin, w.PriceMax)
	return query, args
}
