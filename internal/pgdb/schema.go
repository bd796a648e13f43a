package pgdb

import "database/sql"

// schemaDDL creates every table named in spec §6 plus the optional
// order_status_history denorm. Adapted from the teacher's EnsureSchema
// (pkg/db/db.go), generalized from SQLite's TEXT-typed everything to
// Postgres's native NUMERIC/TIMESTAMPTZ/UUID-friendly types, and expanded
// from the teacher's single "orders" table into the full order/event/ledger/
// outbox/dispute schema the lifecycle engine needs.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS merchants (
  id                      UUID PRIMARY KEY,
  name                    TEXT NOT NULL,
  api_key                 TEXT NOT NULL UNIQUE,
  merchant_wallet_address TEXT,
  balance                 NUMERIC(38,8) NOT NULL DEFAULT 0,
  created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
  id         UUID PRIMARY KEY,
  name       TEXT NOT NULL,
  balance    NUMERIC(38,8) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
  id                  UUID PRIMARY KEY,
  order_number        TEXT NOT NULL UNIQUE,

  seller_merchant_id  UUID NOT NULL REFERENCES merchants(id),
  user_id             UUID NOT NULL REFERENCES users(id),
  buyer_merchant_id   UUID REFERENCES merchants(id),
  offer_id            TEXT,

  type                TEXT NOT NULL,
  crypto_amount       NUMERIC(38,8) NOT NULL,
  fiat_amount         NUMERIC(38,2) NOT NULL,
  rate                NUMERIC(38,8) NOT NULL,
  crypto_currency     TEXT NOT NULL,
  fiat_currency       TEXT NOT NULL,
  payment_method      TEXT NOT NULL,
  payment_details     JSONB NOT NULL DEFAULT '{}',

  status              TEXT NOT NULL,
  order_version       BIGINT NOT NULL DEFAULT 1,

  created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
  accepted_at          TIMESTAMPTZ,
  escrowed_at          TIMESTAMPTZ,
  payment_sent_at      TIMESTAMPTZ,
  payment_confirmed_at TIMESTAMPTZ,
  completed_at         TIMESTAMPTZ,
  cancelled_at         TIMESTAMPTZ,
  expires_at           TIMESTAMPTZ NOT NULL,

  escrow_debited_entity_type TEXT,
  escrow_debited_entity_id   UUID,
  escrow_debited_amount      NUMERIC(38,8),
  escrow_tx_hash             TEXT,
  release_tx_hash            TEXT,
  refund_tx_hash             TEXT,

  protocol_fee_percentage NUMERIC(6,4) NOT NULL,
  protocol_fee_amount     NUMERIC(38,8) NOT NULL DEFAULT 0,

  CONSTRAINT release_xor_refund CHECK (NOT (release_tx_hash IS NOT NULL AND refund_tx_hash IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_orders_status_expires ON orders(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_seller_merchant ON orders(seller_merchant_id);

CREATE TABLE IF NOT EXISTS order_events (
  id           UUID PRIMARY KEY,
  order_id     UUID NOT NULL REFERENCES orders(id),
  old_status   TEXT,
  new_status   TEXT NOT NULL,
  event_type   TEXT NOT NULL,
  actor_type   TEXT NOT NULL,
  actor_id     TEXT,
  metadata     JSONB NOT NULL DEFAULT '{}',
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id, created_at);

CREATE TABLE IF NOT EXISTS order_status_history (
  id         UUID PRIMARY KEY,
  order_id   UUID NOT NULL REFERENCES orders(id),
  status     TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at);

CREATE TABLE IF NOT EXISTS ledger_entries (
  id              UUID PRIMARY KEY,
  account_type    TEXT NOT NULL,
  account_id      UUID NOT NULL,
  order_id        UUID REFERENCES orders(id),
  entry_kind      TEXT NOT NULL,
  amount_signed   NUMERIC(38,8) NOT NULL,
  related_tx_hash TEXT,
  description     TEXT,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_type, account_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_order ON ledger_entries(order_id);

CREATE TABLE IF NOT EXISTS notification_outbox (
  id              UUID PRIMARY KEY,
  event_type      TEXT NOT NULL,
  order_id        UUID NOT NULL REFERENCES orders(id),
  payload         JSONB NOT NULL,
  status          TEXT NOT NULL DEFAULT 'pending',
  attempts        INT NOT NULL DEFAULT 0,
  max_attempts    INT NOT NULL DEFAULT 3,
  next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_error      TEXT,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  sent_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON notification_outbox(status, next_attempt_at);

CREATE TABLE IF NOT EXISTS disputes (
  id                  UUID PRIMARY KEY,
  order_id            UUID NOT NULL UNIQUE REFERENCES orders(id),
  status              TEXT NOT NULL DEFAULT 'open',
  reason              TEXT NOT NULL,
  description         TEXT,
  initiated_by        TEXT NOT NULL,
  initiator_id        TEXT,
  resolution          TEXT,
  split_user_pct      NUMERIC(6,2),
  split_merchant_pct  NUMERIC(6,2),
  user_confirmed      BOOLEAN NOT NULL DEFAULT false,
  merchant_confirmed  BOOLEAN NOT NULL DEFAULT false,
  user_amount         NUMERIC(38,8),
  merchant_amount     NUMERIC(38,8),
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  resolved_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS idempotency_records (
  idempotency_key TEXT NOT NULL,
  actor_id        TEXT NOT NULL,
  endpoint        TEXT NOT NULL,
  response_status INT NOT NULL,
  response_body   JSONB NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (idempotency_key, actor_id, endpoint)
);

CREATE SEQUENCE IF NOT EXISTS order_number_seq;
`

// EnsureSchema creates every table and index if missing. Idempotent: safe to
// call on every process start, matching the teacher's EnsureSchema call
// site in cmd/server/main.go.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schemaDDL)
	return err
}
