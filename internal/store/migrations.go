package store

const schema = `
CREATE TABLE IF NOT EXISTS processed_mail (
    account TEXT NOT NULL,
    message_id TEXT NOT NULL,
    chat_ts TEXT,
    processed_at DATETIME NOT NULL,
    PRIMARY KEY (account, message_id)
);

CREATE INDEX IF NOT EXISTS idx_processed_mail_processed_at ON processed_mail(processed_at);
`
